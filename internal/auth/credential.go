// Package auth implements the Credential Registry: credential storage with
// capability sets, opaque-secret validation, and per-credential sliding-
// window rate budgets (spec §4.F).
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// Capability is one of the three permission tiers a credential can hold.
// Admin implies both Read and Write (spec §3 Credential invariant).
type Capability string

const (
	Read  Capability = "read"
	Write Capability = "write"
	Admin Capability = "admin"
)

// CapabilitySet is a small, order-independent set of Capabilities.
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a set from a capability list, expanding Admin to
// also imply Read and Write so callers never need to special-case it at
// the check site.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps)+2)
	for _, c := range caps {
		s[c] = true
	}
	if s[Admin] {
		s[Read] = true
		s[Write] = true
	}
	return s
}

// Has reports whether the set grants a capability.
func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// List returns the set's members in a stable order, for persistence and
// API responses.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for _, c := range []Capability{Read, Write, Admin} {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}

// Credential is one registered caller identity (spec §3 Credential).
type Credential struct {
	ID           string
	Name         string
	Description  string
	secretHash   []byte
	Capabilities CapabilitySet
	Budget       int // requests per second
	Active       bool
	CreatedAt    time.Time
	LastUsedAt   time.Time
}

// hashSecret derives a credential's stored hash from its raw secret. A
// plain SHA-256 (not bcrypt/argon2) is deliberate: the secret is a
// high-entropy generated token, not a user-chosen password, so there is no
// guessing surface a slow hash would defend against — this matches how the
// opaque API keys in the corpus (ipiton-alert-history-service's
// AuthConfig.APIKeys) are compared, by raw value rather than a KDF.
func hashSecret(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// generateSecret returns a random, URL-safe opaque token.
func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// verifySecret reports whether a presented secret matches a credential's
// stored hash, using a constant-time comparison to avoid a timing
// side-channel on the hash bytes.
func verifySecret(c *Credential, presented string) bool {
	got := hashSecret(presented)
	return subtle.ConstantTimeCompare(got, c.secretHash) == 1
}
