package auth

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// persistedCredential is the on-disk shape of spec §6.3: a single JSON
// document keyed by credential id. Field names match the spec exactly;
// unknown fields on load are ignored by encoding/json's default decode
// behavior, giving forward compatibility for free.
type persistedCredential struct {
	Name         string   `json:"name"`
	HashOfSecret string   `json:"hash_of_secret"`
	Capabilities []string `json:"capabilities"`
	Budget       int      `json:"budget"`
	Active       bool     `json:"active"`
	Created      string   `json:"created"`
	LastUsed     string   `json:"last_used"`
	Description  string   `json:"description"`
}

// JSONFileStore persists the Credential Registry to a single JSON
// document via temp-file-then-rename (spec §6.3's exact atomic-replace
// mechanism). Deliberately built on encoding/json + os rather than a
// third-party store — see DESIGN.md for why.
type JSONFileStore struct {
	Path string
}

func (s *JSONFileStore) Load() (map[string]*Credential, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return make(map[string]*Credential), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential store: %w", err)
	}

	var onDisk map[string]persistedCredential
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return nil, fmt.Errorf("parse credential store: %w", err)
	}

	out := make(map[string]*Credential, len(onDisk))
	for id, p := range onDisk {
		caps := make(CapabilitySet, len(p.Capabilities))
		for _, c := range p.Capabilities {
			caps[Capability(c)] = true
		}
		c := &Credential{
			ID:           id,
			Name:         p.Name,
			Description:  p.Description,
			Capabilities: caps,
			Budget:       p.Budget,
			Active:       p.Active,
		}
		c.secretHash, _ = hex.DecodeString(p.HashOfSecret)
		if t, err := time.Parse(time.RFC3339, p.Created); err == nil {
			c.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339, p.LastUsed); err == nil {
			c.LastUsedAt = t
		}
		out[id] = c
	}
	return out, nil
}

func (s *JSONFileStore) Save(creds map[string]*Credential) error {
	onDisk := make(map[string]persistedCredential, len(creds))
	for id, c := range creds {
		onDisk[id] = persistedCredential{
			Name:         c.Name,
			HashOfSecret: hex.EncodeToString(c.secretHash),
			Capabilities: capabilityStrings(c.Capabilities),
			Budget:       c.Budget,
			Active:       c.Active,
			Created:      c.CreatedAt.Format(time.RFC3339),
			LastUsed:     c.LastUsedAt.Format(time.RFC3339),
			Description:  c.Description,
		}
	}

	data, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential store: %w", err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp credential file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename credential store into place: %w", err)
	}
	return nil
}

func capabilityStrings(caps CapabilitySet) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps.List() {
		out = append(out, string(c))
	}
	return out
}
