package auth

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// window is a sliding count of accepted-request timestamps within the
// trailing second, per spec §3 RateWindow. Pruned in place on every call
// that inspects it, under the Registry's single mutex.
type window struct {
	timestamps []time.Time
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-time.Second)
	i := 0
	for i < len(w.timestamps) && w.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = w.timestamps[i:]
	}
}

// Registry holds every credential and its rate window behind one mutex.
// Spec §5 allows either a single mutex or a per-credential mutex; a single
// mutex is simpler and the critical sections here (map lookup, slice
// prune/append) are short enough that contention is not a concern at the
// request rates this gateway is built for.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*Credential
	windows map[string]*window
	store   Store
}

// Store persists the Registry's credential set (spec §6.3). Implemented
// by internal/auth.JSONFileStore; callers may substitute an in-memory
// store for tests.
type Store interface {
	Load() (map[string]*Credential, error)
	Save(map[string]*Credential) error
}

// NewRegistry constructs an empty Registry, or one loaded from store if it
// already holds credentials.
func NewRegistry(store Store) (*Registry, error) {
	r := &Registry{
		byID:    make(map[string]*Credential),
		windows: make(map[string]*window),
		store:   store,
	}
	if store != nil {
		loaded, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("load credential store: %w", err)
		}
		r.byID = loaded
	}
	return r, nil
}

// Create registers a new credential and returns its id and the raw secret.
// The raw secret is never stored or retrievable again (spec §3 invariant).
func (r *Registry) Create(name string, caps CapabilitySet, budget int, description string) (id string, secret string, err error) {
	secret, err = generateSecret()
	if err != nil {
		return "", "", err
	}
	id = uuid.NewString()

	r.mu.Lock()
	r.byID[id] = &Credential{
		ID:           id,
		Name:         name,
		Description:  description,
		secretHash:   hashSecret(secret),
		Capabilities: caps,
		Budget:       budget,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		return "", "", err
	}
	return id, secret, nil
}

// Validate resolves a presented secret to its Credential, or nil if
// unknown, disabled, or mismatched. Updates LastUsedAt on success.
func (r *Registry) Validate(presented string) *Credential {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.byID {
		if !c.Active {
			continue
		}
		if verifySecret(c, presented) {
			c.LastUsedAt = time.Now()
			return c
		}
	}
	return nil
}

// CheckCapability reports whether a credential's capability set grants
// the required capability. Admin implies read and write, folded in at
// NewCapabilitySet construction time.
func (r *Registry) CheckCapability(c *Credential, required Capability) bool {
	if c == nil {
		return false
	}
	return c.Capabilities.Has(required)
}

// RecordRequest appends now to the credential's sliding window, pruning
// entries older than 1 second first (spec §4.F record_request).
func (r *Registry) RecordRequest(credentialID string) {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.windowFor(credentialID)
	w.prune(now)
	w.timestamps = append(w.timestamps, now)
}

// WithinBudget reports whether the credential's window holds fewer
// entries than its budget (spec §4.F within_budget).
func (r *Registry) WithinBudget(c *Credential) bool {
	if c == nil {
		return false
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.windowFor(c.ID)
	w.prune(now)
	return len(w.timestamps) < c.Budget
}

// ReserveOrReject atomically checks the budget and, if accepted, records
// the request in the same critical section — spec §5's guidance that
// within_budget/record_request be invoked as an atomic pair.
func (r *Registry) ReserveOrReject(c *Credential) bool {
	if c == nil {
		return false
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.windowFor(c.ID)
	w.prune(now)
	if len(w.timestamps) >= c.Budget {
		return false
	}
	w.timestamps = append(w.timestamps, now)
	return true
}

// Remaining returns how many requests the credential may still make in
// the current trailing-second window.
func (r *Registry) Remaining(c *Credential) int {
	if c == nil {
		return 0
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.windowFor(c.ID)
	w.prune(now)
	remaining := c.Budget - len(w.timestamps)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetAt returns when the oldest entry in the credential's window will
// age out, freeing up budget. Returns the current time if the window is
// empty (budget is immediately available).
func (r *Registry) ResetAt(c *Credential) time.Time {
	if c == nil {
		return time.Now()
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.windowFor(c.ID)
	w.prune(now)
	if len(w.timestamps) == 0 {
		return now
	}
	return w.timestamps[0].Add(time.Second)
}

// windowFor returns (creating if necessary) the sliding window for a
// credential id. Must be called with r.mu held.
func (r *Registry) windowFor(credentialID string) *window {
	w, ok := r.windows[credentialID]
	if !ok {
		w = &window{}
		r.windows[credentialID] = w
	}
	return w
}

// Get returns a credential by id.
func (r *Registry) Get(id string) (*Credential, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	return c, ok
}

// List returns every credential, ordered by id for stable API responses.
func (r *Registry) List() []*Credential {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Credential, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update applies field changes to an existing credential. fields may set
// Name, Description, Capabilities, Budget, and Active; nil fields are left
// untouched.
type UpdateFields struct {
	Name         *string
	Description  *string
	Capabilities CapabilitySet
	Budget       *int
	Active       *bool
}

func (r *Registry) Update(id string, fields UpdateFields) (*Credential, error) {
	r.mu.Lock()
	c, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	if fields.Name != nil {
		c.Name = *fields.Name
	}
	if fields.Description != nil {
		c.Description = *fields.Description
	}
	if fields.Capabilities != nil {
		c.Capabilities = fields.Capabilities
	}
	if fields.Budget != nil {
		c.Budget = *fields.Budget
	}
	if fields.Active != nil {
		c.Active = *fields.Active
	}
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a credential permanently.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	if _, ok := r.byID[id]; !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.windows, id)
	r.mu.Unlock()
	return r.persist()
}

// ErrNotFound is returned by Update/Delete for an unknown credential id.
var ErrNotFound = fmt.Errorf("credential not found")

// persist snapshots the registry and writes it through Store, if one was
// configured.
func (r *Registry) persist() error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	snapshot := make(map[string]*Credential, len(r.byID))
	for id, c := range r.byID {
		cp := *c
		snapshot[id] = &cp
	}
	r.mu.Unlock()
	return r.store.Save(snapshot)
}
