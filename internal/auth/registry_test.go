package auth

import (
	"testing"
	"time"
)

type memStore struct {
	saved map[string]*Credential
}

func (m *memStore) Load() (map[string]*Credential, error) {
	if m.saved == nil {
		return make(map[string]*Credential), nil
	}
	return m.saved, nil
}

func (m *memStore) Save(creds map[string]*Credential) error {
	m.saved = creds
	return nil
}

func TestCreateAndValidate(t *testing.T) {
	r, err := NewRegistry(&memStore{})
	if err != nil {
		t.Fatal(err)
	}
	id, secret, err := r.Create("ci", NewCapabilitySet(Read, Write), 10, "")
	if err != nil {
		t.Fatal(err)
	}
	if id == "" || secret == "" {
		t.Fatal("expected non-empty id and secret")
	}

	c := r.Validate(secret)
	if c == nil || c.ID != id {
		t.Fatalf("expected Validate to resolve the created credential, got %v", c)
	}

	if r.Validate("wrong-secret") != nil {
		t.Fatal("expected Validate to reject an incorrect secret")
	}
}

func TestAdminImpliesReadWrite(t *testing.T) {
	caps := NewCapabilitySet(Admin)
	if !caps.Has(Read) || !caps.Has(Write) || !caps.Has(Admin) {
		t.Fatalf("expected admin to imply read and write, got %v", caps)
	}
}

func TestDisabledCredentialNeverAuthenticates(t *testing.T) {
	r, _ := NewRegistry(&memStore{})
	id, secret, _ := r.Create("disabled-test", NewCapabilitySet(Read), 10, "")
	active := false
	if _, err := r.Update(id, UpdateFields{Active: &active}); err != nil {
		t.Fatal(err)
	}
	if r.Validate(secret) != nil {
		t.Fatal("expected disabled credential to never authenticate")
	}
}

// TestSlidingWindowBudget covers spec §8 property 5: at most B accepted
// requests per trailing 1s window, the (B+1)-th yields a rejection.
func TestSlidingWindowBudget(t *testing.T) {
	r, _ := NewRegistry(&memStore{})
	id, _, _ := r.Create("budget-test", NewCapabilitySet(Read), 3, "")
	c, _ := r.Get(id)

	for i := 0; i < 3; i++ {
		if !r.ReserveOrReject(c) {
			t.Fatalf("request %d should have been accepted within budget", i)
		}
	}
	if r.ReserveOrReject(c) {
		t.Fatal("4th request within the same window should be rejected")
	}
}

func TestWindowPrunesOldEntries(t *testing.T) {
	r, _ := NewRegistry(&memStore{})
	id, _, _ := r.Create("prune-test", NewCapabilitySet(Read), 1, "")
	c, _ := r.Get(id)

	r.mu.Lock()
	w := r.windowFor(id)
	w.timestamps = append(w.timestamps, time.Now().Add(-2*time.Second))
	r.mu.Unlock()

	if !r.WithinBudget(c) {
		t.Fatal("expected budget to be available after old entries prune out")
	}
}

func TestDeleteRemovesCredential(t *testing.T) {
	r, _ := NewRegistry(&memStore{})
	id, _, _ := r.Create("delete-test", NewCapabilitySet(Read), 1, "")
	if err := r.Delete(id); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Get(id); ok {
		t.Fatal("expected credential to be gone after Delete")
	}
	if err := r.Delete(id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestAuthLogBlocksAfterThreshold(t *testing.T) {
	l := NewAuthLog(time.Second)
	for i := 0; i < 3; i++ {
		l.RecordFailure("1.2.3.4")
	}
	if !l.IsBlocked("1.2.3.4", 3) {
		t.Fatal("expected peer to be blocked after 3 failures")
	}
	l.RecordSuccess("1.2.3.4")
	if l.IsBlocked("1.2.3.4", 3) {
		t.Fatal("expected RecordSuccess to clear failure history")
	}
}
