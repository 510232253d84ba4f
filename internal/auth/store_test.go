package auth

import (
	"path/filepath"
	"testing"
)

func TestJSONFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := &JSONFileStore{Path: filepath.Join(dir, "credentials.json")}

	r, err := NewRegistry(store)
	if err != nil {
		t.Fatal(err)
	}
	id, secret, err := r.Create("roundtrip", NewCapabilitySet(Read, Write), 25, "integration credential")
	if err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewRegistry(store)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := reloaded.Get(id)
	if !ok {
		t.Fatal("expected credential to survive reload")
	}
	if c.Name != "roundtrip" || c.Budget != 25 || !c.Active {
		t.Fatalf("unexpected reloaded credential: %+v", c)
	}
	if reloaded.Validate(secret) == nil {
		t.Fatal("expected the original secret to still validate after reload")
	}
}

func TestJSONFileStoreMissingFileIsEmpty(t *testing.T) {
	store := &JSONFileStore{Path: filepath.Join(t.TempDir(), "missing.json")}
	r, err := NewRegistry(store)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.List()) != 0 {
		t.Fatal("expected empty registry when the backing file doesn't exist yet")
	}
}
