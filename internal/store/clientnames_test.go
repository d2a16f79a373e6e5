package store

import (
	"path/filepath"
	"testing"
)

func TestLoadClientNames_MissingFileStartsEmpty(t *testing.T) {
	c, err := LoadClientNames(filepath.Join(t.TempDir(), "names.json"))
	if err != nil {
		t.Fatalf("LoadClientNames: %v", err)
	}
	if got := c.Get("aaaaaaaa"); got != "" {
		t.Fatalf("expected empty name, got %q", got)
	}
}

func TestClientNames_SetPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")

	c, err := LoadClientNames(path)
	if err != nil {
		t.Fatalf("LoadClientNames: %v", err)
	}
	c.Set("aaaaaaaa", "Alice")

	reloaded, err := LoadClientNames(path)
	if err != nil {
		t.Fatalf("LoadClientNames (reload): %v", err)
	}
	if got := reloaded.Get("aaaaaaaa"); got != "Alice" {
		t.Fatalf("expected Alice after reload, got %q", got)
	}
}

func TestClientNames_SetIgnoresEmptyName(t *testing.T) {
	c, err := LoadClientNames(filepath.Join(t.TempDir(), "names.json"))
	if err != nil {
		t.Fatalf("LoadClientNames: %v", err)
	}
	c.Set("aaaaaaaa", "")
	if got := c.Get("aaaaaaaa"); got != "" {
		t.Fatalf("expected Set(\"\") to be ignored, got %q", got)
	}
}
