// Package store persists the small pieces of state spec.md §6 calls
// "Persisted state" that outlive a single session: the clientId ->
// displayName table, push subscriptions, and in-memory dashboard auth.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// ClientNames is the JSON key-value clientId -> displayName table
// (spec.md §3 "Client-name table"): "updated on every rename and on
// floor grant", read back by post-hoc tooling that labels recordings.
type ClientNames struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// LoadClientNames reads path if it exists, starting empty otherwise.
func LoadClientNames(path string) (*ClientNames, error) {
	c := &ClientNames{path: path, data: make(map[string]string)}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c.data); err != nil {
		return nil, err
	}
	return c, nil
}

// Set records displayName for clientID and persists the table, ignoring
// empty names (a session that never renamed itself has nothing worth
// writing).
func (c *ClientNames) Set(clientID, displayName string) {
	if displayName == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[clientID] = displayName
	c.flushLocked()
}

func (c *ClientNames) Get(clientID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[clientID]
}

func (c *ClientNames) flushLocked() {
	b, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return
	}
	if dir := filepath.Dir(c.path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	_ = os.WriteFile(c.path, b, 0o644)
}
