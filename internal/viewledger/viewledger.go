// Package viewledger persists per-client view dedup sets as a single JSON
// file. It stands in for the browser-local storage each client keeps: losing
// the file only risks some views counting again, so a plain file with a
// mutex is enough.
package viewledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store maps client keys to the set of post ids that client already counted.
type Store struct {
	path string

	mu   sync.Mutex
	seen map[string]map[string]bool
}

// Open loads the ledger file, creating an empty store when the file does not
// exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, seen: make(map[string]map[string]bool)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read view ledger: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse view ledger %s: %w", path, err)
	}
	for client, postIDs := range raw {
		set := make(map[string]bool, len(postIDs))
		for _, id := range postIDs {
			set[id] = true
		}
		s.seen[client] = set
	}
	return s, nil
}

// Client returns the view ledger scoped to one client key. The returned
// value satisfies ledger.ViewLedger.
func (s *Store) Client(key string) *ClientLedger {
	return &ClientLedger{store: s, client: key}
}

// ClientLedger is one client's slice of the store.
type ClientLedger struct {
	store  *Store
	client string
}

func (c *ClientLedger) Contains(postID string) bool {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.store.seen[c.client][postID]
}

// Add marks a post as counted for this client and rewrites the file. The
// in-memory mark sticks even when the write fails, so a flush error can at
// most lose marks across a restart.
func (c *ClientLedger) Add(postID string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	set := c.store.seen[c.client]
	if set == nil {
		set = make(map[string]bool)
		c.store.seen[c.client] = set
	}
	if set[postID] {
		return nil
	}
	set[postID] = true
	return c.store.flushLocked()
}

// flushLocked writes the whole ledger to a temp file and renames it over the
// old one. Caller holds the mutex.
func (s *Store) flushLocked() error {
	raw := make(map[string][]string, len(s.seen))
	for client, set := range s.seen {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		raw[client] = ids
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode view ledger: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create view ledger dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write view ledger: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace view ledger: %w", err)
	}
	return nil
}
