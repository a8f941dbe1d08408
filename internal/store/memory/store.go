// Package memory provides an in-memory snapshot store for development.
package memory

import (
	"context"
	"sync"

	"github.com/lunchbot/menuwatch/internal/menu"
)

// Store keeps only the most recent snapshot, last writer wins.
type Store struct {
	mu     sync.RWMutex
	latest menu.Snapshot
	set    bool
}

// New constructs a Store.
func New() *Store {
	return &Store{}
}

// Put replaces the current snapshot.
func (s *Store) Put(_ context.Context, snap menu.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = copySnapshot(snap)
	s.set = true
	return nil
}

// Latest returns the current snapshot or menu.ErrNoSnapshot before the
// first Put.
func (s *Store) Latest(_ context.Context) (menu.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return menu.Snapshot{}, menu.ErrNoSnapshot
	}
	return copySnapshot(s.latest), nil
}

func copySnapshot(snap menu.Snapshot) menu.Snapshot {
	out := snap
	if snap.Items != nil {
		out.Items = make([]menu.Item, len(snap.Items))
		copy(out.Items, snap.Items)
	}
	return out
}
