package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemorySnapshotStore is an in-memory implementation of SnapshotStore.
// It keeps only the latest snapshot per source.
type MemorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
	now       func() time.Time
}

// NewMemorySnapshotStore creates a new MemorySnapshotStore.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{
		snapshots: make(map[string]Snapshot),
		now:       time.Now,
	}
}

// SaveSnapshot replaces the latest snapshot for source.
func (s *MemorySnapshotStore) SaveSnapshot(_ context.Context, source string, payload []byte, count int) (Snapshot, error) {
	if source == "" {
		return Snapshot{}, fmt.Errorf("snapshot source cannot be empty")
	}

	snap := Snapshot{
		ID:        uuid.New().String(),
		Source:    source,
		Payload:   append([]byte(nil), payload...),
		Count:     count,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.snapshots[source] = snap
	s.mu.Unlock()

	return snap, nil
}

// LatestSnapshot returns the most recent snapshot for source.
func (s *MemorySnapshotStore) LatestSnapshot(_ context.Context, source string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[source]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, source)
	}
	snap.Payload = append([]byte(nil), snap.Payload...)
	return snap, nil
}

// Len returns the number of sources with a snapshot.
func (s *MemorySnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Close is a no-op for memory store.
func (s *MemorySnapshotStore) Close() error {
	return nil
}
