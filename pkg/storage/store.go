// Package storage keeps last-good record snapshots so widgets can fall back to
// cached data when a fetch fails.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no snapshot exists for a source.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the encoded record sequence of one successful load.
type Snapshot struct {
	ID        string
	Source    string
	Payload   []byte
	Count     int
	CreatedAt time.Time
}

// SnapshotStore exposes persistence operations for record snapshots.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, source string, payload []byte, count int) (Snapshot, error)
	LatestSnapshot(ctx context.Context, source string) (Snapshot, error)
	Close() error
}
