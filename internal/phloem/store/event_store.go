package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

// EventStore holds the analytics event log. Lists are newest first.
type EventStore interface {
	AppendEvent(ctx context.Context, ev types.Event) error
	// ListEvents returns at most limit events; limit <= 0 returns all.
	ListEvents(ctx context.Context, limit int) ([]types.Event, error)
	// PruneOlderThan deletes events recorded (wall clock) before cutoff.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
