package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

// EventStore keeps the event log in process memory. Events are stored in
// append order and returned newest first.
type EventStore struct {
	mu     sync.RWMutex
	events []types.Event
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) AppendEvent(_ context.Context, ev types.Event) error {
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *EventStore) ListEvents(_ context.Context, limit int) ([]types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.Event, 0, n)
	for i := len(s.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *EventStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}

var _ store.EventStore = (*EventStore)(nil)
