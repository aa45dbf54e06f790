package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store"
)

// CommandStore is an in-memory append-only log of sent commands.
type CommandStore struct {
	mu      sync.Mutex
	records []store.CommandRecord
}

func NewCommandStore() *CommandStore {
	return &CommandStore{}
}

func (s *CommandStore) RecordCommand(_ context.Context, rec store.CommandRecord) error {
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *CommandStore) ListCommands(_ context.Context, limit int) ([]store.CommandRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]store.CommandRecord, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

var _ store.CommandStore = (*CommandStore)(nil)
