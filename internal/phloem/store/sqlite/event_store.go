package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/Phloem/server/internal/db"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

type EventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewEventStore(db *sql.DB, writer *dbpkg.Worker) *EventStore {
	return &EventStore{db: db, writer: writer}
}

func (s *EventStore) AppendEvent(ctx context.Context, ev types.Event) error {
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO events(
  event_id, time_of_day, virtual_at_ms, violation,
  flow_rate, total_waste, recorded_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			ev.ID, ev.Timestamp, ev.At.UnixMilli(), string(ev.Violation),
			ev.FlowRate, ev.TotalWaste, ev.RecordedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("AppendEvent insert: %w", err)
		}
		return nil
	})
}

func (s *EventStore) ListEvents(ctx context.Context, limit int) ([]types.Event, error) {
	q := `
SELECT event_id, time_of_day, virtual_at_ms, violation, flow_rate, total_waste, recorded_at_ms
FROM events ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEvents query: %w", err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var (
			ev         types.Event
			violation  string
			virtualMs  int64
			recordedMs int64
		)
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &virtualMs, &violation, &ev.FlowRate, &ev.TotalWaste, &recordedMs); err != nil {
			return nil, fmt.Errorf("ListEvents scan: %w", err)
		}
		ev.Violation = types.Violation(violation)
		ev.At = time.UnixMilli(virtualMs)
		ev.RecordedAt = time.UnixMilli(recordedMs).UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListEvents rows: %w", err)
	}
	return out, nil
}

func (s *EventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE recorded_at_ms < ?;`, cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("PruneOlderThan delete: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

var _ store.EventStore = (*EventStore)(nil)
