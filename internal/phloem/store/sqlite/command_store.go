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

type CommandStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCommandStore(db *sql.DB, writer *dbpkg.Worker) *CommandStore {
	return &CommandStore{db: db, writer: writer}
}

func (s *CommandStore) RecordCommand(ctx context.Context, rec store.CommandRecord) error {
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}

	var sent int
	if rec.Sent {
		sent = 1
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO commands(command, origin, sent, issued_at_ms) VALUES (?, ?, ?, ?);
`, string(rec.Command), rec.Origin, sent, rec.IssuedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("RecordCommand insert: %w", err)
		}
		return nil
	})
}

func (s *CommandStore) ListCommands(ctx context.Context, limit int) ([]store.CommandRecord, error) {
	q := `SELECT command, origin, sent, issued_at_ms FROM commands ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListCommands query: %w", err)
	}
	defer rows.Close()

	var out []store.CommandRecord
	for rows.Next() {
		var (
			rec      store.CommandRecord
			command  string
			sent     int
			issuedMs int64
		)
		if err := rows.Scan(&command, &rec.Origin, &sent, &issuedMs); err != nil {
			return nil, fmt.Errorf("ListCommands scan: %w", err)
		}
		rec.Command = types.Command(command)
		rec.Sent = sent == 1
		rec.IssuedAt = time.UnixMilli(issuedMs).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListCommands rows: %w", err)
	}
	return out, nil
}

var _ store.CommandStore = (*CommandStore)(nil)
