package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Config struct {
	// Path is the database file. Empty keeps the database in memory for the
	// lifetime of the process.
	Path string
	// Name distinguishes in-memory databases within one process.
	Name string
}

// DSN builds the modernc.org/sqlite connection string with per-connection
// PRAGMAs.
func (c Config) DSN() string {
	const pragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if strings.TrimSpace(c.Path) == "" {
		name := c.Name
		if name == "" {
			name = "phloem"
		}
		return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", name, pragmas)
	}
	return fmt.Sprintf("file:%s?%s&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", c.Path, pragmas)
}

func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if p := strings.TrimSpace(cfg.Path); p != "" {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// Single connection: keeps a shared in-memory database alive and
	// serializes access to the file otherwise.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
