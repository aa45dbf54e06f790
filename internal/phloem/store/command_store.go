package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

const (
	OriginMode   = "mode"   // issued by an arm/disarm transition
	OriginManual = "manual" // valve override
)

// CommandRecord captures one command sent to the controller for the audit log.
type CommandRecord struct {
	Command  types.Command `json:"command"`
	Origin   string        `json:"origin"`
	Sent     bool          `json:"sent"`
	IssuedAt time.Time     `json:"issued_at"`
}

// CommandStore persists sent commands as an append-only audit log.
type CommandStore interface {
	RecordCommand(ctx context.Context, rec CommandRecord) error
	// ListCommands returns at most limit records, newest first; limit <= 0 returns all.
	ListCommands(ctx context.Context, limit int) ([]CommandRecord, error)
}
