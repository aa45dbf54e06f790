package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store"
)

// EventPruner periodically deletes events recorded longer ago than the
// retention period. A retention of 0 disables pruning entirely.
type EventPruner struct {
	store     store.EventStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

type PrunerConfig struct {
	// Retention is how much event history to keep; 0 keeps everything.
	Retention time.Duration

	// Interval is how often the pruner runs. Defaults to one hour.
	Interval time.Duration
}

// NewEventPruner creates a pruner but does not start it.
func NewEventPruner(s store.EventStore, cfg PrunerConfig, logger *slog.Logger) *EventPruner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	return &EventPruner{
		store:     s,
		retention: cfg.Retention,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start runs an immediate prune, then repeats on the interval until ctx is
// cancelled or Stop is called.
func (p *EventPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("event pruner disabled", "retention", p.retention)
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Info("event pruner started", "retention", p.retention, "interval", p.interval)
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *EventPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *EventPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *EventPruner) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("event prune failed", "err", err)
		return
	}
	if deleted > 0 {
		p.logger.Info("event prune", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
}
