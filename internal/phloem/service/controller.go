package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

var ErrControllerStopped = errors.New("controller stopped")

const DefaultTickInterval = time.Second

type op struct {
	fn   func(ctx context.Context)
	done chan struct{}
}

// Controller owns a Monitor and runs it on a single goroutine. Ticks come
// from a ticker while monitoring is running; operator commands are queued
// and executed between ticks.
type Controller struct {
	monitor  *Monitor
	interval time.Duration
	logger   *slog.Logger

	ops  chan op
	done chan struct{}

	// Loop-owned.
	ticker *time.Ticker
}

func NewController(m *Monitor, interval time.Duration, logger *slog.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		monitor:  m,
		interval: interval,
		logger:   logger,
		ops:      make(chan op),
		done:     make(chan struct{}),
	}
}

// Run drives the monitor until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.stopTicker()

	for {
		var tick <-chan time.Time
		if c.ticker != nil {
			tick = c.ticker.C
		}

		select {
		case <-ctx.Done():
			c.monitor.Stop()
			return ctx.Err()
		case o := <-c.ops:
			o.fn(ctx)
			close(o.done)
		case <-tick:
			c.monitor.Tick(ctx)
		}
	}
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (c *Controller) do(ctx context.Context, fn func(ctx context.Context)) error {
	o := op{fn: fn, done: make(chan struct{})}

	select {
	case c.ops <- o:
	case <-c.done:
		return ErrControllerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-o.done:
		return nil
	case <-c.done:
		select {
		case <-o.done:
			return nil
		default:
			return ErrControllerStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartMonitoring starts ticking. The first tick runs immediately.
// startHour only applies to the very first start of the session.
func (c *Controller) StartMonitoring(ctx context.Context, startHour *int) (types.Snapshot, error) {
	var (
		snap types.Snapshot
		err  error
	)
	doErr := c.do(ctx, func(ctx context.Context) {
		if c.monitor.Running() {
			snap = c.monitor.Snapshot()
			return
		}
		if err = c.monitor.Start(startHour); err != nil {
			return
		}
		c.ticker = time.NewTicker(c.interval)
		snap = c.monitor.Tick(ctx)
	})
	if doErr != nil {
		return types.Snapshot{}, doErr
	}
	return snap, err
}

func (c *Controller) StopMonitoring(ctx context.Context) (types.Snapshot, error) {
	var snap types.Snapshot
	err := c.do(ctx, func(context.Context) {
		c.stopTicker()
		c.monitor.Stop()
		snap = c.monitor.Snapshot()
	})
	return snap, err
}

func (c *Controller) SetMode(ctx context.Context, mode types.Mode) (CommandOutcome, error) {
	var (
		out CommandOutcome
		err error
	)
	if doErr := c.do(ctx, func(ctx context.Context) { out, err = c.monitor.SetMode(ctx, mode) }); doErr != nil {
		return CommandOutcome{}, doErr
	}
	return out, err
}

func (c *Controller) OpenValve(ctx context.Context) (CommandOutcome, error) {
	var (
		out CommandOutcome
		err error
	)
	if doErr := c.do(ctx, func(ctx context.Context) { out, err = c.monitor.OpenValve(ctx) }); doErr != nil {
		return CommandOutcome{}, doErr
	}
	return out, err
}

func (c *Controller) CloseValve(ctx context.Context) (CommandOutcome, error) {
	var (
		out CommandOutcome
		err error
	)
	if doErr := c.do(ctx, func(ctx context.Context) { out, err = c.monitor.CloseValve(ctx) }); doErr != nil {
		return CommandOutcome{}, doErr
	}
	return out, err
}

func (c *Controller) SetNightWindow(ctx context.Context, w types.NightWindow) error {
	var err error
	if doErr := c.do(ctx, func(context.Context) { err = c.monitor.SetNightWindow(w) }); doErr != nil {
		return doErr
	}
	return err
}

func (c *Controller) SetSpeed(ctx context.Context, factor int) error {
	var err error
	if doErr := c.do(ctx, func(context.Context) { err = c.monitor.SetSpeed(factor) }); doErr != nil {
		return doErr
	}
	return err
}

func (c *Controller) Snapshot(ctx context.Context) (types.Snapshot, error) {
	var snap types.Snapshot
	err := c.do(ctx, func(context.Context) { snap = c.monitor.Snapshot() })
	return snap, err
}

func (c *Controller) History(ctx context.Context) ([]types.Sample, error) {
	var samples []types.Sample
	err := c.do(ctx, func(context.Context) { samples = c.monitor.History() })
	return samples, err
}
