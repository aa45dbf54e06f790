package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/service"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

// startController runs a controller over h.monitor until the test ends.
func startController(t *testing.T, h *harness, interval time.Duration) *service.Controller {
	t.Helper()

	c := service.NewController(h.monitor, interval, silentLogger())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-errc:
		case <-time.After(2 * time.Second):
			t.Error("controller did not stop")
		}
	})
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestController_StartTicksImmediately(t *testing.T) {
	dev := newFakeDevice()
	dev.fixed = &types.Reading{FlowRate: 2.2, TankLevelPct: 80}
	h := newHarness(t, 14, dev)
	h.monitor.Stop()
	c := startController(t, h, time.Hour)
	ctx := context.Background()

	snap, err := c.StartMonitoring(ctx, nil)
	if err != nil {
		t.Fatalf("StartMonitoring: %v", err)
	}
	if !snap.Running || snap.Clock != "14:00:01" || snap.Reading == nil {
		t.Errorf("expected an immediate first tick, got %+v", snap)
	}

	// A second start while running must not tick again.
	snap, err = c.StartMonitoring(ctx, nil)
	if err != nil {
		t.Fatalf("StartMonitoring again: %v", err)
	}
	if snap.Clock != "14:00:01" {
		t.Errorf("clock = %s, want 14:00:01", snap.Clock)
	}
}

func TestController_TicksUntilStopped(t *testing.T) {
	dev := newFakeDevice()
	dev.fixed = &types.Reading{FlowRate: 2.2}
	h := newHarness(t, 14, dev)
	h.monitor.Stop()
	c := startController(t, h, 5*time.Millisecond)
	ctx := context.Background()

	if _, err := c.StartMonitoring(ctx, nil); err != nil {
		t.Fatalf("StartMonitoring: %v", err)
	}
	waitFor(t, func() bool {
		samples, err := c.History(ctx)
		return err == nil && len(samples) >= 3
	})

	snap, err := c.StopMonitoring(ctx)
	if err != nil {
		t.Fatalf("StopMonitoring: %v", err)
	}
	if snap.Running {
		t.Error("expected Running=false after stop")
	}

	before, _ := c.History(ctx)
	time.Sleep(30 * time.Millisecond)
	after, _ := c.History(ctx)
	if len(after) != len(before) {
		t.Errorf("ticks continued after stop: %d -> %d", len(before), len(after))
	}
}

func TestController_CommandsRunBetweenTicks(t *testing.T) {
	h := newHarness(t, 14, newFakeDevice())
	c := startController(t, h, time.Hour)
	ctx := context.Background()

	if _, err := c.OpenValve(ctx); !errors.Is(err, service.ErrManualControlLocked) {
		t.Fatalf("expected ErrManualControlLocked, got %v", err)
	}
	out, err := c.SetMode(ctx, types.ModeDisarmed)
	if err != nil || out.Command != types.CommandStopAll {
		t.Fatalf("SetMode: %+v %v", out, err)
	}
	if out, err = c.OpenValve(ctx); err != nil || out.Command != types.CommandOpenValve {
		t.Fatalf("OpenValve: %+v %v", out, err)
	}
	if out, err = c.CloseValve(ctx); err != nil || out.Command != types.CommandCloseValve {
		t.Fatalf("CloseValve: %+v %v", out, err)
	}
	if err := c.SetSpeed(ctx, 0); !errors.Is(err, service.ErrInvalidSpeed) {
		t.Errorf("expected ErrInvalidSpeed, got %v", err)
	}
	if err := c.SetNightWindow(ctx, types.NightWindow{StartHour: 0, EndHour: 4}); err != nil {
		t.Errorf("SetNightWindow: %v", err)
	}

	snap, err := c.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Mode != types.ModeDisarmed || snap.NightWindow.EndHour != 4 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestController_StoppedLoopRejectsCommands(t *testing.T) {
	h := newHarness(t, 14, newFakeDevice())
	c := service.NewController(h.monitor, time.Hour, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}

	if _, err := c.Snapshot(context.Background()); !errors.Is(err, service.ErrControllerStopped) {
		t.Fatalf("expected ErrControllerStopped, got %v", err)
	}
	if h.monitor.Running() {
		t.Error("monitor must stop with the controller")
	}
}
