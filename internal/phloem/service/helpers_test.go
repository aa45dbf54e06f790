package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/notify"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/service"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store/memory"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDevice replays queued readings and records every command it is sent.
type fakeDevice struct {
	mu       sync.Mutex
	readings []types.Reading
	fixed    *types.Reading
	sent     []types.Command
	sendOK   bool
}

func newFakeDevice(readings ...types.Reading) *fakeDevice {
	return &fakeDevice{readings: readings, sendOK: true}
}

func (d *fakeDevice) Read(context.Context) (types.Reading, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fixed != nil {
		return *d.fixed, true
	}
	if len(d.readings) == 0 {
		return types.Reading{}, false
	}
	r := d.readings[0]
	d.readings = d.readings[1:]
	return r, true
}

func (d *fakeDevice) Send(_ context.Context, cmd types.Command) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, cmd)
	return d.sendOK
}

func (d *fakeDevice) Sent() []types.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]types.Command(nil), d.sent...)
}

type fakeAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *fakeAlerter) Broadcast(_ context.Context, msg string) notify.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, msg)
	return notify.Report{Delivered: []string{"1"}}
}

func (a *fakeAlerter) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

type fakeSink struct {
	mu    sync.Mutex
	snaps []types.Snapshot
}

func (s *fakeSink) Publish(snap types.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *fakeSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}

// fakeClock is a settable wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	monitor  *service.Monitor
	device   *fakeDevice
	alerter  *fakeAlerter
	sink     *fakeSink
	events   *memory.EventStore
	commands *memory.CommandStore
	wall     *fakeClock
}

func intPtr(v int) *int { return &v }

// newHarness builds a monitor over fakes with the night window 22..6 and a
// virtual clock starting at startHour.
func newHarness(t *testing.T, startHour int, dev *fakeDevice) *harness {
	t.Helper()

	h := &harness{
		device:   dev,
		alerter:  &fakeAlerter{},
		sink:     &fakeSink{},
		events:   memory.NewEventStore(),
		commands: memory.NewCommandStore(),
		wall:     &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}

	m, err := service.NewMonitor(service.Config{
		Window:      types.NightWindow{StartHour: 22, EndHour: 6},
		SpeedFactor: 1,
		StartHour:   intPtr(startHour),
	}, service.Dependencies{
		Logger:   silentLogger(),
		Device:   h.device,
		Events:   h.events,
		Commands: h.commands,
		Alerter:  h.alerter,
		Sinks:    []service.StatusSink{h.sink},
		Now:      h.wall.Now,
	})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	if err := m.Start(nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.monitor = m
	return h
}

func (h *harness) listEvents(t *testing.T) []types.Event {
	t.Helper()
	evs, err := h.events.ListEvents(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	return evs
}
