package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/notify"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/store"
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

var (
	ErrManualControlLocked = errors.New("manual valve control is locked while armed")
	ErrInvalidMode         = errors.New("mode must be ARMED or DISARMED")
	ErrInvalidSpeed        = errors.New("speed factor must be between 1 and 3600")
	ErrInvalidNightWindow  = errors.New("invalid night window")
)

const (
	MinSpeedFactor = 1
	MaxSpeedFactor = 3600

	DefaultFlowThreshold = 0.5
	DefaultEventCooldown = 60 * time.Second
	DefaultAlertCooldown = 60 * time.Second
)

// Device is the part of the telemetry link the monitor needs.
type Device interface {
	Read(ctx context.Context) (types.Reading, bool)
	Send(ctx context.Context, cmd types.Command) bool
}

type Alerter interface {
	Broadcast(ctx context.Context, message string) notify.Report
}

// StatusSink receives a snapshot after every tick and state change.
type StatusSink interface {
	Publish(snap types.Snapshot)
}

// Recorder is the metrics surface of the monitor.
type Recorder interface {
	ObserveTick(snap types.Snapshot)
	ObserveAlert(delivered, failed int)
	ObserveAlertSuppressed()
	ObserveCommand(cmd types.Command, sent bool)
	ObserveEvent(v types.Violation)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTick(types.Snapshot) {}
func (nopRecorder) ObserveAlert(int, int) {}
func (nopRecorder) ObserveAlertSuppressed() {}
func (nopRecorder) ObserveCommand(types.Command, bool) {}
func (nopRecorder) ObserveEvent(types.Violation) {}

type Config struct {
	Window        types.NightWindow
	FlowThreshold float64
	SpeedFactor   int
	// StartHour is the virtual hour monitoring begins at; nil uses the
	// wall-clock hour at the first start.
	StartHour     *int
	EventCooldown time.Duration
	AlertCooldown time.Duration
	HistorySize   int
}

type Dependencies struct {
	Logger   *slog.Logger
	Device   Device
	Events   store.EventStore
	Commands store.CommandStore
	Alerter  Alerter
	Sinks    []StatusSink
	Metrics  Recorder
	Now      func() time.Time
	NewID    func() string
}

// CommandOutcome reports the command a state change issued, if any.
type CommandOutcome struct {
	Command types.Command `json:"command,omitempty"`
	Sent    bool          `json:"sent"`
}

// Monitor is the monitoring session: arm state, night window, virtual
// clock, totals, history and the two cooldowns. It is not safe for
// concurrent use; the Controller owns it.
type Monitor struct {
	cfg  Config
	deps Dependencies

	mode    types.Mode
	running bool
	clock   *VirtualClock

	acc     Accumulator
	history *History
	events  *EventDeduper
	alerts  *AlertGate

	reading   *types.Reading
	violation types.Violation
}

func NewMonitor(cfg Config, deps Dependencies) (*Monitor, error) {
	if deps.Device == nil {
		return nil, errors.New("monitor: device is required")
	}
	if deps.Events == nil || deps.Commands == nil {
		return nil, errors.New("monitor: event and command stores are required")
	}
	if err := cfg.Window.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNightWindow, err)
	}
	if cfg.SpeedFactor == 0 {
		cfg.SpeedFactor = MinSpeedFactor
	}
	if cfg.SpeedFactor < MinSpeedFactor || cfg.SpeedFactor > MaxSpeedFactor {
		return nil, ErrInvalidSpeed
	}
	if cfg.StartHour != nil && (*cfg.StartHour < 0 || *cfg.StartHour > 23) {
		return nil, fmt.Errorf("monitor: start hour %d out of range 0..23", *cfg.StartHour)
	}
	if cfg.FlowThreshold == 0 {
		cfg.FlowThreshold = DefaultFlowThreshold
	}
	if cfg.EventCooldown == 0 {
		cfg.EventCooldown = DefaultEventCooldown
	}
	if cfg.AlertCooldown == 0 {
		cfg.AlertCooldown = DefaultAlertCooldown
	}

	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	return &Monitor{
		cfg:       cfg,
		deps:      deps,
		mode:      types.ModeArmed,
		history:   NewHistory(cfg.HistorySize),
		events:    NewEventDeduper(cfg.EventCooldown),
		alerts:    NewAlertGate(cfg.AlertCooldown, deps.Now),
		violation: types.ViolationNone,
	}, nil
}

// Start begins a monitoring run. The virtual clock is created on the first
// start only; later starts resume where the clock stopped. startHour
// overrides the configured start hour for that first start.
func (m *Monitor) Start(startHour *int) error {
	if startHour != nil && (*startHour < 0 || *startHour > 23) {
		return fmt.Errorf("start hour %d out of range 0..23", *startHour)
	}
	m.ensureClock(startHour)
	if !m.running {
		m.running = true
		m.deps.Logger.Info("monitoring started", "clock", m.clock.TimeOfDay(), "speed", m.cfg.SpeedFactor)
	}
	m.publish()
	return nil
}

func (m *Monitor) ensureClock(startHour *int) {
	if m.clock != nil {
		return
	}
	base := m.deps.Now()
	hour := base.Hour()
	switch {
	case startHour != nil:
		hour = *startHour
	case m.cfg.StartHour != nil:
		hour = *m.cfg.StartHour
	}
	m.clock = NewVirtualClock(base, hour)
}

func (m *Monitor) Stop() {
	if !m.running {
		return
	}
	m.running = false
	m.deps.Logger.Info("monitoring stopped")
	m.publish()
}

func (m *Monitor) Running() bool { return m.running }

// SetMode arms or disarms the system. Only a transition sends a command:
// disarming sends STOP_ALL, arming sends AUTO_MODE.
func (m *Monitor) SetMode(ctx context.Context, mode types.Mode) (CommandOutcome, error) {
	if mode != types.ModeArmed && mode != types.ModeDisarmed {
		return CommandOutcome{}, ErrInvalidMode
	}
	if mode == m.mode {
		return CommandOutcome{}, nil
	}

	cmd := types.CommandAutoMode
	if mode == types.ModeDisarmed {
		cmd = types.CommandStopAll
	}
	m.mode = mode
	if mode == types.ModeDisarmed {
		m.violation = types.ViolationNone
	}
	m.deps.Logger.Info("mode changed", "mode", mode)

	out := m.send(ctx, cmd, store.OriginMode)
	m.publish()
	return out, nil
}

func (m *Monitor) Mode() types.Mode { return m.mode }

func (m *Monitor) OpenValve(ctx context.Context) (CommandOutcome, error) {
	return m.manual(ctx, types.CommandOpenValve)
}

func (m *Monitor) CloseValve(ctx context.Context) (CommandOutcome, error) {
	return m.manual(ctx, types.CommandCloseValve)
}

func (m *Monitor) manual(ctx context.Context, cmd types.Command) (CommandOutcome, error) {
	if m.mode == types.ModeArmed {
		return CommandOutcome{}, ErrManualControlLocked
	}
	return m.send(ctx, cmd, store.OriginManual), nil
}

func (m *Monitor) SetNightWindow(w types.NightWindow) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNightWindow, err)
	}
	m.cfg.Window = w
	m.publish()
	return nil
}

func (m *Monitor) SetSpeed(factor int) error {
	if factor < MinSpeedFactor || factor > MaxSpeedFactor {
		return ErrInvalidSpeed
	}
	m.cfg.SpeedFactor = factor
	m.publish()
	return nil
}

// Tick runs one monitoring cycle: advance the virtual clock, read, classify
// and accumulate, alert, archive the sample and log the event.
func (m *Monitor) Tick(ctx context.Context) types.Snapshot {
	m.ensureClock(nil)
	m.clock.Advance(m.cfg.SpeedFactor)
	tod := m.clock.TimeOfDay()

	r, ok := m.deps.Device.Read(ctx)
	if !ok {
		m.reading = nil
		m.violation = types.ViolationNone
		snap := m.Snapshot()
		m.deps.Metrics.ObserveTick(snap)
		m.emit(snap)
		return snap
	}

	v := types.ViolationNone
	armed := m.mode == types.ModeArmed
	if armed {
		v = Classify(r, IsNight(m.clock.Hour(), m.cfg.Window), m.cfg.FlowThreshold)
		m.acc.Apply(v, r.FlowRate, m.cfg.SpeedFactor)
	}
	m.reading = &r
	m.violation = v

	if armed && v != types.ViolationNone {
		m.alert(ctx, v, tod, r.FlowRate)
	}

	m.history.Push(types.Sample{Time: tod, At: m.clock.Now(), Flow: r.FlowRate, Level: r.TankLevelPct})

	if armed && v != types.ViolationNone {
		m.syncEventHead(ctx)
		if m.events.ShouldRecord(v, tod) {
			m.recordEvent(ctx, v, tod, r.FlowRate)
		}
	}

	snap := m.Snapshot()
	m.deps.Metrics.ObserveTick(snap)
	m.emit(snap)
	return snap
}

// AlertMessage is the text broadcast for a violation.
func AlertMessage(v types.Violation, timeOfDay string, flow float64) string {
	return fmt.Sprintf("ALERT: %s | Time: %s | Flow: %.1f L/m", v, timeOfDay, flow)
}

func (m *Monitor) alert(ctx context.Context, v types.Violation, tod string, flow float64) {
	if m.deps.Alerter == nil {
		return
	}
	if !m.alerts.Allow() {
		m.deps.Metrics.ObserveAlertSuppressed()
		return
	}

	report := m.deps.Alerter.Broadcast(ctx, AlertMessage(v, tod, flow))
	m.deps.Metrics.ObserveAlert(len(report.Delivered), len(report.Failed))
	if !report.OK() {
		m.deps.Logger.Warn("alert partially delivered",
			"violation", v, "delivered", len(report.Delivered), "failed", len(report.Failed))
	}
}

func (m *Monitor) recordEvent(ctx context.Context, v types.Violation, tod string, flow float64) {
	ev := types.Event{
		ID:         m.deps.NewID(),
		Timestamp:  tod,
		At:         m.clock.Now(),
		Violation:  v,
		FlowRate:   flow,
		TotalWaste: m.acc.Totals().LeakVolumeLiters,
		RecordedAt: m.deps.Now().UTC(),
	}
	if err := m.deps.Events.AppendEvent(ctx, ev); err != nil {
		m.deps.Logger.Error("event append failed", "violation", v, "err", err)
		return
	}
	m.events.Recorded(ev)
	m.deps.Metrics.ObserveEvent(v)
}

// syncEventHead points the deduper at the newest event in the store, so an
// entry removed by retention no longer suppresses the next one. On a read
// error the cached head is kept.
func (m *Monitor) syncEventHead(ctx context.Context) {
	head, err := m.deps.Events.ListEvents(ctx, 1)
	if err != nil {
		m.deps.Logger.Warn("event log head read failed", "err", err)
		return
	}
	if len(head) == 0 {
		m.events.Forget()
		return
	}
	m.events.Recorded(head[0])
}

func (m *Monitor) send(ctx context.Context, cmd types.Command, origin string) CommandOutcome {
	sent := m.deps.Device.Send(ctx, cmd)
	m.deps.Metrics.ObserveCommand(cmd, sent)

	rec := store.CommandRecord{Command: cmd, Origin: origin, Sent: sent, IssuedAt: m.deps.Now().UTC()}
	if err := m.deps.Commands.RecordCommand(ctx, rec); err != nil {
		m.deps.Logger.Error("command audit failed", "command", cmd, "err", err)
	}
	return CommandOutcome{Command: cmd, Sent: sent}
}

// Snapshot returns the current state without advancing anything.
func (m *Monitor) Snapshot() types.Snapshot {
	snap := types.Snapshot{
		Running:     m.running,
		Mode:        m.mode,
		NightWindow: m.cfg.Window,
		SpeedFactor: m.cfg.SpeedFactor,
		Violation:   m.violation,
		Totals:      m.acc.Totals(),
	}
	if m.clock != nil {
		snap.Clock = m.clock.TimeOfDay()
	}
	var r types.Reading
	if m.reading != nil {
		r = *m.reading
		snap.Reading = &r
	}
	snap.Status = types.StatusFor(m.mode, m.violation, r, snap.Clock)
	return snap
}

func (m *Monitor) History() []types.Sample { return m.history.Samples() }

func (m *Monitor) publish() { m.emit(m.Snapshot()) }

func (m *Monitor) emit(snap types.Snapshot) {
	for _, s := range m.deps.Sinks {
		s.Publish(snap)
	}
}
