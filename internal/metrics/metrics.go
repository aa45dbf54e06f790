// Package metrics exposes the monitor's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

const namespace = "phloem"

// Metrics implements the monitor's Recorder on a caller-supplied registry.
type Metrics struct {
	Ticks           prometheus.Counter
	Violations      *prometheus.CounterVec
	LeakVolume      prometheus.Gauge
	NightViolations prometheus.Gauge
	FlowRate        prometheus.Gauge
	TankLevel       prometheus.Gauge
	Alerts          *prometheus.CounterVec
	Commands        *prometheus.CounterVec
	Events          *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Monitoring ticks executed",
		}),
		Violations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_total",
			Help:      "Ticks classified as a violation, by type",
		}, []string{"violation"}),
		LeakVolume: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leak_volume_liters",
			Help:      "Estimated litres lost to night usage this session",
		}),
		NightViolations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "night_violations",
			Help:      "Night usage ticks this session",
		}),
		FlowRate: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flow_rate_lpm",
			Help:      "Last reported flow rate in litres per minute",
		}),
		TankLevel: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tank_level_percent",
			Help:      "Last reported tank level",
		}),
		// result: delivered | failed | suppressed
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert deliveries per recipient, and alerts held back by the cooldown",
		}, []string{"result"}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands sent to the controller",
		}, []string{"command", "result"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events written to the analytics log",
		}, []string{"violation"}),
	}
}

func (m *Metrics) ObserveTick(snap types.Snapshot) {
	m.Ticks.Inc()
	if snap.Violation != "" && snap.Violation != types.ViolationNone {
		m.Violations.WithLabelValues(string(snap.Violation)).Inc()
	}
	m.LeakVolume.Set(snap.Totals.LeakVolumeLiters)
	m.NightViolations.Set(float64(snap.Totals.NightViolations))
	if snap.Reading != nil {
		m.FlowRate.Set(snap.Reading.FlowRate)
		m.TankLevel.Set(float64(snap.Reading.TankLevelPct))
	}
}

func (m *Metrics) ObserveAlert(delivered, failed int) {
	m.Alerts.WithLabelValues("delivered").Add(float64(delivered))
	m.Alerts.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveAlertSuppressed() {
	m.Alerts.WithLabelValues("suppressed").Inc()
}

func (m *Metrics) ObserveCommand(cmd types.Command, sent bool) {
	result := "sent"
	if !sent {
		result = "failed"
	}
	m.Commands.WithLabelValues(string(cmd), result).Inc()
}

func (m *Metrics) ObserveEvent(v types.Violation) {
	m.Events.WithLabelValues(string(v)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
