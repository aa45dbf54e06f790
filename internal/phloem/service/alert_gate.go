package service

import "time"

// AlertGate limits outbound alerts to one per cooldown of wall-clock time,
// whatever the violation type. It is independent of the virtual clock. A
// new alert needs strictly more than the cooldown since the last one.
type AlertGate struct {
	cooldown time.Duration
	now      func() time.Time
	last     time.Time
	sent     bool
}

func NewAlertGate(cooldown time.Duration, now func() time.Time) *AlertGate {
	if now == nil {
		now = time.Now
	}
	return &AlertGate{cooldown: cooldown, now: now}
}

// Allow reports whether an alert may go out now and, if so, starts a new
// cooldown.
func (g *AlertGate) Allow() bool {
	now := g.now()
	if g.sent && g.cooldown > 0 && now.Sub(g.last) <= g.cooldown {
		return false
	}
	g.last = now
	g.sent = true
	return true
}
