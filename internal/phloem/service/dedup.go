package service

import (
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

const secondsPerDay = 24 * 60 * 60

// EventDeduper decides whether a violation starts a new event log entry.
// It compares against the newest recorded event using the time-of-day
// stamps only, so the gap is taken modulo one day: a gap that crosses
// midnight is measured correctly, a gap of whole days reads as zero.
type EventDeduper struct {
	cooldown time.Duration
	last     *types.Event
}

func NewEventDeduper(cooldown time.Duration) *EventDeduper {
	return &EventDeduper{cooldown: cooldown}
}

func (d *EventDeduper) ShouldRecord(v types.Violation, timeOfDay string) bool {
	if d.last == nil || d.last.Violation != v {
		return true
	}
	gap, ok := timeOfDayGap(d.last.Timestamp, timeOfDay)
	if !ok {
		return true
	}
	return gap > d.cooldown
}

// Recorded marks ev as the newest event in the log.
func (d *EventDeduper) Recorded(ev types.Event) {
	d.last = &ev
}

// Forget clears the newest event, as for an empty log.
func (d *EventDeduper) Forget() {
	d.last = nil
}

// timeOfDayGap returns (to - from) wrapped into [0, 24h).
func timeOfDayGap(from, to string) (time.Duration, bool) {
	a, err := time.Parse(types.TimeOfDayLayout, from)
	if err != nil {
		return 0, false
	}
	b, err := time.Parse(types.TimeOfDayLayout, to)
	if err != nil {
		return 0, false
	}
	secs := int(b.Sub(a) / time.Second)
	secs = ((secs % secondsPerDay) + secondsPerDay) % secondsPerDay
	return time.Duration(secs) * time.Second, true
}
