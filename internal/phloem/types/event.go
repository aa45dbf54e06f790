package types

import "time"

type Violation string

const (
	ViolationNone      Violation = "NONE"
	ViolationNightLeak Violation = "NIGHT_LEAK"
	ViolationCritical  Violation = "CRITICAL"
)

type Totals struct {
	LeakVolumeLiters float64 `json:"leak_volume_liters"`
	NightViolations  int     `json:"night_violations"`
}

// Event is an entry of the analytics log. Timestamp is the virtual
// time-of-day, At the full virtual time and RecordedAt the wall clock.
type Event struct {
	ID         string    `json:"id"`
	Timestamp  string    `json:"timestamp"`
	At         time.Time `json:"at"`
	Violation  Violation `json:"event"`
	FlowRate   float64   `json:"flow_rate"`
	TotalWaste float64   `json:"total_waste"`
	RecordedAt time.Time `json:"recorded_at"`
}
