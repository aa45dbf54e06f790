package types

import "time"

// TimeOfDayLayout is how the virtual clock is shown and how events are stamped.
const TimeOfDayLayout = "15:04:05"

type Reading struct {
	FlowRate     float64 `json:"flow_rate"` // L/min
	LeakFlag     bool    `json:"leak_flag"`
	TankLevelPct int     `json:"tank_level_pct"`
}

// Sample is one archived reading in the history buffer.
type Sample struct {
	Time  string    `json:"time"`
	At    time.Time `json:"at"`
	Flow  float64   `json:"flow"`
	Level int       `json:"level"`
}
