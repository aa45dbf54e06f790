package service

import "github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"

// IsNight reports whether hour falls inside the restricted window. A window
// with equal bounds covers the whole day; a start after the end wraps past
// midnight.
func IsNight(hour int, w types.NightWindow) bool {
	switch {
	case w.StartHour == w.EndHour:
		return true
	case w.StartHour > w.EndHour:
		return hour >= w.StartHour || hour < w.EndHour
	default:
		return w.StartHour <= hour && hour < w.EndHour
	}
}

// Classify applies the rule set to one armed reading. The leak flag wins
// over night usage.
func Classify(r types.Reading, night bool, threshold float64) types.Violation {
	if r.LeakFlag {
		return types.ViolationCritical
	}
	if night && r.FlowRate > threshold {
		return types.ViolationNightLeak
	}
	return types.ViolationNone
}
