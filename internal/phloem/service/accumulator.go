package service

import "github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"

// Accumulator keeps the running leak totals. Totals never decrease.
type Accumulator struct {
	totals types.Totals
}

// Apply folds one classified tick into the totals and returns the litres
// added. Only night leaks count; a critical leak is alerted on but its
// volume is not estimated.
func (a *Accumulator) Apply(v types.Violation, flow float64, tickSeconds int) float64 {
	if v != types.ViolationNightLeak {
		return 0
	}
	added := (flow / 60.0) * float64(tickSeconds)
	a.totals.NightViolations++
	a.totals.LeakVolumeLiters += added
	return added
}

func (a *Accumulator) Totals() types.Totals { return a.totals }
