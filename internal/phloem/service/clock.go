package service

import (
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

// VirtualClock is the simulated time used for the night window and event
// stamps. It only moves when advanced.
type VirtualClock struct {
	now time.Time
}

// NewVirtualClock starts at startHour:00:00 on base's date.
func NewVirtualClock(base time.Time, startHour int) *VirtualClock {
	return &VirtualClock{
		now: time.Date(base.Year(), base.Month(), base.Day(), startHour, 0, 0, 0, base.Location()),
	}
}

func (c *VirtualClock) Advance(seconds int) {
	c.now = c.now.Add(time.Duration(seconds) * time.Second)
}

func (c *VirtualClock) Now() time.Time { return c.now }

func (c *VirtualClock) Hour() int { return c.now.Hour() }

func (c *VirtualClock) TimeOfDay() string { return c.now.Format(types.TimeOfDayLayout) }
