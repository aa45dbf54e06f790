package types

import (
	"fmt"
	"strconv"
	"strings"
)

type StatusLevel string

const (
	StatusInfo    StatusLevel = "info"
	StatusSuccess StatusLevel = "success"
	StatusWarning StatusLevel = "warning"
	StatusError   StatusLevel = "error"
)

type Status struct {
	Code   string      `json:"code"`
	Level  StatusLevel `json:"level"`
	Banner string      `json:"banner,omitempty"`
}

// StatusFor mirrors the dashboard's status tile and alert banner.
func StatusFor(mode Mode, v Violation, r Reading, clock string) Status {
	switch {
	case mode == ModeDisarmed:
		return Status{Code: "DISARMED", Level: StatusInfo, Banner: "SYSTEM DISARMED: Manual Control Enabled"}
	case v == ViolationCritical:
		return Status{Code: "LEAK DETECTED", Level: StatusError, Banner: "CRITICAL PIPE FAILURE! Flow: " + FormatFlow(r.FlowRate) + " L/m"}
	case v == ViolationNightLeak:
		return Status{Code: "NIGHT USAGE", Level: StatusWarning, Banner: fmt.Sprintf("UNAUTHORIZED NIGHT USAGE! (%s)", clock)}
	default:
		return Status{Code: "ARMED", Level: StatusSuccess}
	}
}

// FormatFlow renders a flow rate the way the device reports it: shortest
// representation, always with a decimal point ("8.0", "2.31").
func FormatFlow(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

type Snapshot struct {
	Running     bool        `json:"running"`
	Clock       string      `json:"clock"`
	Mode        Mode        `json:"mode"`
	NightWindow NightWindow `json:"night_window"`
	SpeedFactor int         `json:"speed_factor"`
	Reading     *Reading    `json:"reading,omitempty"`
	Violation   Violation   `json:"violation"`
	Totals      Totals      `json:"totals"`
	Status      Status      `json:"status"`
}
