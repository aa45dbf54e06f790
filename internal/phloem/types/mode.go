package types

import (
	"fmt"
	"strings"
)

type Mode string

const (
	ModeArmed    Mode = "ARMED"
	ModeDisarmed Mode = "DISARMED"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeArmed:
		return ModeArmed, nil
	case ModeDisarmed:
		return ModeDisarmed, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Command is a token understood by the valve/pump controller.
type Command string

const (
	CommandStopAll    Command = "STOP_ALL"
	CommandAutoMode   Command = "AUTO_MODE"
	CommandOpenValve  Command = "OPEN_VALVE"
	CommandCloseValve Command = "CLOSE_VALVE"
)

type NightWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

func (w NightWindow) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 {
		return fmt.Errorf("start_hour %d out of range 0..23", w.StartHour)
	}
	if w.EndHour < 0 || w.EndHour > 23 {
		return fmt.Errorf("end_hour %d out of range 0..23", w.EndHour)
	}
	return nil
}
