// Package device talks to the flow sensor / valve controller, either over a
// serial link or through an in-process simulation.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

var (
	ErrDeviceConnect = errors.New("device connect failed")
	ErrDeviceParse   = errors.New("device record malformed")
	ErrCommandSend   = errors.New("device command send failed")
)

type Mode string

const (
	ModeMock Mode = "MOCK"
	ModeLive Mode = "LIVE"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeMock:
		return ModeMock, nil
	case ModeLive:
		return ModeLive, nil
	}
	return "", fmt.Errorf("unknown device mode %q", s)
}

// Device is both the reading source and the command sink.
type Device interface {
	// Read returns the next reading, or false if none is pending.
	Read(ctx context.Context) (types.Reading, bool)
	// Send forwards a command; failures are logged and reported as false.
	Send(ctx context.Context, cmd types.Command) bool
	Mode() Mode
	Close() error
}

type Config struct {
	Mode        Mode
	Port        string
	BaudRate    int
	PollTimeout time.Duration
}

// Open returns a serial device in LIVE mode, falling back to the simulation
// when the port cannot be opened.
func Open(cfg Config, logger *slog.Logger) Device {
	if cfg.Mode == ModeLive {
		d, err := OpenSerial(cfg, logger)
		if err == nil {
			return d
		}
		logger.Warn("switching to simulated device", "port", cfg.Port, "error", err)
	}
	return NewSimulated(nil, logger)
}
