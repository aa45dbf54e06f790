package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

const (
	defaultBaudRate    = 9600
	defaultPollTimeout = 100 * time.Millisecond

	// maxPending bounds the unterminated bytes kept between reads; a device
	// that never sends a newline cannot grow it without limit.
	maxPending = 4096
)

// Serial is a line-oriented link to the controller. Reads and writes share a
// mutex so only one operation is in flight on the port.
type Serial struct {
	mu      sync.Mutex
	port    io.ReadWriteCloser
	pending []byte
	buf     [256]byte
	logger  *slog.Logger
}

// OpenSerial opens cfg.Port. Reads on the returned device wait at most
// cfg.PollTimeout for data.
func OpenSerial(cfg Config, logger *slog.Logger) (*Serial, error) {
	name := strings.TrimSpace(cfg.Port)
	if name == "" {
		return nil, fmt.Errorf("%w: no serial port configured", ErrDeviceConnect)
	}
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = defaultBaudRate
	}
	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = defaultPollTimeout
	}

	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDeviceConnect, name, err)
	}
	if err := p.SetReadTimeout(poll); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: set read timeout on %s: %v", ErrDeviceConnect, name, err)
	}

	logger.Info("serial device connected", "port", name, "baud", baud)
	return NewSerial(p, logger), nil
}

// NewSerial wraps an already open transport.
func NewSerial(port io.ReadWriteCloser, logger *slog.Logger) *Serial {
	return &Serial{port: port, logger: logger}
}

func (s *Serial) Read(ctx context.Context) (types.Reading, bool) {
	if ctx.Err() != nil {
		return types.Reading{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.nextLine()
	if !ok {
		return types.Reading{}, false
	}

	r, err := ParseRecord(line)
	if err != nil {
		s.logger.Warn("device record rejected, using zero reading", "error", err)
		return types.Reading{}, true
	}
	return r, true
}

// nextLine returns the next complete line, reading from the port only while
// no complete line is buffered. Must be called with mu held.
func (s *Serial) nextLine() (string, bool) {
	for {
		if i := bytes.IndexByte(s.pending, '\n'); i >= 0 {
			line := string(bytes.TrimRight(s.pending[:i], "\r"))
			s.pending = append(s.pending[:0], s.pending[i+1:]...)
			return line, true
		}

		n, err := s.port.Read(s.buf[:])
		if n > 0 {
			s.pending = append(s.pending, s.buf[:n]...)
			if len(s.pending) > maxPending {
				s.logger.Warn("discarding unterminated device data", "bytes", len(s.pending))
				s.pending = s.pending[:0]
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Error("serial read failed", "error", err)
			}
			return "", false
		}
		if n == 0 {
			return "", false
		}
	}
}

func (s *Serial) Send(_ context.Context, cmd types.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.port, string(cmd)+"\n"); err != nil {
		s.logger.Error("command not delivered", "command", string(cmd), "error", fmt.Errorf("%w: %v", ErrCommandSend, err))
		return false
	}
	s.logger.Info("command sent", "command", string(cmd))
	return true
}

func (s *Serial) Mode() Mode { return ModeLive }

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}

var _ Device = (*Serial)(nil)
