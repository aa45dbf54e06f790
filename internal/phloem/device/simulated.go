package device

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

const (
	simFlowMin    = 2.0
	simFlowSpread = 0.5
	simLeakFlow   = 8.0
	simLeakChance = 0.05

	// Tank level is tracked in tenths of a percent; it drops 0.2% per reading.
	simTankFull = 1000
	simTankStep = 2
)

// Simulated produces plausible readings with occasional leak spikes.
type Simulated struct {
	mu     sync.Mutex
	rng    *rand.Rand
	tank   int
	logger *slog.Logger
}

// NewSimulated uses rng when given, otherwise a randomly seeded generator.
func NewSimulated(rng *rand.Rand, logger *slog.Logger) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulated{rng: rng, tank: simTankFull, logger: logger}
}

func (s *Simulated) Read(_ context.Context) (types.Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow := math.Round((simFlowMin+s.rng.Float64()*simFlowSpread)*100) / 100
	leak := false

	s.tank -= simTankStep
	if s.tank <= 0 {
		s.tank = simTankFull
	}

	if s.rng.Float64() > 1-simLeakChance {
		flow = simLeakFlow
		leak = true
	}

	return types.Reading{FlowRate: flow, LeakFlag: leak, TankLevelPct: s.tank / 10}, true
}

func (s *Simulated) Send(_ context.Context, cmd types.Command) bool {
	s.logger.Info("simulated command", "command", string(cmd))
	return true
}

func (s *Simulated) Mode() Mode { return ModeMock }

func (s *Simulated) Close() error { return nil }

var _ Device = (*Simulated)(nil)
