package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

// ParseRecord decodes a "flow,leakFlag,level" line. Leak is set only for a
// flag value of 1.
func ParseRecord(line string) (types.Reading, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 3 {
		return types.Reading{}, fmt.Errorf("%w: want 3 fields, got %d in %q", ErrDeviceParse, len(parts), line)
	}

	flow, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || flow < 0 {
		return types.Reading{}, fmt.Errorf("%w: flow %q", ErrDeviceParse, parts[0])
	}
	leak, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return types.Reading{}, fmt.Errorf("%w: leak flag %q", ErrDeviceParse, parts[1])
	}
	level, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || level < 0 || level > 100 {
		return types.Reading{}, fmt.Errorf("%w: level %q", ErrDeviceParse, parts[2])
	}

	return types.Reading{FlowRate: flow, LeakFlag: leak == 1, TankLevelPct: level}, nil
}
