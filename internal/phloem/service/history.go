package service

import (
	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
	"github.com/BrandonDHaskell/Phloem/server/internal/ringbuf"
)

const DefaultHistorySize = 50

// History is the bounded sample buffer behind the flow and level charts.
type History struct {
	ring *ringbuf.Ring[types.Sample]
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{ring: ringbuf.New[types.Sample](size)}
}

func (h *History) Push(s types.Sample) { h.ring.Push(s) }

// Samples returns a copy of the buffer, oldest first.
func (h *History) Samples() []types.Sample { return h.ring.Items() }

func (h *History) Len() int { return h.ring.Len() }
