package notify

import (
	"math/rand/v2"
	"sync"
)

// Selector chooses which variant of a template is rendered.
type Selector interface {
	Pick(n int) int
}

// RandSelector picks uniformly with a seeded PCG source.
type RandSelector struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandSelector(seed uint64) *RandSelector {
	return &RandSelector{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *RandSelector) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(n)
}

// FixedSelector always returns the same variant index.
type FixedSelector int

func (f FixedSelector) Pick(n int) int {
	if int(f) >= n {
		return 0
	}
	return int(f)
}
