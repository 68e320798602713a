// Package estimate provides the random draws behind engine earnings
// estimates.
package estimate

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/smallbiznis/incomeengine/internal/engine/domain"
)

// Random is a mutex-guarded PCG generator shared by all engines.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom seeds the generator. A zero seed picks one from the clock.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))}
}

func (r *Random) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

func (r *Random) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Provide builds the production estimator from config.
func Provide(cfg config.Config) domain.Estimator {
	return NewRandom(cfg.EstimatorSeed)
}

// Fixed replays fixed sequences, cycling when exhausted. An empty sequence
// yields zero.
type Fixed struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
	i, f   int
}

func NewFixed(ints []int, floats []float64) *Fixed {
	return &Fixed{ints: ints, floats: floats}
}

func (x *Fixed) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.ints) == 0 {
		return 0
	}
	v := x.ints[x.i%len(x.ints)]
	x.i++
	if v < 0 {
		v = -v
	}
	return v % n
}

func (x *Fixed) Float64() float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.floats) == 0 {
		return 0
	}
	v := x.floats[x.f%len(x.floats)]
	x.f++
	if v < 0 || v >= 1 {
		return 0
	}
	return v
}

var (
	_ domain.Estimator = (*Random)(nil)
	_ domain.Estimator = (*Fixed)(nil)
)
