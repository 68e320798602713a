package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomIsDeterministicForSeed(t *testing.T) {
	a := NewRandom(42)
	b := NewRandom(42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Intn(100), b.Intn(100))
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestRandomBounds(t *testing.T) {
	r := NewRandom(7)
	for i := 0; i < 1000; i++ {
		v := r.Intn(10)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 10)
		f := r.Float64()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
	assert.Equal(t, 0, r.Intn(0))
}

func TestFixedCycles(t *testing.T) {
	f := NewFixed([]int{1, 7}, []float64{0.25})
	assert.Equal(t, 1, f.Intn(10))
	assert.Equal(t, 2, f.Intn(5))
	assert.Equal(t, 1, f.Intn(10))
	assert.Equal(t, 0.25, f.Float64())
	assert.Equal(t, 0.25, f.Float64())

	empty := NewFixed(nil, nil)
	assert.Equal(t, 0, empty.Intn(3))
	assert.Equal(t, 0.0, empty.Float64())
}
