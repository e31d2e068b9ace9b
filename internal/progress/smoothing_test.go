package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmootherFirstSamplePassesThrough(t *testing.T) {
	s := NewSmoother(3)
	assert.Equal(t, 10, s.Apply("f1", 10, false))
}

func TestSmootherNeverRegresses(t *testing.T) {
	s := NewSmoother(3)
	prev := 0
	for _, raw := range []int{10, 25, 18, 40, 5, 55, 54, 60} {
		got := s.Apply("f1", raw, false)
		assert.GreaterOrEqual(t, got, prev, "raw=%d", raw)
		prev = got
	}
}

func TestSmootherRegressionHoldsLastValue(t *testing.T) {
	s := NewSmoother(3)
	s.Apply("f1", 40, false)
	s.Apply("f1", 50, false)

	last, ok := s.Last("f1")
	assert.True(t, ok)

	// A lower raw sample is provider noise and must re-emit the last value
	assert.Equal(t, last, s.Apply("f1", 20, false))
}

func TestSmootherDampensJitter(t *testing.T) {
	s := NewSmoother(3)
	s.Apply("f1", 50, false)
	got := s.Apply("f1", 90, false)
	// Single spike is averaged down, not emitted verbatim
	assert.Less(t, got, 90)
	assert.GreaterOrEqual(t, got, 50)
}

func TestSmootherLandedPinsTo100(t *testing.T) {
	s := NewSmoother(3)
	s.Apply("f1", 60, false)
	assert.Equal(t, 100, s.Apply("f1", 97, true))
	// Noisy taxi-after-landing samples stay at 100
	assert.Equal(t, 100, s.Apply("f1", 40, false))
}

func TestSmootherKeysAreIndependent(t *testing.T) {
	s := NewSmoother(3)
	s.Apply("f1", 80, false)
	assert.Equal(t, 10, s.Apply("f2", 10, false))
}

func TestSmootherForget(t *testing.T) {
	s := NewSmoother(3)
	s.Apply("f1", 80, false)
	s.Forget("f1")
	_, ok := s.Last("f1")
	assert.False(t, ok)
	assert.Equal(t, 10, s.Apply("f1", 10, false))
}
