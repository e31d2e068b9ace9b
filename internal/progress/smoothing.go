package progress

import (
	"math"
	"sync"

	"github.com/mlenko/flightpath/internal/geo"
)

// Smoother holds per-flight anti-regression state: the last emitted percent
// and a bounded moving average. It guarantees the externally visible percent
// never decreases for a given key except via an explicit landed event, and
// dampens single-sample jitter.
//
// State is keyed by flight identity (plus diversion target, see
// Flight.SmoothingKey) and safe for concurrent use; last-writer-wins races
// between overlapping requests are acceptable because the emitted series is
// monotonic by construction.
type Smoother struct {
	window  int
	mu      sync.Mutex
	entries map[string]*smoothEntry
}

type smoothEntry struct {
	last int
	buf  *geo.MovingAverage
}

// NewSmoother creates a smoother with the given moving-average window.
func NewSmoother(window int) *Smoother {
	if window < 1 {
		window = 1
	}
	return &Smoother{
		window:  window,
		entries: make(map[string]*smoothEntry),
	}
}

// Apply feeds a raw percent through the per-key smoothing state and returns
// the percent to emit. A landed sample short-circuits to 100 and pins the
// state there.
func (s *Smoother) Apply(key string, raw int, landed bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		e = &smoothEntry{buf: geo.NewMovingAverage(s.window)}
		s.entries[key] = e
	}

	if landed {
		e.last = 100
		e.buf.Reset(100)
		return 100
	}

	if ok && raw < e.last {
		// Regression: treat as sensor/provider noise, hold the line.
		e.buf.Reset(float64(e.last))
		return e.last
	}

	if mean, has := e.buf.Mean(); has && float64(raw) < mean && raw != 100 {
		raw = int(math.Round(mean))
	}

	e.buf.Push(float64(raw))
	mean, _ := e.buf.Mean()
	emit := int(math.Round(mean))
	if emit < e.last {
		emit = e.last
	}
	if emit > 100 {
		emit = 100
	}

	e.last = emit
	return emit
}

// Last returns the last emitted percent for a key, if any.
func (s *Smoother) Last(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	return e.last, true
}

// Forget drops the smoothing state for a key. Used when a flight reaches a
// terminal state and its identity will not recur.
func (s *Smoother) Forget(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
