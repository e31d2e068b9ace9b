package geo

// MovingAverage is a bounded FIFO buffer of float64 samples used for
// smoothing noisy series. Push is O(1); Mean reports no value while empty.
// Not safe for concurrent use; callers hold their own locks.
type MovingAverage struct {
	samples []float64
	next    int
	full    bool
}

// NewMovingAverage creates a buffer with the given fixed capacity.
// Capacities below 1 are treated as 1.
func NewMovingAverage(capacity int) *MovingAverage {
	if capacity < 1 {
		capacity = 1
	}
	return &MovingAverage{samples: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest one when full.
func (m *MovingAverage) Push(v float64) {
	m.samples[m.next] = v
	m.next++
	if m.next == len(m.samples) {
		m.next = 0
		m.full = true
	}
}

// Len returns the number of samples currently held.
func (m *MovingAverage) Len() int {
	if m.full {
		return len(m.samples)
	}
	return m.next
}

// Mean returns the average of the held samples. The second return is false
// while the buffer is empty.
func (m *MovingAverage) Mean() (float64, bool) {
	n := m.Len()
	if n == 0 {
		return 0, false
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += m.samples[i]
	}
	return sum / float64(n), true
}

// Reset discards all samples and seeds the buffer with the given value.
func (m *MovingAverage) Reset(seed float64) {
	m.next = 0
	m.full = false
	m.Push(seed)
}

// Clear discards all samples.
func (m *MovingAverage) Clear() {
	m.next = 0
	m.full = false
}
