package osc

// DefaultHistoryCapacity bounds each oscillator's retained samples.
const DefaultHistoryCapacity = 1000

// Sample is one retained (time, state) pair.
type Sample struct {
	Time  float64
	State State
}

// History is a bounded FIFO log of state samples, owned by exactly one
// oscillator. Once full, each append evicts the oldest sample. Backed by
// a ring so appends stay O(1) at capacity.
type History struct {
	samples []Sample
	head    int // index of the oldest sample
	count   int
}

// NewHistory creates an empty history holding at most capacity samples.
// Capacity must be positive.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{samples: make([]Sample, capacity)}
}

// Append records a sample, evicting the oldest if the buffer is full.
func (h *History) Append(t float64, s State) {
	idx := (h.head + h.count) % len(h.samples)
	h.samples[idx] = Sample{Time: t, State: s}
	if h.count < len(h.samples) {
		h.count++
	} else {
		h.head = (h.head + 1) % len(h.samples)
	}
}

// Len returns the number of retained samples.
func (h *History) Len() int { return h.count }

// Recent returns up to the n most recent samples in chronological order.
// Asking for more than is retained returns everything retained.
func (h *History) Recent(n int) []Sample {
	if n > h.count {
		n = h.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]Sample, n)
	start := h.head + h.count - n
	for i := 0; i < n; i++ {
		out[i] = h.samples[(start+i)%len(h.samples)]
	}
	return out
}
