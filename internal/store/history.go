package store

// History is a fixed-capacity FIFO ring of samples, oldest first.
//
// A History always holds exactly Len() values: each Push evicts the oldest
// value. History is not safe for concurrent use; [MemoryStore] serializes
// access.
type History struct {
	buf  []float64
	head int // index of the oldest sample
}

// NewHistory returns a History of capacity n filled with zeros. n must be
// positive.
func NewHistory(n int) *History {
	if n < 1 {
		panic("store: history capacity must be positive")
	}
	return &History{buf: make([]float64, n)}
}

// Push appends v and evicts the oldest sample.
func (h *History) Push(v float64) {
	h.buf[h.head] = v
	h.head = (h.head + 1) % len(h.buf)
}

// Latest returns the most recent sample.
func (h *History) Latest() float64 {
	return h.buf[(h.head+len(h.buf)-1)%len(h.buf)]
}

// Len returns the number of samples held, which is always the capacity.
func (h *History) Len() int {
	return len(h.buf)
}

// Values returns a copy of the samples, oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, len(h.buf))
	n := copy(out, h.buf[h.head:])
	copy(out[n:], h.buf[:h.head])
	return out
}
