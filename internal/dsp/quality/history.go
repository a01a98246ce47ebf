package quality

// history keeps the most recent values up to a fixed capacity.
type history struct {
	values []float64
	limit  int
}

func newHistory(limit int) *history {
	return &history{
		values: make([]float64, 0, limit),
		limit:  limit,
	}
}

// push appends v, evicting the oldest value when full.
func (h *history) push(v float64) {
	if len(h.values) == h.limit {
		copy(h.values, h.values[1:])
		h.values = h.values[:h.limit-1]
	}

	h.values = append(h.values, v)
}

func (h *history) len() int {
	return len(h.values)
}

// snapshot returns the values oldest first. The slice is owned by the history.
func (h *history) snapshot() []float64 {
	return h.values
}

func (h *history) reset() {
	h.values = h.values[:0]
}
