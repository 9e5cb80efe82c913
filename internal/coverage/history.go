package coverage

import "github.com/banshee-data/surface.capture/internal/geom"

// PositionHistory is a bounded ring buffer of recent camera positions, fed
// from the frame-event path and consumed by the motion heuristics.
type PositionHistory struct {
	positions []geom.Vec3
	capacity  int
	head      int // next write position
	size      int
}

// NewPositionHistory creates a history ring with the given capacity.
func NewPositionHistory(capacity int) *PositionHistory {
	if capacity < 1 {
		capacity = 60
	}
	return &PositionHistory{
		positions: make([]geom.Vec3, capacity),
		capacity:  capacity,
	}
}

// Add stores a position, overwriting the oldest once at capacity.
func (h *PositionHistory) Add(p geom.Vec3) {
	h.positions[h.head] = p
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Size returns the number of stored positions.
func (h *PositionHistory) Size() int { return h.size }

// Last returns up to n most recent positions ordered oldest to newest.
// Returns nil when the history is empty.
func (h *PositionHistory) Last(n int) []geom.Vec3 {
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]geom.Vec3, n)
	for i := 0; i < n; i++ {
		idx := (h.head - n + i + h.capacity) % h.capacity
		out[i] = h.positions[idx]
	}
	return out
}

// Latest returns the most recent position, if any.
func (h *PositionHistory) Latest() (geom.Vec3, bool) {
	if h.size == 0 {
		return geom.Vec3{}, false
	}
	return h.positions[(h.head-1+h.capacity)%h.capacity], true
}

// Clear drops all stored positions.
func (h *PositionHistory) Clear() {
	h.head = 0
	h.size = 0
}
