package chat

import (
	"fmt"
	"sync"
)

// DefaultHistorySize is the number of recent messages replayed to new joiners.
const DefaultHistorySize = 100

// History keeps a bounded, ordered log of broadcast messages.
// Once capacity is reached every append evicts the oldest entry.
type History struct {
	mu       sync.RWMutex
	capacity int
	lines    []string
}

// NewHistory builds a history buffer holding at most capacity lines.
func NewHistory(capacity int) (*History, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("chat.NewHistory: capacity (%d) must be greater than 0", capacity)
	}
	return &History{
		capacity: capacity,
		lines:    make([]string, 0, capacity),
	}, nil
}

// Append adds line as the newest entry and returns the resulting length.
func (h *History) Append(line string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.lines) == h.capacity {
		copy(h.lines, h.lines[1:])
		h.lines[len(h.lines)-1] = line
		return len(h.lines)
	}
	h.lines = append(h.lines, line)
	return len(h.lines)
}

// Snapshot copies the current entries, oldest first.
func (h *History) Snapshot() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, len(h.lines))
	copy(out, h.lines)
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lines)
}

// Cap returns the configured capacity.
func (h *History) Cap() int {
	return h.capacity
}
