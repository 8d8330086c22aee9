package hybrid

import "sync"

// PersistenceTracker keeps the most recent raw-anomaly flags and reports
// whether all of them are set. It is safe for concurrent use.
type PersistenceTracker struct {
	mu       sync.Mutex
	window   []bool
	capacity int
	observed uint64
}

// NewPersistenceTracker returns an empty tracker holding at most capacity flags.
// A capacity below 1 is treated as 1.
func NewPersistenceTracker(capacity int) *PersistenceTracker {
	if capacity < 1 {
		capacity = 1
	}
	return &PersistenceTracker{
		window:   make([]bool, 0, capacity),
		capacity: capacity,
	}
}

// Observe appends raw, evicts the oldest flags beyond capacity, and returns
// the AND over what remains. Until the window fills, only the flags seen so
// far are considered, so a first anomalous reading alerts immediately.
func (p *PersistenceTracker) Observe(raw bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.window = append(p.window, raw)
	if over := len(p.window) - p.capacity; over > 0 {
		n := copy(p.window, p.window[over:])
		p.window = p.window[:n]
	}
	p.observed++

	for _, v := range p.window {
		if !v {
			return false
		}
	}
	return true
}

// Len returns the number of flags currently held.
func (p *PersistenceTracker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.window)
}

// Capacity returns the configured window size.
func (p *PersistenceTracker) Capacity() int {
	return p.capacity
}

// Full reports whether the window holds capacity flags.
func (p *PersistenceTracker) Full() bool {
	return p.Len() == p.capacity
}

// Observed returns the total number of Observe calls since construction.
func (p *PersistenceTracker) Observed() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.observed
}

// Snapshot returns a copy of the window, oldest flag first.
func (p *PersistenceTracker) Snapshot() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bool, len(p.window))
	copy(out, p.window)
	return out
}
