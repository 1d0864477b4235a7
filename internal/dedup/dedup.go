package dedup

import "sync"

// Default window sizing.
const (
	DefaultCapacity = 1000
	DefaultTrim     = 10
)

// Window is a bounded, insertion-ordered set of event ids. Once full, the
// oldest ids are evicted in batches of trim. Safe for concurrent use.
//
// An id can also be claimed: a claimed id is held outside the bounded order
// until it is committed or released, and no second claim succeeds meanwhile.
type Window struct {
	mu       sync.RWMutex
	order    []string
	set      map[string]struct{}
	claimed  map[string]struct{}
	capacity int
	trim     int
}

// New creates a window. capacity is clamped to at least 1 and trim to
// [1, capacity].
func New(capacity, trim int) *Window {
	capacity = max(capacity, 1)
	trim = min(max(trim, 1), capacity)
	return &Window{
		order:    make([]string, 0, capacity),
		set:      make(map[string]struct{}, capacity),
		claimed:  make(map[string]struct{}),
		capacity: capacity,
		trim:     trim,
	}
}

// Contains reports whether id is in the window.
func (w *Window) Contains(id string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.set[id]
	return ok
}

// Add records id. Adding an id already present is a no-op.
func (w *Window) Add(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.addLocked(id)
}

// TryClaim reserves id for the caller. It returns false when id is already
// recorded or claimed by someone else.
func (w *Window) TryClaim(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.set[id]; ok {
		return false
	}
	if _, ok := w.claimed[id]; ok {
		return false
	}
	w.claimed[id] = struct{}{}
	return true
}

// Commit turns a claim into a recorded id.
func (w *Window) Commit(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.claimed, id)
	w.addLocked(id)
}

// Release drops a claim without recording id, so it can be claimed again.
func (w *Window) Release(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.claimed, id)
}

func (w *Window) addLocked(id string) {
	if _, ok := w.set[id]; ok {
		return
	}
	if len(w.order) >= w.capacity {
		w.evictLocked()
	}
	w.order = append(w.order, id)
	w.set[id] = struct{}{}
}

// Compact evicts the oldest trim ids when the window is full.
func (w *Window) Compact() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.order) >= w.capacity {
		w.evictLocked()
	}
}

// Len returns the number of ids held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.order)
}

// Capacity returns the maximum number of ids held.
func (w *Window) Capacity() int {
	return w.capacity
}

func (w *Window) evictLocked() {
	n := min(w.trim, len(w.order))
	for _, id := range w.order[:n] {
		delete(w.set, id)
	}
	w.order = append(w.order[:0], w.order[n:]...)
}
