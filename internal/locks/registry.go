// ABOUTME: Thread-safe registry of per-key mutexes with idle-entry cleanup.
// ABOUTME: Used to serialize chat requests racing on the same conversation.

package locks

import (
	"sync"
	"time"
)

// entry tracks one keyed mutex plus enough bookkeeping to evict it once
// nobody holds or waits on it.
type entry struct {
	lock     sync.Mutex
	refs     int
	lastUsed time.Time
}

// Registry provides a mutex per key, created on demand. Idle entries are
// evicted by a background goroutine so the map does not grow with every
// conversation ever seen.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	done    chan struct{}
	closed  bool
}

// New creates a registry whose idle entries expire after ttl.
// A background goroutine periodically cleans up expired entries.
func New(ttl time.Duration) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go r.cleanup()
	return r
}

// Acquire locks the mutex for key, creating it if needed, and returns the
// release function. The entry cannot be evicted while any caller holds or
// waits on it.
func (r *Registry) Acquire(key string) (release func()) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &entry{}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	e.lock.Lock()

	return func() {
		e.lock.Unlock()
		r.mu.Lock()
		e.refs--
		e.lastUsed = time.Now()
		r.mu.Unlock()
	}
}

// Len returns the number of tracked entries. Exposed for tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// cleanup runs in a background goroutine, periodically removing idle entries.
func (r *Registry) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runCleanup()
		case <-r.done:
			return
		}
	}
}

// runCleanup removes all idle, unreferenced entries from the registry.
func (r *Registry) runCleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for key, e := range r.entries {
		if e.refs == 0 && now.Sub(e.lastUsed) > r.ttl {
			delete(r.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		close(r.done)
		r.closed = true
	}
}
