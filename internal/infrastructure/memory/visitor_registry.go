package memory

import (
	"context"
	"sync"
	"time"
)

type visitorEntry[T any] struct {
	value    T
	lastSeen time.Time
}

// VisitorRegistry holds one value per visitor id, such as the visitor's gate session.
// Entries idle for longer than the TTL are evicted by Sweep.
type VisitorRegistry[T any] struct {
	mu      sync.Mutex
	entries map[string]*visitorEntry[T]
	ttl     time.Duration
	now     func() time.Time
}

func NewVisitorRegistry[T any](ttl time.Duration) *VisitorRegistry[T] {
	return &VisitorRegistry[T]{
		entries: make(map[string]*visitorEntry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// GetOrCreate returns the visitor's value, building it with create on first sight.
func (r *VisitorRegistry[T]) GetOrCreate(visitorID string, create func() T) T {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.entries[visitorID]; ok {
		e.lastSeen = now
		return e.value
	}
	v := create()
	r.entries[visitorID] = &visitorEntry[T]{value: v, lastSeen: now}
	return v
}

// Get returns the visitor's value without creating one.
func (r *VisitorRegistry[T]) Get(visitorID string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[visitorID]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (r *VisitorRegistry[T]) Forget(visitorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, visitorID)
}

func (r *VisitorRegistry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts idle entries and returns how many were removed. keep, when set, can
// veto the eviction of an entry (for example a gate with an attempt in flight).
func (r *VisitorRegistry[T]) Sweep(now time.Time, keep func(T) bool) int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		if now.Sub(e.lastSeen) < r.ttl {
			continue
		}
		if keep != nil && keep(e.value) {
			continue
		}
		delete(r.entries, id)
		removed++
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (r *VisitorRegistry[T]) StartSweeper(ctx context.Context, interval time.Duration, keep func(T) bool) {
	if interval <= 0 || r.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Sweep(now, keep)
			}
		}
	}()
}
