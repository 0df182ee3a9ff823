package feedback

import (
	"context"
	"sync"
	"time"

	domfeedback "github.com/Zhima-Mochi/paywall/internal/domain/feedback"
)

// maxToasts bounds the queue; older toasts are dropped first.
const maxToasts = 16

// Toaster is an in-memory toast queue. Toasts disappear once their display time and
// slide-out transition have both elapsed.
type Toaster struct {
	mu     sync.Mutex
	toasts []domfeedback.Notification
	now    func() time.Time
}

func NewToaster(now func() time.Time) *Toaster {
	if now == nil {
		now = time.Now
	}
	return &Toaster{now: now}
}

func (t *Toaster) Notify(ctx context.Context, n domfeedback.Notification) {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = t.now()
	}
	if n.ExpiresAt.IsZero() {
		n.ExpiresAt = n.CreatedAt.Add(domfeedback.DisplayFor + domfeedback.Transition)
	}
	t.prune(t.now())
	t.toasts = append(t.toasts, n)
	if len(t.toasts) > maxToasts {
		t.toasts = append([]domfeedback.Notification(nil), t.toasts[len(t.toasts)-maxToasts:]...)
	}
}

// Active returns the toasts still on screen at now, oldest first.
func (t *Toaster) Active(now time.Time) []domfeedback.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(now)
	return append([]domfeedback.Notification(nil), t.toasts...)
}

func (t *Toaster) prune(now time.Time) {
	kept := t.toasts[:0]
	for _, n := range t.toasts {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	t.toasts = kept
}

// ConfettiRecorder keeps the celebrations fired for a visitor until the page consumes them.
type ConfettiRecorder struct {
	mu      sync.Mutex
	pending []domfeedback.Celebration
	fired   int
}

func NewConfettiRecorder() *ConfettiRecorder {
	return &ConfettiRecorder{}
}

func (c *ConfettiRecorder) Celebrate(ctx context.Context, cel domfeedback.Celebration) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, cel)
	c.fired++
}

// Drain returns and forgets the pending celebrations.
func (c *ConfettiRecorder) Drain() []domfeedback.Celebration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.pending
	c.pending = nil
	return out
}

// Fired reports how many celebrations were ever fired.
func (c *ConfettiRecorder) Fired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}
