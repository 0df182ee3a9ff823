package feedback

import (
	"context"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

const (
	// DisplayFor is how long a toast stays fully visible.
	DisplayFor = 3 * time.Second
	// Transition is the slide-out time before removal.
	Transition = 300 * time.Millisecond
)

// Notification is a transient toast.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the toast has been fully dismissed at now.
func (n Notification) Expired(now time.Time) bool {
	return !n.ExpiresAt.IsZero() && !now.Before(n.ExpiresAt)
}

// Celebration describes the confetti burst fired on a successful unlock.
type Celebration struct {
	Particles  int     `json:"particles"`
	Spread     int     `json:"spread"`
	OriginY    float64 `json:"origin_y"`
	DurationMS int64   `json:"duration_ms"`
}

// DefaultCelebration matches the burst shown on the landing page.
func DefaultCelebration() Celebration {
	return Celebration{Particles: 100, Spread: 90, OriginY: 0.6, DurationMS: 2000}
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type Celebrator interface {
	Celebrate(ctx context.Context, c Celebration)
}
