package feedback

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	domfeedback "github.com/Zhima-Mochi/paywall/internal/domain/feedback"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToaster_ExpiresAfterDisplayAndTransition(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	toaster := NewToaster(func() time.Time { return now })

	toaster.Notify(context.Background(), domfeedback.Notification{Message: "Network error. Try again.", Severity: domfeedback.SeverityError})

	require.Len(t, toaster.Active(now.Add(3*time.Second)), 1)
	assert.Len(t, toaster.Active(now.Add(3299*time.Millisecond)), 1)
	assert.Empty(t, toaster.Active(now.Add(3300*time.Millisecond)))
}

func TestToaster_KeepsNewest(t *testing.T) {
	now := time.Now()
	toaster := NewToaster(func() time.Time { return now })
	for i := 0; i < maxToasts+4; i++ {
		toaster.Notify(context.Background(), domfeedback.Notification{ID: strconv.Itoa(i)})
	}

	active := toaster.Active(now)
	require.Len(t, active, maxToasts)
	assert.Equal(t, "4", active[0].ID)
	assert.Equal(t, strconv.Itoa(maxToasts+3), active[len(active)-1].ID)
}

func TestConfettiRecorder(t *testing.T) {
	c := NewConfettiRecorder()
	c.Celebrate(context.Background(), domfeedback.DefaultCelebration())

	assert.Equal(t, 1, c.Fired())
	assert.Equal(t, []domfeedback.Celebration{domfeedback.DefaultCelebration()}, c.Drain())
	assert.Empty(t, c.Drain())
	assert.Equal(t, 1, c.Fired())
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Notify(context.Background(), domfeedback.Notification{Message: "Thanks for the 2000 CFA!", Severity: domfeedback.SeveritySuccess})
	term.Celebrate(context.Background(), domfeedback.DefaultCelebration())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Thanks for the 2000 CFA!")
	assert.Equal(t, 20, strings.Count(lines[1], "*"))
}
