package feedback

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	domfeedback "github.com/Zhima-Mochi/paywall/internal/domain/feedback"

	"github.com/charmbracelet/lipgloss"
)

var toastColors = map[domfeedback.Severity]lipgloss.Color{
	domfeedback.SeveritySuccess: lipgloss.Color("#16a34a"),
	domfeedback.SeverityError:   lipgloss.Color("#dc2626"),
	domfeedback.SeverityInfo:    lipgloss.Color("#1f2937"),
}

// Terminal renders toasts and confetti as styled blocks on a writer.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) Notify(ctx context.Context, n domfeedback.Notification) {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.out, RenderToast(n))
}

func (t *Terminal) Celebrate(ctx context.Context, c domfeedback.Celebration) {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintln(t.out, RenderConfetti(c))
}

// RenderToast styles n with the background of its severity.
func RenderToast(n domfeedback.Notification) string {
	bg, ok := toastColors[n.Severity]
	if !ok {
		bg = toastColors[domfeedback.SeverityInfo]
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ffffff")).
		Background(bg).
		Padding(0, 2).
		Render(n.Message)
}

// RenderConfetti draws a single line burst sized by the particle count.
func RenderConfetti(c domfeedback.Celebration) string {
	palette := []lipgloss.Color{"#ec4899", "#facc15", "#22c55e", "#3b82f6", "#a855f7"}
	width := c.Particles / 5
	if width < 1 {
		width = 1
	}
	var b strings.Builder
	for i := 0; i < width; i++ {
		b.WriteString(lipgloss.NewStyle().Foreground(palette[i%len(palette)]).Render("*"))
	}
	return b.String()
}
