package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/scandb/scandb/internal/scan"
)

// ProcessingLabel is shown while the capture feed is paused.
const ProcessingLabel = "Processing..."

// CountLabel formats the stored code count.
func CountLabel(n int) string {
	if n == 1 {
		return "1 code stored"
	}
	return fmt.Sprintf("%d codes stored", n)
}

// FormatStatus renders one status line: the count, the message if any, and
// the processing marker while paused.
func FormatStatus(st scan.Status) string {
	parts := []string{RenderAccent(CountLabel(st.Count))}

	if st.Message != "" {
		parts = append(parts, messageStyle(st.Outcome).Render(st.Message))
	}
	if st.State == scan.StatePaused {
		parts = append(parts, RenderMuted(ProcessingLabel))
	}
	return strings.Join(parts, RenderMuted("  |  "))
}

func messageStyle(o scan.Outcome) lipgloss.Style {
	switch o {
	case scan.OutcomeDuplicate:
		return warnStyle
	case scan.OutcomeFailed, scan.OutcomeExportFailed:
		return failStyle
	case scan.OutcomeResumed, scan.OutcomeStored, scan.OutcomeExported:
		return passStyle
	default:
		return lipgloss.NewStyle()
	}
}

// Screen prints controller status updates. On a terminal the line is
// redrawn in place; otherwise each distinct line is appended.
type Screen struct {
	w     io.Writer
	tty   bool
	mu    sync.Mutex
	last  string
	drawn bool
}

// NewScreen returns a screen writing to w.
func NewScreen(w io.Writer) *Screen {
	return &Screen{w: w, tty: IsTerminal(w)}
}

// Show renders st. Ignored scans do not redraw.
func (s *Screen) Show(st scan.Status) {
	if st.Outcome == scan.OutcomeIgnored {
		return
	}
	line := FormatStatus(st)

	s.mu.Lock()
	defer s.mu.Unlock()

	if line == s.last {
		return
	}
	s.last = line
	if s.tty {
		fmt.Fprintf(s.w, "\r\033[K%s", line)
		s.drawn = true
		return
	}
	fmt.Fprintln(s.w, line)
}

// Done ends an in-place line so later output starts on a fresh one.
func (s *Screen) Done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawn {
		fmt.Fprintln(s.w)
		s.drawn = false
	}
}
