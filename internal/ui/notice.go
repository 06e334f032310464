package ui

import (
	"bufio"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var noticeStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E57373"}).
	Padding(1, 4)

// Notice renders a boxed message.
func Notice(title, body string) string {
	text := RenderFail(title)
	if body != "" {
		text += "\n\n" + body
	}
	return noticeStyle.Render(text)
}

// ShowNotice writes a notice to w and, when in is a terminal, blocks until
// the operator presses Enter.
func ShowNotice(w io.Writer, in io.Reader, title, body string) {
	fmt.Fprintln(w, Notice(title, body))
	if !IsTerminal(in) {
		return
	}
	fmt.Fprint(w, RenderMuted("Press Enter to exit"))
	_, _ = bufio.NewReader(in).ReadString('\n')
}

// Confirm asks a yes/no question on the terminal.
func Confirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	return ok, nil
}
