package ui

import (
	"fmt"
	"io"

	"github.com/scandb/scandb/internal/scan"
)

// Tones accepted by NewBeeper.
const (
	ToneBell = "bell"
	ToneNone = "none"
)

// Bell sounds the terminal bell. Output that is not a terminal stays free
// of BEL bytes.
type Bell struct {
	w   io.Writer
	tty bool
}

// NewBell returns a bell ringing on w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w, tty: IsTerminal(w)}
}

// Beep writes BEL when w is a terminal.
func (b *Bell) Beep() {
	if !b.tty {
		return
	}
	_, _ = io.WriteString(b.w, "\a")
}

type mute struct{}

func (mute) Beep() {}

// NewBeeper returns the beeper for the configured tone.
func NewBeeper(tone string, w io.Writer) (scan.Beeper, error) {
	switch tone {
	case "", ToneBell:
		return NewBell(w), nil
	case ToneNone:
		return mute{}, nil
	default:
		return nil, fmt.Errorf("unknown tone %q (want %s or %s)", tone, ToneBell, ToneNone)
	}
}
