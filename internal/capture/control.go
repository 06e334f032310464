package capture

import "strings"

// Control is an operator action typed on a line based feed.
type Control int

const (
	// ControlClear deletes every stored code.
	ControlClear Control = iota + 1
	// ControlReset drops and recreates the store.
	ControlReset
	// ControlExport hands the store file to the share target.
	ControlExport
	// ControlQuit ends the scan session.
	ControlQuit
)

// String returns the canonical control name.
func (c Control) String() string {
	switch c {
	case ControlClear:
		return "clear"
	case ControlReset:
		return "reset"
	case ControlExport:
		return "export"
	case ControlQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// ParseControl maps a control word (without prefix) to a Control.
func ParseControl(word string) (Control, bool) {
	switch strings.ToLower(strings.TrimSpace(word)) {
	case "clear":
		return ControlClear, true
	case "reset", "delete-db", "deletedb":
		return ControlReset, true
	case "export", "share":
		return ControlExport, true
	case "quit", "q", "exit":
		return ControlQuit, true
	default:
		return 0, false
	}
}
