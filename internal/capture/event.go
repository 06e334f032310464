// Package capture provides the sources of decoded barcode payloads.
//
// A Feed emits one Event per decoded symbol and can be paused and resumed by
// its consumer. Three feeds are provided:
//
//   - LineFeed: reads one payload per line from an io.Reader. Keyboard-wedge
//     and serial scanners type decoded payloads followed by a newline.
//   - CommandFeed: runs an external decoder (for example `zbarcam --raw`) and
//     reads its standard output through a LineFeed.
//   - InboxFeed: watches a directory with fsnotify; every file dropped into it
//     holds one decoded payload.
//
// Payloads may carry a symbology identifier, either as an AIM prefix
// ("]d1" for Data Matrix, "]Q1" for QR ...) or in zbar style
// ("QR-Code:payload"). Only one symbology is enabled per feed; events of any
// other symbology are dropped before they reach the consumer.
package capture

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrClosed is returned when starting a feed that has been closed.
var ErrClosed = errors.New("feed closed")

// Symbology identifies the barcode type a payload was decoded from.
type Symbology int

const (
	// SymbologyUnknown means the payload carried no identifier.
	SymbologyUnknown Symbology = iota
	SymbologyDataMatrix
	SymbologyQR
	SymbologyCode128
	SymbologyCode39
	SymbologyEAN13
	SymbologyEAN8
	SymbologyUPCA
	SymbologyPDF417
	SymbologyAztec
)

var symbologyNames = map[Symbology]string{
	SymbologyUnknown:    "unknown",
	SymbologyDataMatrix: "datamatrix",
	SymbologyQR:         "qr",
	SymbologyCode128:    "code128",
	SymbologyCode39:     "code39",
	SymbologyEAN13:      "ean13",
	SymbologyEAN8:       "ean8",
	SymbologyUPCA:       "upca",
	SymbologyPDF417:     "pdf417",
	SymbologyAztec:      "aztec",
}

// String returns the configuration name of the symbology.
func (s Symbology) String() string {
	if name, ok := symbologyNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseSymbology returns the symbology for a configuration name such as
// "datamatrix" or "qr". Matching ignores case, dashes and underscores.
func ParseSymbology(name string) (Symbology, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(name))
	for sym, n := range symbologyNames {
		if sym != SymbologyUnknown && n == norm {
			return sym, nil
		}
	}
	return SymbologyUnknown, fmt.Errorf("unknown symbology %q", name)
}

// aimCodes maps the AIM code character (the one after ']') to a symbology.
var aimCodes = map[byte]Symbology{
	'd': SymbologyDataMatrix,
	'Q': SymbologyQR,
	'C': SymbologyCode128,
	'A': SymbologyCode39,
	'E': SymbologyEAN13,
	'L': SymbologyPDF417,
	'z': SymbologyAztec,
}

// zbarTypes maps decoder type names printed before a colon.
var zbarTypes = map[string]Symbology{
	"DataMatrix": SymbologyDataMatrix,
	"QR-Code":    SymbologyQR,
	"CODE-128":   SymbologyCode128,
	"CODE-39":    SymbologyCode39,
	"EAN-13":     SymbologyEAN13,
	"EAN-8":      SymbologyEAN8,
	"UPC-A":      SymbologyUPCA,
	"PDF417":     SymbologyPDF417,
	"Aztec":      SymbologyAztec,
}

// ParsePayload splits a decoded line into payload and symbology.
//
// Recognized forms:
//
//	]d1010012345678901    AIM identifier, payload after the 3-byte prefix
//	QR-Code:https://x.y   decoder type name before the first colon
//	ABC123                no identifier, SymbologyUnknown
//
// A trailing carriage return is removed; the payload is otherwise verbatim.
func ParsePayload(line string) (string, Symbology) {
	line = strings.TrimSuffix(line, "\r")

	if len(line) >= 3 && line[0] == ']' {
		if sym, ok := aimCodes[line[1]]; ok {
			if sym == SymbologyEAN13 && line[2] == '4' {
				sym = SymbologyEAN8
			}
			return line[3:], sym
		}
	}

	if i := strings.IndexByte(line, ':'); i > 0 {
		if sym, ok := zbarTypes[line[:i]]; ok {
			return line[i+1:], sym
		}
	}

	return line, SymbologyUnknown
}

// Event is a decoded payload emitted by a feed.
type Event struct {
	// Payload is the decoded text.
	Payload string
	// Symbology is the barcode type; never SymbologyUnknown once emitted.
	Symbology Symbology
	// At is when the feed received the payload.
	At time.Time
}

// Feed is a source of decoded payload events.
type Feed interface {
	// Events returns the channel of decoded payloads. It is closed when the
	// feed ends.
	Events() <-chan Event
	// Pause stops the feed from delivering new payloads.
	Pause()
	// Resume restarts delivery after Pause.
	Resume()
	// Close stops the feed and releases its resources.
	Close() error
}

// Config holds settings shared by all feeds.
type Config struct {
	// Symbology is the one enabled symbology. Payloads without an identifier
	// are assumed to be of this type.
	Symbology Symbology

	// ControlPrefix marks operator control lines on line based feeds.
	// Empty disables control lines.
	ControlPrefix string

	// OnControl receives operator controls read by line based feeds.
	OnControl func(Control)

	// Debounce is how long an inbox file must stay unchanged before it is read.
	Debounce time.Duration

	// Logger for feed activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Symbology:     SymbologyDataMatrix,
		ControlPrefix: ":",
		Debounce:      100 * time.Millisecond,
		Logger:        log.Default(),
	}
}

func (c *Config) normalize() {
	if c.Symbology == SymbologyUnknown {
		c.Symbology = SymbologyDataMatrix
	}
	if c.Debounce <= 0 {
		c.Debounce = 100 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// decode turns a raw payload into an Event, reporting false when the payload
// is empty or of a disabled symbology.
func (c *Config) decode(raw string, at time.Time) (Event, bool) {
	payload, sym := ParsePayload(raw)
	if payload == "" {
		return Event{}, false
	}
	if sym == SymbologyUnknown {
		sym = c.Symbology
	}
	if sym != c.Symbology {
		c.Logger.Printf("Dropping %s payload (enabled: %s)", sym, c.Symbology)
		return Event{}, false
	}
	return Event{Payload: payload, Symbology: sym, At: at}, true
}
