package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MaxLineLength bounds one input line. Longer lines are discarded and
// reading continues with the next line.
const MaxLineLength = 16 * 1024

var errLineTooLong = errors.New("line too long")

// LineFeed reads one decoded payload per line from a reader.
//
// Lines read while the feed is paused are discarded, the way a paused camera
// preview discards frames. Control lines are dispatched whether or not the
// feed is paused.
type LineFeed struct {
	r      io.Reader
	config Config

	events chan Event
	done   chan struct{}
	// finished is closed once nothing reads from r any more.
	finished chan struct{}
	paused   atomic.Bool

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewLineFeed creates a feed over r. Call Start to begin reading.
func NewLineFeed(r io.Reader, config Config) *LineFeed {
	config.normalize()
	return &LineFeed{
		r:      r,
		config: config,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start launches the reading goroutine.
func (f *LineFeed) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.started {
		return fmt.Errorf("line feed already started")
	}
	f.started = true

	go f.readLoop()
	return nil
}

// Events implements Feed.
func (f *LineFeed) Events() <-chan Event {
	return f.events
}

// Pause implements Feed.
func (f *LineFeed) Pause() {
	f.paused.Store(true)
}

// Resume implements Feed.
func (f *LineFeed) Resume() {
	f.paused.Store(false)
}

// IsPaused reports whether the feed is currently paused.
func (f *LineFeed) IsPaused() bool {
	return f.paused.Load()
}

// Close stops delivery. A read already blocked on the underlying reader
// returns on its own; the events channel closes once it does.
func (f *LineFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	close(f.done)

	if !f.started {
		close(f.events)
		close(f.finished)
	}
	return nil
}

func (f *LineFeed) readLoop() {
	defer close(f.finished)
	defer close(f.events)

	br := bufio.NewReader(f.r)
	for {
		line, err := readLine(br, MaxLineLength)
		if errors.Is(err, errLineTooLong) {
			f.config.Logger.Printf("Discarding line longer than %d bytes", MaxLineLength)
			continue
		}
		if err != nil {
			if err != io.EOF {
				f.config.Logger.Printf("Read error: %v", err)
			}
			return
		}

		select {
		case <-f.done:
			return
		default:
		}

		if !f.handleLine(line) {
			return
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// max is consumed up to its newline and reported as errLineTooLong.
func readLine(r *bufio.Reader, max int) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return "", err
		}
		if !tooLong {
			if len(buf)+len(chunk) > max {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return "", errLineTooLong
	}
	return string(buf), nil
}

// handleLine processes one input line. It returns false when the feed has
// been closed while delivering.
func (f *LineFeed) handleLine(line string) bool {
	if p := f.config.ControlPrefix; p != "" && strings.HasPrefix(line, p) {
		word := strings.TrimSuffix(strings.TrimPrefix(line, p), "\r")
		ctl, ok := ParseControl(word)
		if !ok {
			f.config.Logger.Printf("Unknown control %q", word)
			return true
		}
		if f.config.OnControl != nil {
			f.config.OnControl(ctl)
		}
		return true
	}

	ev, ok := f.config.decode(line, time.Now())
	if !ok {
		return true
	}

	if f.paused.Load() {
		f.config.Logger.Printf("Feed paused, discarding %q", ev.Payload)
		return true
	}

	select {
	case f.events <- ev:
		return true
	case <-f.done:
		return false
	}
}
