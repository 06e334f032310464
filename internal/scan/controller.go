// Package scan implements the scan controller: it receives decoded payloads
// from a capture feed and deduplicates them into the code store.
//
// The controller is a two-state machine over the feed:
//
//	Active --decode--> Paused --dwell elapsed--> Active
//	Paused --decode--> Paused (event ignored)
//
// Accepting a payload pauses the feed, beeps, checks the store and inserts
// the code when it is new. The feed stays paused for a fixed dwell interval
// and is then resumed. Because nothing is accepted while paused, at most one
// check-then-insert sequence is ever in flight.
//
// A Controller is owned by one goroutine. Run is that owner during a
// session; other goroutines reach it through Do. Without Run, the exported
// methods may be called directly from a single goroutine.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/scandb/scandb/internal/capture"
	"github.com/scandb/scandb/internal/share"
	"github.com/scandb/scandb/internal/store"
)

// DefaultDwell is how long the feed stays paused after a scan decision.
const DefaultDwell = 2000 * time.Millisecond

// User-facing messages.
const (
	MessageDuplicate    = "Code already exists"
	MessageFileNotFound = "Database file not found"
	MessageExportFailed = "Export failed"
	MessageUnavailable  = "Sharing not available"
)

// ErrNotRunning is returned by Do once Run has returned.
var ErrNotRunning = errors.New("controller not running")

// State is the pause state of the capture feed.
type State int

const (
	// StateActive accepts decoded payloads.
	StateActive State = iota
	// StatePaused ignores decoded payloads until the dwell elapses.
	StatePaused
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Outcome describes the transition that produced a Status.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeStored
	OutcomeDuplicate
	OutcomeIgnored
	OutcomeFailed
	OutcomeResumed
	OutcomeCleared
	OutcomeReset
	OutcomeExported
	OutcomeExportFailed
)

var outcomeNames = [...]string{
	OutcomeNone:         "none",
	OutcomeStored:       "stored",
	OutcomeDuplicate:    "duplicate",
	OutcomeIgnored:      "ignored",
	OutcomeFailed:       "failed",
	OutcomeResumed:      "resumed",
	OutcomeCleared:      "cleared",
	OutcomeReset:        "reset",
	OutcomeExported:     "exported",
	OutcomeExportFailed: "export_failed",
}

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// Status is a snapshot of the controller after a transition.
type Status struct {
	State   State
	Count   int
	Message string
	Outcome Outcome
	// Code is the payload the outcome refers to, if any.
	Code string
}

// Store is the code store the controller deduplicates against.
type Store interface {
	Exists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, code string) error
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
	Recreate(ctx context.Context) error
	Checkpoint(ctx context.Context) error
	Path() string
}

// Sharer hands a file to an export target.
type Sharer interface {
	Share(ctx context.Context, path string) (string, error)
}

// Beeper emits the audible confirmation for an accepted scan.
type Beeper interface {
	Beep()
}

// Clock provides the dwell timer.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type silentBeeper struct{}

func (silentBeeper) Beep() {}

// Config holds controller settings and collaborators.
type Config struct {
	// Dwell is how long the feed stays paused after each scan decision.
	Dwell time.Duration

	// Sharer receives the store file on export. Nil disables export.
	Sharer Sharer

	// Beeper is sounded on every accepted payload.
	Beeper Beeper

	// Clock drives the dwell timer.
	Clock Clock

	// OnStatus is called from the owning goroutine after every transition.
	OnStatus func(Status)

	// Logger for controller activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Dwell:  DefaultDwell,
		Beeper: silentBeeper{},
		Clock:  realClock{},
		Logger: log.New(io.Discard, "", 0),
	}
}

// Action is an operator action submitted through Do.
type Action int

const (
	ActionClear Action = iota + 1
	ActionReset
	ActionExport
)

// String returns a human-readable representation of the action.
func (a Action) String() string {
	switch a {
	case ActionClear:
		return "clear"
	case ActionReset:
		return "reset"
	case ActionExport:
		return "export"
	default:
		return "unknown"
	}
}

type request struct {
	action Action
	done   chan error
}

// Controller drives the scan deduplication workflow.
type Controller struct {
	store  Store
	feed   capture.Feed
	config Config

	state   State
	count   int
	message string
	// pending is shown once the dwell after a stored code elapses.
	pending string
	dwell   <-chan time.Time
	last    Status

	requests chan request
	stopped  chan struct{}
	running  atomic.Bool
}

// New creates a controller and loads the stored code count.
func New(ctx context.Context, st Store, feed capture.Feed, config Config) (*Controller, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if feed == nil {
		return nil, fmt.Errorf("feed cannot be nil")
	}

	defaults := DefaultConfig()
	if config.Dwell <= 0 {
		config.Dwell = defaults.Dwell
	}
	if config.Beeper == nil {
		config.Beeper = defaults.Beeper
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	count, err := st.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load code count: %w", err)
	}
	config.Logger.Printf("Database opened, found %d existing codes", count)

	c := &Controller{
		store:    st,
		feed:     feed,
		config:   config,
		state:    StateActive,
		count:    count,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
	c.last = c.snapshot(OutcomeNone, "")
	return c, nil
}

// Status returns the snapshot published by the latest transition.
func (c *Controller) Status() Status {
	return c.last
}

// HandleDecoded runs the deduplication workflow for one decoded payload.
//
// While paused the event is ignored. Otherwise the feed is paused, the code
// is checked and inserted if new, and the dwell timer is started; the feed
// resumes when the dwell elapses (see Settle and Run).
func (c *Controller) HandleDecoded(ctx context.Context, ev capture.Event) Outcome {
	c.message = ""

	if c.state == StatePaused {
		c.config.Logger.Printf("Ignoring %q while paused", ev.Payload)
		c.publish(OutcomeIgnored, ev.Payload)
		return OutcomeIgnored
	}

	c.feed.Pause()
	c.state = StatePaused
	c.config.Beeper.Beep()
	c.config.Logger.Printf("Barcode scanned (%s): %q", ev.Symbology, ev.Payload)

	outcome := c.dedupe(ctx, ev.Payload)

	c.dwell = c.config.Clock.After(c.config.Dwell)
	c.publish(outcome, ev.Payload)
	return outcome
}

func (c *Controller) dedupe(ctx context.Context, code string) Outcome {
	exists, err := c.store.Exists(ctx, code)
	if err != nil {
		c.config.Logger.Printf("Error checking code %q: %v", code, err)
		c.message = fmt.Sprintf("Scan failed: %v", err)
		return OutcomeFailed
	}
	if exists {
		c.config.Logger.Printf("Code already exists: %q", code)
		c.message = MessageDuplicate
		return OutcomeDuplicate
	}

	if err := c.store.Insert(ctx, code); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.message = MessageDuplicate
			return OutcomeDuplicate
		}
		c.config.Logger.Printf("Error inserting code %q: %v", code, err)
		c.message = fmt.Sprintf("Scan failed: %v", err)
		return OutcomeFailed
	}

	c.count++
	c.pending = fmt.Sprintf("Scanned code %s", code)
	return OutcomeStored
}

// Settle waits for a running dwell to elapse and resumes the feed. It
// returns immediately when the controller is not paused.
func (c *Controller) Settle(ctx context.Context) error {
	if c.dwell == nil {
		return nil
	}
	select {
	case <-c.dwell:
		c.finishDwell()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) finishDwell() {
	c.dwell = nil
	c.feed.Resume()
	c.state = StateActive
	if c.pending != "" {
		c.message = c.pending
		c.pending = ""
	}
	c.publish(OutcomeResumed, "")
}

// ClearAll deletes every stored code.
func (c *Controller) ClearAll(ctx context.Context) error {
	return c.resetAll(ctx, ActionClear)
}

// ResetStore drops and recreates the store's table.
//
// The result is indistinguishable from ClearAll; both entry points are kept
// because operators know them as separate controls.
func (c *Controller) ResetStore(ctx context.Context) error {
	return c.resetAll(ctx, ActionReset)
}

// resetAll empties the store and resynchronizes the count from it.
func (c *Controller) resetAll(ctx context.Context, action Action) error {
	op, outcome := c.store.DeleteAll, OutcomeCleared
	if action == ActionReset {
		op, outcome = c.store.Recreate, OutcomeReset
	}

	if err := op(ctx); err != nil {
		c.config.Logger.Printf("Error during %s: %v", action, err)
		c.message = fmt.Sprintf("%s failed: %v", action, err)
		c.publish(OutcomeFailed, "")
		return err
	}

	count, err := c.store.Count(ctx)
	if err != nil {
		c.config.Logger.Printf("Error counting codes after %s: %v", action, err)
		count = 0
	}
	c.count = count

	c.config.Logger.Printf("Store %s, %d codes remain", outcome, count)
	c.publish(outcome, "")
	return nil
}

// ExportStore hands the store's backing file to the share target and
// returns where it went. Failures are logged and reported in the status
// message; scanning is unaffected.
func (c *Controller) ExportStore(ctx context.Context) (string, error) {
	if c.config.Sharer == nil {
		c.message = MessageUnavailable
		c.publish(OutcomeExportFailed, "")
		return "", share.ErrUnavailable
	}

	if err := c.store.Checkpoint(ctx); err != nil {
		c.config.Logger.Printf("Warning: %v", err)
	}

	dest, err := c.config.Sharer.Share(ctx, c.store.Path())
	switch {
	case errors.Is(err, share.ErrFileNotFound):
		c.config.Logger.Printf("Export failed: %v", err)
		c.message = MessageFileNotFound
		c.publish(OutcomeExportFailed, "")
		return "", err
	case err != nil:
		c.config.Logger.Printf("Export failed: %v", err)
		c.message = MessageExportFailed
		c.publish(OutcomeExportFailed, "")
		return "", err
	}

	c.config.Logger.Printf("Exported %s to %s", c.store.Path(), dest)
	c.message = fmt.Sprintf("Database exported to %s", dest)
	c.publish(OutcomeExported, "")
	return dest, nil
}

// Run owns the controller until ctx is done or the feed closes. It handles
// decoded payloads, dwell expiry and actions submitted through Do. A dwell
// in progress at shutdown still runs to completion. Run may be called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("controller already running")
	}
	defer close(c.stopped)

	c.config.Logger.Println("Scan loop started")
	c.publish(OutcomeNone, "")

	events := c.feed.Events()
	for {
		select {
		case <-ctx.Done():
			c.config.Logger.Println("Shutdown signal received")
			_ = c.Settle(context.Background())
			return nil

		case ev, ok := <-events:
			if !ok {
				c.config.Logger.Println("Feed closed")
				_ = c.Settle(context.Background())
				return nil
			}
			if ctx.Err() != nil {
				// Shutting down; the next iteration takes ctx.Done.
				c.config.Logger.Printf("Shutting down, leaving %q unhandled", ev.Payload)
				continue
			}
			c.HandleDecoded(ctx, ev)

		case <-c.dwell:
			c.finishDwell()

		case req := <-c.requests:
			req.done <- c.apply(ctx, req.action)
		}
	}
}

func (c *Controller) apply(ctx context.Context, action Action) error {
	switch action {
	case ActionClear:
		return c.ClearAll(ctx)
	case ActionReset:
		return c.ResetStore(ctx)
	case ActionExport:
		_, err := c.ExportStore(ctx)
		return err
	default:
		return fmt.Errorf("unknown action %d", action)
	}
}

// Do submits action to the running loop and waits for its result.
func (c *Controller) Do(ctx context.Context, action Action) error {
	req := request{action: action, done: make(chan error, 1)}

	select {
	case c.requests <- req:
	case <-c.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) snapshot(outcome Outcome, code string) Status {
	return Status{
		State:   c.state,
		Count:   c.count,
		Message: c.message,
		Outcome: outcome,
		Code:    code,
	}
}

func (c *Controller) publish(outcome Outcome, code string) {
	c.last = c.snapshot(outcome, code)
	if c.config.OnStatus != nil {
		c.config.OnStatus(c.last)
	}
}
