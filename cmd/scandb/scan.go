package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scandb/scandb/internal/capture"
	"github.com/scandb/scandb/internal/config"
	"github.com/scandb/scandb/internal/scan"
	"github.com/scandb/scandb/internal/share"
	"github.com/scandb/scandb/internal/store"
	"github.com/scandb/scandb/internal/ui"
)

var scanCmd = &cobra.Command{
	Use:     "scan",
	GroupID: "scan",
	Short:   "Start an interactive scan session",
	Long: `Start a scan session reading decoded payloads from the configured source.

Sources:
  stdin    one payload per line (keyboard-wedge or serial scanners)
  command  an external decoder's output, e.g. "zbarcam --raw"
  inbox    one payload per file dropped into the inbox directory

Payloads may carry an AIM symbology identifier (]d1, ]Q1 ...) or a decoder
prefix (DataMatrix:, QR-Code: ...). Only the configured symbology is kept.

Control lines typed on stdin start with the control prefix (":" default):
  :clear      delete every stored code
  :reset      drop and recreate the table (alias :delete-db)
  :export     export the database to the share target
  :quit       end the session`,
	Run: func(cmd *cobra.Command, args []string) {
		err := runScan(cmd.Context(), openFeed)
		switch {
		case err == nil:
		case errors.Is(err, share.ErrUnavailable):
			ui.ShowNotice(os.Stderr, os.Stdin, scan.MessageUnavailable,
				fmt.Sprintf("Export target %q cannot be used on this system.", cfg.Export.Target))
			os.Exit(1)
		case errors.Is(err, errStoreUnavailable):
			ui.ShowNotice(os.Stderr, os.Stdin, "Database unavailable", err.Error())
			os.Exit(1)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	flags := scanCmd.Flags()
	flags.String("source", config.SourceStdin, "Capture source: stdin, command or inbox")
	flags.String("symbology", "datamatrix", "Enabled symbology (datamatrix, qr, code128, ean13 ...)")
	flags.Duration("dwell", scan.DefaultDwell, "Pause after each scan decision")
	flags.String("command", "", "Decoder command for the command source")
	flags.String("inbox", "", "Directory watched by the inbox source")
	flags.String("tone", ui.ToneBell, "Scan tone: bell or none")

	bindFlag(flags, "source", config.KeySource)
	bindFlag(flags, "symbology", config.KeySymbology)
	bindFlag(flags, "dwell", config.KeyDwell)
	bindFlag(flags, "command", config.KeyCommand)
	bindFlag(flags, "inbox", config.KeyInboxDir)
	bindFlag(flags, "tone", config.KeyTone)

	rootCmd.AddCommand(scanCmd)
}

// errStoreUnavailable marks a code store that could not be opened at startup.
var errStoreUnavailable = errors.New("code store unavailable")

// feedOpener creates and starts a capture source.
type feedOpener func(ctx context.Context, c config.Config, fc capture.Config) (capture.Feed, error)

// runScan runs one scan session. The store is opened and sharing is checked
// before any capture source exists; either failing ends startup with
// errStoreUnavailable or share.ErrUnavailable.
func runScan(parent context.Context, open feedOpener) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	symbology, err := capture.ParseSymbology(cfg.Symbology)
	if err != nil {
		return err
	}
	beeper, err := ui.NewBeeper(cfg.Tone, os.Stdout)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", errStoreUnavailable, err)
	}
	defer st.Close()

	// Sharing is checked once; without it the session does not start.
	sharer := share.NewSharer(newTarget(cfg), logs.For("share"))
	if !sharer.Available() {
		return share.ErrUnavailable
	}

	// Controls can arrive as soon as the feed starts, before the
	// controller exists.
	var ctlRef atomic.Pointer[scan.Controller]
	feedConfig := capture.Config{
		Symbology:     symbology,
		ControlPrefix: cfg.ControlPrefix,
		OnControl: func(c capture.Control) {
			handleControl(ctx, cancel, ctlRef.Load(), c)
		},
		Logger: logs.For("capture"),
	}

	feed, err := open(ctx, cfg, feedConfig)
	if err != nil {
		return err
	}
	defer feed.Close()

	screen := ui.NewScreen(os.Stdout)
	defer screen.Done()

	ctl, err := scan.New(ctx, st, feed, scan.Config{
		Dwell:    cfg.Dwell,
		Sharer:   sharer,
		Beeper:   beeper,
		OnStatus: screen.Show,
		Logger:   logs.For("scan"),
	})
	if err != nil {
		return err
	}
	ctlRef.Store(ctl)

	if cfg.Source != config.SourceStdin && ui.IsTerminal(os.Stdin) {
		controls := capture.NewLineFeed(os.Stdin, feedConfig)
		if err := controls.Start(); err != nil {
			return err
		}
		defer controls.Close()
		go drainPayloads(controls, feedConfig.Logger)
	}

	fmt.Printf("%s Scanning %s into %s\n", ui.RenderAccent("▶"), describeSource(cfg), st.Path())
	fmt.Printf("   %s\n\n", ui.RenderMuted("Ctrl+C or "+cfg.ControlPrefix+"quit to stop"))

	return ctl.Run(ctx)
}

// openStore opens the code store and ensures its schema.
func openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath(), store.WithLogger(logs.For("store")))
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// newTarget returns the configured share target.
func newTarget(c config.Config) share.Target {
	if c.Export.Target == config.TargetOpen {
		return share.NewOpenTarget()
	}
	return share.NewDirTarget(c.Export.Dir)
}

// openFeed creates and starts the configured capture source.
func openFeed(ctx context.Context, c config.Config, fc capture.Config) (capture.Feed, error) {
	switch c.Source {
	case config.SourceCommand:
		parts := strings.Fields(c.Command)
		if len(parts) == 0 {
			return nil, fmt.Errorf("decoder command is empty")
		}
		return capture.NewCommandFeed(ctx, parts[0], parts[1:], fc)

	case config.SourceInbox:
		f, err := capture.NewInboxFeed(c.Inbox.Dir, fc)
		if err != nil {
			return nil, err
		}
		if err := f.Start(); err != nil {
			_ = f.Close()
			return nil, err
		}
		return f, nil

	default:
		f := capture.NewLineFeed(os.Stdin, fc)
		if err := f.Start(); err != nil {
			return nil, err
		}
		return f, nil
	}
}

func describeSource(c config.Config) string {
	switch c.Source {
	case config.SourceCommand:
		return fmt.Sprintf("%s from %q", c.Symbology, c.Command)
	case config.SourceInbox:
		return fmt.Sprintf("%s from %s", c.Symbology, c.Inbox.Dir)
	default:
		return fmt.Sprintf("%s from stdin", c.Symbology)
	}
}

// handleControl maps an operator control line onto the running controller.
func handleControl(ctx context.Context, quit context.CancelFunc, ctl *scan.Controller, c capture.Control) {
	if c == capture.ControlQuit {
		quit()
		return
	}
	if ctl == nil {
		return
	}

	var action scan.Action
	switch c {
	case capture.ControlClear:
		action = scan.ActionClear
	case capture.ControlReset:
		action = scan.ActionReset
	case capture.ControlExport:
		action = scan.ActionExport
	default:
		return
	}

	if err := ctl.Do(ctx, action); err != nil {
		logs.For("scan").Printf("Control %s failed: %v", c, err)
	}
}

// drainPayloads discards payloads typed on the control terminal while
// another source is active.
func drainPayloads(f capture.Feed, logger *log.Logger) {
	for ev := range f.Events() {
		logger.Printf("Ignoring %q typed on the control terminal", ev.Payload)
	}
}
