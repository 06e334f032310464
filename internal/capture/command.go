package capture

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
)

// CommandFeed runs an external decoder and reads payloads from its stdout.
//
// Any decoder printing one payload per line works; zbarcam's default
// "TYPE:payload" output is recognized by ParsePayload.
type CommandFeed struct {
	*LineFeed

	cmd    *exec.Cmd
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewCommandFeed starts name with args and returns a feed over its output.
func NewCommandFeed(ctx context.Context, name string, args []string, config Config) (*CommandFeed, error) {
	if name == "" {
		return nil, fmt.Errorf("decoder command cannot be empty")
	}
	config.normalize()

	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("decoder %q not found: %w", name, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = config.Logger.Writer()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to attach decoder output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start decoder %q: %w", name, err)
	}
	config.Logger.Printf("Started decoder %s (pid %d)", name, cmd.Process.Pid)

	f := &CommandFeed{
		LineFeed: NewLineFeed(stdout, config),
		cmd:      cmd,
		cancel:   cancel,
	}
	if err := f.LineFeed.Start(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Close stops the decoder process and the feed.
func (f *CommandFeed) Close() error {
	f.closeOnce.Do(func() {
		f.cancel()
		_ = f.LineFeed.Close()
		// Wait closes the stdout pipe; the reader must be done with it first.
		<-f.LineFeed.finished
		if err := f.cmd.Wait(); err != nil && !isKilled(err) {
			f.closeErr = fmt.Errorf("decoder exited: %w", err)
		}
	})
	return f.closeErr
}

// isKilled reports whether err is the exit caused by our own cancellation.
func isKilled(err error) bool {
	exitErr, ok := err.(*exec.ExitError)
	return ok && !exitErr.Exited()
}
