package share

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// OpenTarget hands files to the operating system's default handler.
type OpenTarget struct {
	command string
	args    []string
}

// NewOpenTarget returns the opener for the running OS.
func NewOpenTarget() *OpenTarget {
	switch runtime.GOOS {
	case "darwin":
		return &OpenTarget{command: "open"}
	case "windows":
		return &OpenTarget{command: "rundll32", args: []string{"url.dll,FileProtocolHandler"}}
	default:
		return &OpenTarget{command: "xdg-open"}
	}
}

// Name implements Target.
func (o *OpenTarget) Name() string {
	return "open"
}

// Available implements Target. The opener must be on PATH.
func (o *OpenTarget) Available() bool {
	_, err := exec.LookPath(o.command)
	return err == nil
}

// Share implements Target. The opener is started and not waited on; it
// outlives ctx.
func (o *OpenTarget) Share(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	args := append(append([]string{}, o.args...), path)
	cmd := exec.Command(o.command, args...)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to run %s: %w", o.command, err)
	}
	go func() { _ = cmd.Wait() }()
	return o.command, nil
}
