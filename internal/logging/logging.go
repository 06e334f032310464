// Package logging sets up the rotating log file shared by every component.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the log output.
type Options struct {
	// File is the log file path. Empty disables file logging.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Verbose mirrors log lines to Stderr.
	Verbose bool
	Stderr  io.Writer
}

// Logs hands out component loggers writing to one destination.
type Logs struct {
	out    io.Writer
	closer io.Closer
}

// Open creates the log destination described by opts.
func Open(opts Options) (*Logs, error) {
	var writers []io.Writer
	l := &Logs{}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		writers = append(writers, lj)
		l.closer = lj
	}

	if opts.Verbose {
		stderr := opts.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
		writers = append(writers, stderr)
	}

	switch len(writers) {
	case 0:
		l.out = io.Discard
	case 1:
		l.out = writers[0]
	default:
		l.out = io.MultiWriter(writers...)
	}
	return l, nil
}

// Discard returns loggers that drop everything.
func Discard() *Logs {
	return &Logs{out: io.Discard}
}

// For returns a logger prefixed with "[component] ".
func (l *Logs) For(component string) *log.Logger {
	return log.New(l.out, "["+component+"] ", log.LstdFlags)
}

// Writer returns the underlying destination.
func (l *Logs) Writer() io.Writer {
	return l.out
}

// Close flushes and closes the log file.
func (l *Logs) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
