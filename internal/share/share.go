// Package share hands the store's backing file to an export target.
//
// A Target is the platform capability (an export directory, the OS file
// opener). A Sharer validates the file before handing it over: the file
// must exist and must look like a SQLite database.
package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// MIMEType is the content type of exported store files.
const MIMEType = "application/vnd.sqlite3"

var (
	// ErrFileNotFound is returned when the file to share does not exist.
	ErrFileNotFound = errors.New("database file not found")

	// ErrNotDatabase is returned when the file is not a SQLite database.
	ErrNotDatabase = errors.New("file is not a SQLite database")

	// ErrUnavailable is returned when the target cannot share on this system.
	ErrUnavailable = errors.New("sharing not available")
)

// Target delivers a file to somewhere outside the application.
type Target interface {
	// Name identifies the target in logs and messages.
	Name() string
	// Available reports whether the target can share on this system.
	Available() bool
	// Share delivers the file at path and returns where it went.
	Share(ctx context.Context, path string) (string, error)
}

// Sharer validates files before passing them to a Target.
type Sharer struct {
	target    Target
	available bool
	logger    *log.Logger
}

// NewSharer wraps target. Availability is checked once, here.
func NewSharer(target Target, logger *log.Logger) *Sharer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	available := target != nil && target.Available()
	if target != nil {
		logger.Printf("Share target %s available: %v", target.Name(), available)
	}
	return &Sharer{
		target:    target,
		available: available,
		logger:    logger,
	}
}

// Available reports the availability captured at construction.
func (s *Sharer) Available() bool {
	return s.available
}

// Share hands the file at path to the target and returns its destination.
func (s *Sharer) Share(ctx context.Context, path string) (string, error) {
	if !s.available {
		return "", ErrUnavailable
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect content type: %w", err)
	}
	if !mt.Is(MIMEType) {
		return "", fmt.Errorf("%w: detected %s", ErrNotDatabase, mt.String())
	}

	dest, err := s.target.Share(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to share via %s: %w", s.target.Name(), err)
	}

	s.logger.Printf("Shared %s (%d bytes) via %s to %s", path, info.Size(), s.target.Name(), dest)
	return dest, nil
}
