package share

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// DirTarget copies files into an export directory.
type DirTarget struct {
	fs    billy.Filesystem
	name  string
	now   func() time.Time
	check func() bool
}

// NewDirTarget returns a target writing into dir on the local disk.
func NewDirTarget(dir string) *DirTarget {
	d := NewFSTarget(osfs.New(dir), dir)
	d.check = func() bool {
		return dir != "" && os.MkdirAll(dir, 0755) == nil
	}
	return d
}

// NewFSTarget returns a target writing into fs. name labels the destination
// in messages.
func NewFSTarget(fs billy.Filesystem, name string) *DirTarget {
	return &DirTarget{
		fs:    fs,
		name:  name,
		now:   time.Now,
		check: func() bool { return fs != nil },
	}
}

// Name implements Target.
func (d *DirTarget) Name() string {
	return "dir"
}

// Available implements Target. A local export directory must exist or be
// creatable.
func (d *DirTarget) Available() bool {
	return d.check()
}

// Share implements Target. The copy is written under a temporary name and
// renamed into place so a partial file is never visible.
func (d *DirTarget) Share(ctx context.Context, path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	name := exportName(path, d.now())
	tmp := "." + name + ".tmp"

	dst, err := d.fs.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src}); err != nil {
		_ = dst.Close()
		_ = d.fs.Remove(tmp)
		return "", fmt.Errorf("failed to copy database: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = d.fs.Remove(tmp)
		return "", fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := d.fs.Rename(tmp, name); err != nil {
		_ = d.fs.Remove(tmp)
		return "", fmt.Errorf("failed to rename export: %w", err)
	}

	return filepath.Join(d.name, name), nil
}

// exportName builds "<base>-YYYYMMDD-HHMMSS<ext>" from the source path.
func exportName(path string, at time.Time) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	if ext == "" {
		ext = ".db"
	}
	return fmt.Sprintf("%s-%s%s", stem, at.Format("20060102-150405"), ext)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
