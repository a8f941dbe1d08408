// Package local implements a page archive on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config captures the parameters for the local filesystem archive.
type Config struct {
	// BaseDir is the root directory where pages are stored.
	BaseDir string
	// RetentionDays caps how long day directories are kept. Zero keeps
	// everything.
	RetentionDays int
}

// Archive writes pages under BaseDir, one directory per menu day. Writes
// go through a temporary file so a crash never leaves a truncated page
// behind.
type Archive struct {
	cfg Config
}

// New validates the base directory and creates it when missing.
func New(cfg Config) (*Archive, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("retention days must not be negative")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	// Fail at startup, not on the first refresh, when the directory is
	// read-only.
	probe, err := os.MkdirTemp(cfg.BaseDir, ".probe-")
	if err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe directory: %w", err)
	}
	return &Archive{cfg: cfg}, nil
}

// PutObject stores one page and returns its file:// URI. An existing page
// at the same path is replaced.
func (a *Archive) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	rel := strings.TrimSpace(path)
	if rel == "" {
		return "", fmt.Errorf("path is required")
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("path %q escapes the archive", path)
	}

	fullPath := filepath.Join(a.cfg.BaseDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create day directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write page: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close page: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("move page into place: %w", err)
	}

	a.pruneExpired(time.Now())
	return "file://" + fullPath, nil
}

// pruneExpired removes day directories older than the retention window.
// Errors are swallowed: a failed prune never fails the archive write that
// triggered it.
func (a *Archive) pruneExpired(now time.Time) {
	if a.cfg.RetentionDays == 0 {
		return
	}
	y, m, d := now.AddDate(0, 0, -a.cfg.RetentionDays).Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	_ = filepath.WalkDir(a.cfg.BaseDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.IsDir() || path == a.cfg.BaseDir {
			return nil
		}
		day, parseErr := time.Parse(time.DateOnly, entry.Name())
		if parseErr != nil {
			// A prefix directory; day directories may sit below it.
			return nil
		}
		if day.Before(cutoff) {
			_ = os.RemoveAll(path)
		}
		return filepath.SkipDir
	})
}
