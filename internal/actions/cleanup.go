package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aatumaykin/taskrunner/internal/task"
)

// Cleanup deletes regular files matching the task's pattern directly inside
// source_dir whose modification time is older than days_old days.
type Cleanup struct {
	now func() time.Time
}

// NewCleanup creates the cleanup action.
func NewCleanup() *Cleanup {
	return &Cleanup{now: time.Now}
}

// Type returns task.TypeCleanup.
func (c *Cleanup) Type() task.Type {
	return task.TypeCleanup
}

// Execute removes matching files. Individual removal failures are counted
// and reported, not returned.
func (c *Cleanup) Execute(_ context.Context, t task.Task) (string, error) {
	dir := t.SourceDir
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("directory %s does not exist", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, t.Pattern()))
	if err != nil {
		return "", fmt.Errorf("invalid file pattern %q: %w", t.Pattern(), err)
	}

	deleted, failed := 0, 0
	days := t.CleanupAge()
	if days > task.MaxDaysOld {
		// No file can be that old.
		return fmt.Sprintf("Deleted %d files from %s", deleted, dir), nil
	}
	cutoff := c.now().Add(-time.Duration(days) * 24 * time.Hour)

	for _, path := range matches {
		fi, err := os.Lstat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		if !fi.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			failed++
			continue
		}
		deleted++
	}

	result := fmt.Sprintf("Deleted %d files from %s", deleted, dir)
	if failed > 0 {
		result += fmt.Sprintf(" (%d failed)", failed)
	}
	return result, nil
}
