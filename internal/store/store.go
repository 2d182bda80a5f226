// Package store persists the task map. The file backend writes the whole
// mapping as one JSON or YAML document; the sqlite backend keeps one row per
// task.
package store

import (
	"fmt"
	"strings"

	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/task"
)

const (
	// DriverFile selects FileStore.
	DriverFile = "file"
	// DriverSQLite selects SQLiteStore.
	DriverSQLite = "sqlite"
)

// Store loads and saves the complete task mapping.
//
// Load never fails: a missing or unreadable document yields an empty map and
// the problem is logged. Save replaces the previous content entirely.
type Store interface {
	Load() map[string]task.Task
	Save(tasks map[string]task.Task) error
	Close() error
}

// Locker is implemented by stores that can hold an exclusive lock shared
// with other processes using the same location.
type Locker interface {
	Lock() (unlock func(), err error)
}

// Config selects and locates a backend.
type Config struct {
	Driver string // file, sqlite
	Path   string
}

// Open returns the backend selected by cfg.Driver.
func Open(cfg Config, log *logger.Logger) (Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	switch strings.ToLower(cfg.Driver) {
	case "", DriverFile:
		return NewFileStore(cfg.Path, log), nil
	case DriverSQLite:
		return OpenSQLite(cfg.Path, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (expected: file, sqlite)", cfg.Driver)
	}
}

// withNames normalizes the keys of a loaded document and fills Name from
// them, since the name is not part of the serialized record. Legacy type
// spellings are mapped to their current form; unknown types are kept so the
// run reports them. Blank names are dropped.
func withNames(tasks map[string]task.Task) map[string]task.Task {
	out := make(map[string]task.Task, len(tasks))
	for key, t := range tasks {
		name, err := task.NormalizeName(key)
		if err != nil {
			continue
		}
		if typ, err := task.ParseType(string(t.Type)); err == nil {
			t.Type = typ
		}
		c := t.Clone()
		c.Name = name
		out[name] = c
	}
	return out
}
