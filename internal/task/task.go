// Package task defines the task record shared by the store, the scheduler
// and the manager.
package task

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Type identifies which action runs when a task fires.
type Type string

const (
	// TypeCleanup deletes old files matching a pattern.
	TypeCleanup Type = "cleanup"
	// TypeBackup copies a directory into a timestamped backup folder.
	TypeBackup Type = "backup"
	// TypeAlert appends a line to the alert log.
	TypeAlert Type = "alert"
)

const (
	// DefaultDaysOld is used by cleanup tasks that do not set days_old.
	DefaultDaysOld = 7
	// DefaultFilePattern is used by cleanup tasks that do not set file_pattern.
	DefaultFilePattern = "*"
	// MaxDaysOld is the largest days_old whose age still fits in a
	// time.Duration.
	MaxDaysOld = int(math.MaxInt64 / int64(24*time.Hour))
)

var (
	// ErrEmptyName is returned when a task name is blank after normalization.
	ErrEmptyName = errors.New("task name is required")
	// ErrUnknownType is returned for task types outside cleanup, backup and alert.
	ErrUnknownType = errors.New("unknown task type")
)

// ParseType maps user input to a Type. The legacy spellings file_cleanup and
// file_backup are accepted.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cleanup", "file_cleanup":
		return TypeCleanup, nil
	case "backup", "file_backup":
		return TypeBackup, nil
	case "alert":
		return TypeAlert, nil
	default:
		return "", fmt.Errorf("%w: %q (expected: cleanup, backup, alert)", ErrUnknownType, s)
	}
}

// Task is a persisted task definition. Name is the map key in the store
// document and is not serialized inside the record.
type Task struct {
	Name       string     `json:"-" yaml:"-"`
	Type       Type       `json:"type" yaml:"type"`
	Schedule   string     `json:"schedule" yaml:"schedule"`
	Enabled    bool       `json:"enabled" yaml:"enabled"`
	Created    time.Time  `json:"created" yaml:"created"`
	LastRun    *time.Time `json:"last_run" yaml:"last_run"`
	LastResult *string    `json:"last_result,omitempty" yaml:"last_result,omitempty"`

	Params `yaml:",inline"`
}

// Params holds the type specific parameters. Only the fields relevant to the
// task's type are set.
type Params struct {
	SourceDir   string `json:"source_dir,omitempty" yaml:"source_dir,omitempty"`
	DaysOld     *int   `json:"days_old,omitempty" yaml:"days_old,omitempty"`
	FilePattern string `json:"file_pattern,omitempty" yaml:"file_pattern,omitempty"`
	BackupDir   string `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty"`
	Message     string `json:"message,omitempty" yaml:"message,omitempty"`
}

// CleanupAge returns days_old, falling back to DefaultDaysOld.
func (p Params) CleanupAge() int {
	if p.DaysOld == nil {
		return DefaultDaysOld
	}
	return *p.DaysOld
}

// Pattern returns file_pattern, falling back to DefaultFilePattern.
func (p Params) Pattern() string {
	if p.FilePattern == "" {
		return DefaultFilePattern
	}
	return p.FilePattern
}

// Validate checks that the parameters required by t are present.
func (p Params) Validate(t Type) error {
	switch t {
	case TypeCleanup:
		if p.SourceDir == "" {
			return errors.New("cleanup task requires source_dir")
		}
		if p.DaysOld != nil && *p.DaysOld < 0 {
			return errors.New("days_old cannot be negative")
		}
		if p.DaysOld != nil && *p.DaysOld > MaxDaysOld {
			return fmt.Errorf("days_old cannot exceed %d", MaxDaysOld)
		}
	case TypeBackup:
		if p.SourceDir == "" || p.BackupDir == "" {
			return errors.New("backup task requires source_dir and backup_dir")
		}
	case TypeAlert:
		if p.Message == "" {
			return errors.New("alert task requires message")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate shared pointers.
func (t Task) Clone() Task {
	c := t
	if t.LastRun != nil {
		v := *t.LastRun
		c.LastRun = &v
	}
	if t.LastResult != nil {
		v := *t.LastResult
		c.LastResult = &v
	}
	if t.DaysOld != nil {
		v := *t.DaysOld
		c.DaysOld = &v
	}
	return c
}

// Record stores the outcome of an execution attempt.
func (t *Task) Record(at time.Time, result string) {
	t.LastRun = &at
	t.LastResult = &result
}

// CloneAll deep-copies a task map.
func CloneAll(tasks map[string]Task) map[string]Task {
	out := make(map[string]Task, len(tasks))
	for name, t := range tasks {
		c := t.Clone()
		c.Name = name
		out[name] = c
	}
	return out
}
