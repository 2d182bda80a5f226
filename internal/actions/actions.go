// Package actions implements the task bodies: cleanup, backup and alert.
// The Registry dispatches a task to the action registered for its type and
// turns every failure, including panics, into a result string.
package actions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/task"
)

// ErrorPrefix starts every failed result text.
const ErrorPrefix = "Error: "

// Action is a task body for one task type.
type Action interface {
	// Type returns the task type this action handles.
	Type() task.Type

	// Execute runs the body and returns a human-readable result.
	Execute(ctx context.Context, t task.Task) (string, error)
}

// Result is the outcome of one execution attempt.
type Result struct {
	Text     string
	Err      error
	Duration time.Duration
}

// OK reports whether the body completed without error.
func (r Result) OK() bool {
	return r.Err == nil
}

// Registry maps task types to actions.
type Registry struct {
	mu      sync.RWMutex
	actions map[task.Type]Action
	logger  *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		actions: make(map[task.Type]Action),
		logger:  log,
	}
}

// NewDefaultRegistry returns a registry with cleanup, backup and alert
// registered.
func NewDefaultRegistry(alerts *AlertLog, log *logger.Logger) *Registry {
	r := NewRegistry(log)
	_ = r.Register(NewCleanup())
	_ = r.Register(NewBackup())
	_ = r.Register(alerts)
	return r
}

// Register adds an action, replacing any action for the same type.
func (r *Registry) Register(a Action) error {
	if a == nil {
		return fmt.Errorf("cannot register nil action")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.actions[a.Type()] = a
	return nil
}

// Get returns the action for typ.
func (r *Registry) Get(typ task.Type) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.actions[typ]
	return a, ok
}

// Run executes t and never fails past this call: errors and panics are
// reported in the returned Result with an "Error: " prefixed text.
func (r *Registry) Run(ctx context.Context, t task.Task) (res Result) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
			res.Text = ErrorPrefix + res.Err.Error()
			r.logger.Error("task body panicked", res.Err,
				logger.Field{Key: "task", Value: t.Name})
		}
		res.Duration = time.Since(start)
	}()

	action, ok := r.Get(t.Type)
	if !ok {
		res.Err = fmt.Errorf("%w: %q", task.ErrUnknownType, t.Type)
		res.Text = ErrorPrefix + res.Err.Error()
		return res
	}

	text, err := action.Execute(ctx, t)
	if err != nil {
		res.Err = err
		res.Text = ErrorPrefix + err.Error()
		return res
	}

	res.Text = text
	return res
}
