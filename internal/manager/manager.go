// Package manager is the facade over the task map, its store and the
// scheduler. Every mutation writes through to the store before it reports
// success and is followed by a rebuild of the scheduler's recurrence set.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/taskrunner/internal/actions"
	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/metrics"
	"github.com/aatumaykin/taskrunner/internal/schedule"
	"github.com/aatumaykin/taskrunner/internal/scheduler"
	"github.com/aatumaykin/taskrunner/internal/store"
	"github.com/aatumaykin/taskrunner/internal/task"
)

// ErrInvalidParams is returned by Add when the type specific parameters are
// incomplete.
var ErrInvalidParams = errors.New("invalid parameters")

var errNotFound = errors.New("task not found")

// Runner executes a task body. *actions.Registry implements it.
type Runner interface {
	Run(ctx context.Context, t task.Task) actions.Result
}

// Config tunes the manager.
type Config struct {
	// StrictSchedules rejects schedules the grammar does not recognize
	// instead of registering a task that never fires.
	StrictSchedules bool
	// Tick is the scheduler loop interval.
	Tick time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// AddRequest describes a task to create or overwrite.
type AddRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Schedule string `json:"schedule"`

	task.Params
}

// Manager owns the task map, the store and the scheduler.
type Manager struct {
	mu       sync.Mutex
	tasks    map[string]task.Task
	runLocks map[string]*sync.Mutex

	store   store.Store
	runner  Runner
	sched   *scheduler.Scheduler
	strict  bool
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// New loads the task map from st and prepares a stopped scheduler.
func New(st store.Store, runner Runner, cfg Config, m *metrics.Metrics, log *logger.Logger) *Manager {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	mgr := &Manager{
		tasks:    st.Load(),
		runLocks: make(map[string]*sync.Mutex),
		store:    st,
		runner:   runner,
		strict:   cfg.StrictSchedules,
		now:      cfg.Now,
		metrics:  m,
		logger:   log,
	}
	mgr.sched = scheduler.New(mgr.runScheduled, scheduler.Config{
		Tick:    cfg.Tick,
		Now:     cfg.Now,
		Metrics: m,
	}, log)

	mgr.mu.Lock()
	mgr.sched.Rebuild(mgr.specsLocked())
	mgr.updateGaugesLocked()
	mgr.mu.Unlock()

	log.Info("tasks loaded", logger.Field{Key: "count", Value: len(mgr.tasks)})
	return mgr
}

// Add creates the task described by req, overwriting any task with the same
// name.
func (m *Manager) Add(ctx context.Context, req AddRequest) error {
	name, err := task.NormalizeName(req.Name)
	if err != nil {
		return err
	}
	typ, err := task.ParseType(req.Type)
	if err != nil {
		return err
	}
	if err := req.Params.Validate(typ); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := schedule.Validate(req.Schedule); err != nil {
		if m.strict {
			return err
		}
		m.logger.WarnCtx(ctx, "task added with unrecognized schedule, it will not fire",
			logger.Field{Key: "task", Value: name},
			logger.Field{Key: "schedule", Value: req.Schedule})
	}

	t := task.Task{
		Name:     name,
		Type:     typ,
		Schedule: req.Schedule,
		Enabled:  true,
		Created:  m.now(),
		Params:   req.Params,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existed := false
	err = m.mutateLocked(func(tasks map[string]task.Task) error {
		_, existed = tasks[name]
		tasks[name] = t
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.InfoCtx(ctx, "task added",
		logger.Field{Key: "task", Value: name},
		logger.Field{Key: "type", Value: string(typ)},
		logger.Field{Key: "schedule", Value: t.Schedule},
		logger.Field{Key: "replaced", Value: existed})
	return nil
}

// Remove deletes the task. It reports false when no such task exists.
func (m *Manager) Remove(name string) (bool, error) {
	key, err := task.NormalizeName(name)
	if err != nil {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err = m.mutateLocked(func(tasks map[string]task.Task) error {
		if _, ok := tasks[key]; !ok {
			return errNotFound
		}
		delete(tasks, key)
		return nil
	})
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if l, ok := m.runLocks[key]; ok && l.TryLock() {
		delete(m.runLocks, key)
		l.Unlock()
	}

	m.logger.Info("task removed", logger.Field{Key: "task", Value: key})
	return true, nil
}

// Toggle flips the enabled flag. It reports false when no such task exists.
func (m *Manager) Toggle(name string) (bool, error) {
	key, err := task.NormalizeName(name)
	if err != nil {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	enabled := false
	err = m.mutateLocked(func(tasks map[string]task.Task) error {
		t, ok := tasks[key]
		if !ok {
			return errNotFound
		}
		t.Enabled = !t.Enabled
		tasks[key] = t
		enabled = t.Enabled
		return nil
	})
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	m.logger.Info("task toggled",
		logger.Field{Key: "task", Value: key},
		logger.Field{Key: "enabled", Value: enabled})
	return true, nil
}

// Execute runs the task now, whatever the scheduler state. It reports false
// for a missing or disabled task. A failing body still reports true; its
// error text is stored as the task's last result. The returned error is
// only set when the result could not be persisted.
func (m *Manager) Execute(ctx context.Context, name string) (bool, error) {
	key, err := task.NormalizeName(name)
	if err != nil {
		return false, nil
	}
	return m.execute(ctx, key, false)
}

// List returns a snapshot of all tasks.
func (m *Manager) List() map[string]task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return task.CloneAll(m.tasks)
}

// Names returns the task names in sorted order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.tasks))
	for name := range m.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of one task.
func (m *Manager) Get(name string) (task.Task, bool) {
	key, err := task.NormalizeName(name)
	if err != nil {
		return task.Task{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[key]
	if !ok {
		return task.Task{}, false
	}
	c := t.Clone()
	c.Name = key
	return c, true
}

// Start starts the scheduler with the enabled tasks.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sched.Start(ctx, m.specsLocked())
}

// Stop stops the scheduler. A task body already running finishes on its own.
func (m *Manager) Stop() {
	m.sched.Stop()
}

// Wait blocks until the scheduler loop has exited or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	return m.sched.Wait(ctx)
}

// Running reports whether the scheduler is active.
func (m *Manager) Running() bool {
	return m.sched.Running()
}

// Schedules returns the upcoming fire times of enabled tasks.
func (m *Manager) Schedules() []scheduler.Entry {
	return m.sched.Entries()
}

func (m *Manager) runScheduled(ctx context.Context, name string) {
	if _, err := m.execute(ctx, name, true); err != nil {
		m.logger.ErrorCtx(ctx, "failed to record scheduled run", err,
			logger.Field{Key: "task", Value: name})
	}
}

func (m *Manager) execute(ctx context.Context, name string, scheduled bool) (bool, error) {
	m.mu.Lock()
	t, ok := m.tasks[name]
	if !ok || !t.Enabled {
		m.mu.Unlock()
		return false, nil
	}
	lock := m.runLockLocked(name)
	m.mu.Unlock()

	if scheduled {
		if !lock.TryLock() {
			m.logger.WarnCtx(ctx, "task still running, skipping scheduled run",
				logger.Field{Key: "task", Value: name})
			m.metrics.IncSkipped()
			return false, nil
		}
	} else {
		lock.Lock()
	}
	defer lock.Unlock()

	// The task may have changed while waiting for the run lock.
	m.mu.Lock()
	t, ok = m.tasks[name]
	if !ok || !t.Enabled {
		m.mu.Unlock()
		return false, nil
	}
	t = t.Clone()
	t.Name = name
	m.mu.Unlock()

	runID := uuid.NewString()
	log := m.logger.With(
		logger.Field{Key: "task", Value: name},
		logger.Field{Key: "run_id", Value: runID},
	)
	log.DebugCtx(ctx, "task started",
		logger.Field{Key: "type", Value: string(t.Type)},
		logger.Field{Key: "scheduled", Value: scheduled})

	res := m.runner.Run(ctx, t)
	m.metrics.RecordExecution(string(t.Type), res.OK(), res.Duration)

	if res.OK() {
		log.InfoCtx(ctx, "task executed",
			logger.Field{Key: "result", Value: res.Text},
			logger.Field{Key: "duration", Value: res.Duration.String()})
	} else {
		log.ErrorCtx(ctx, "task failed", res.Err,
			logger.Field{Key: "duration", Value: res.Duration.String()})
	}

	return true, m.record(name, res.Text)
}

// record stores the outcome of a run. A task removed meanwhile is left
// alone.
func (m *Manager) record(name, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.mutateLocked(func(tasks map[string]task.Task) error {
		cur, ok := tasks[name]
		if !ok {
			return errNotFound
		}
		cur.Record(m.now(), result)
		tasks[name] = cur
		return nil
	})
	if errors.Is(err, errNotFound) {
		return nil
	}
	return err
}

func (m *Manager) runLockLocked(name string) *sync.Mutex {
	l, ok := m.runLocks[name]
	if !ok {
		l = &sync.Mutex{}
		m.runLocks[name] = l
	}
	return l
}

// mutateLocked applies fn to the current stored document and, once it is
// saved, adopts the result as the in-memory map and rebuilds the schedule.
// Changes written by other processes are picked up on the way. On failure
// the in-memory map is left untouched.
func (m *Manager) mutateLocked(fn func(tasks map[string]task.Task) error) error {
	tasks, err := store.Update(m.store, fn)
	if errors.Is(err, errNotFound) {
		return err
	}
	if err != nil {
		m.logger.Error("failed to save tasks", err)
		return fmt.Errorf("save tasks: %w", err)
	}

	m.tasks = tasks
	m.sched.Rebuild(m.specsLocked())
	m.updateGaugesLocked()
	return nil
}

func (m *Manager) specsLocked() []scheduler.Spec {
	specs := make([]scheduler.Spec, 0, len(m.tasks))
	for name, t := range m.tasks {
		if !t.Enabled {
			continue
		}
		specs = append(specs, scheduler.Spec{Name: name, Schedule: t.Schedule})
	}
	return specs
}

func (m *Manager) updateGaugesLocked() {
	enabled := 0
	for _, t := range m.tasks {
		if t.Enabled {
			enabled++
		}
	}
	m.metrics.SetTaskCounts(enabled, len(m.tasks)-enabled)
}

// IsValidation reports whether err was caused by bad input rather than a
// storage failure.
func IsValidation(err error) bool {
	return errors.Is(err, task.ErrEmptyName) ||
		errors.Is(err, task.ErrUnknownType) ||
		errors.Is(err, schedule.ErrInvalidSchedule) ||
		errors.Is(err, ErrInvalidParams)
}
