// Package scheduler fires named tasks according to their schedule rules.
//
// A single loop goroutine wakes on every tick, collects the entries whose
// next fire time has passed, runs them one after another in name order and
// then advances each entry's next fire time. The recurrence set can be
// replaced at any time with Rebuild without stopping the loop.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aatumaykin/taskrunner/internal/logger"
	"github.com/aatumaykin/taskrunner/internal/metrics"
	"github.com/aatumaykin/taskrunner/internal/schedule"
)

// DefaultTick is the loop interval used when Config.Tick is not set.
const DefaultTick = time.Second

// RunFunc executes the task called name. It must handle its own failures.
type RunFunc func(ctx context.Context, name string)

// Spec describes one task to schedule.
type Spec struct {
	Name     string
	Schedule string
}

// Entry is a read-only view of a scheduled task.
type Entry struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	Valid    bool      `json:"valid"`
}

// Config tunes the scheduler.
type Config struct {
	Tick    time.Duration
	Now     func() time.Time
	Metrics *metrics.Metrics
}

type entry struct {
	name     string
	schedule string
	rule     schedule.Rule
	next     time.Time
}

// Scheduler owns the recurrence set and the loop goroutine.
type Scheduler struct {
	mu       sync.Mutex
	entries  map[string]*entry
	running  bool
	gen      uint64
	cancel   context.CancelFunc
	loopDone chan struct{}

	run     RunFunc
	tick    time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// New creates a stopped scheduler that calls run for every fire.
func New(run RunFunc, cfg Config, log *logger.Logger) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		run:     run,
		tick:    cfg.Tick,
		now:     cfg.Now,
		metrics: cfg.Metrics,
		logger:  log.With(logger.Field{Key: "component", Value: "scheduler"}),
	}
}

// Start builds the recurrence set from specs and starts the loop. Starting a
// running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context, specs []Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.entries = s.buildLocked(specs, nil)

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.gen++
	s.loopDone = make(chan struct{})
	s.metrics.SetSchedulerRunning(true)

	go s.loop(loopCtx, s.gen, s.loopDone)

	s.logger.Info("scheduler started",
		logger.Field{Key: "entries", Value: len(s.entries)},
		logger.Field{Key: "tick", Value: s.tick.String()})
}

// Stop cancels the loop and returns without waiting for an in-flight task.
// Stopping a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.stopLocked()
	s.logger.Info("scheduler stopped")
}

// Restart stops the scheduler and starts it again with specs.
func (s *Scheduler) Restart(ctx context.Context, specs []Spec) {
	s.Stop()
	s.Start(ctx, specs)
}

// Wait blocks until the most recently started loop has exited or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.loopDone
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Rebuild replaces the recurrence set. Entries whose name and schedule did
// not change keep their pending fire time.
func (s *Scheduler) Rebuild(specs []Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.buildLocked(specs, s.entries)
	s.logger.Debug("recurrence set rebuilt",
		logger.Field{Key: "entries", Value: len(s.entries)})
}

// Entries returns the recurrence set ordered by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Entry{
			Name:     e.name,
			Schedule: e.schedule,
			Next:     e.next,
			Valid:    e.rule != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunPending fires every entry due at now and returns how many fired. The
// loop calls it on each tick.
func (s *Scheduler) RunPending(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if e.rule != nil && !e.next.After(now) {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].name < due[j].name })

	// Stop ends the tick but never a body that has already started.
	runCtx := context.WithoutCancel(ctx)

	fired := 0
	for _, e := range due {
		if ctx.Err() != nil {
			break
		}

		s.run(runCtx, e.name)
		fired++

		s.mu.Lock()
		// A rebuild during the run may have replaced the entry.
		if cur, ok := s.entries[e.name]; ok && cur == e {
			e.next = e.rule.Next(now)
		}
		s.mu.Unlock()
	}
	return fired
}

func (s *Scheduler) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("scheduler loop crashed", fmt.Errorf("panic: %v", p))
		}
		s.markStopped(gen)
	}()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunPending(ctx, s.now())
		}
	}
}

// markStopped moves the scheduler to stopped if gen is still the current
// loop.
func (s *Scheduler) markStopped(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen == gen && s.running {
		s.stopLocked()
		s.logger.Warn("scheduler loop exited")
	}
}

func (s *Scheduler) stopLocked() {
	s.cancel()
	s.running = false
	s.metrics.SetSchedulerRunning(false)
}

func (s *Scheduler) buildLocked(specs []Spec, prev map[string]*entry) map[string]*entry {
	now := s.now()
	next := make(map[string]*entry, len(specs))

	for _, spec := range specs {
		if old, ok := prev[spec.Name]; ok && old.schedule == spec.Schedule {
			next[spec.Name] = old
			continue
		}

		e := &entry{name: spec.Name, schedule: spec.Schedule}
		if rule, ok := schedule.Parse(spec.Schedule); ok {
			e.rule = rule
			e.next = rule.Next(now)
		} else {
			s.logger.Warn("unrecognized schedule, task will not fire",
				logger.Field{Key: "task", Value: spec.Name},
				logger.Field{Key: "schedule", Value: spec.Schedule})
		}
		next[spec.Name] = e
	}
	return next
}
