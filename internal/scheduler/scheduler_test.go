package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/taskrunner/internal/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type recorder struct {
	mu    sync.Mutex
	fired []string
	hook  func(name string)
}

func (r *recorder) run(_ context.Context, name string) {
	r.mu.Lock()
	r.fired = append(r.fired, name)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(name)
	}
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func newTestScheduler(clock *fakeClock, rec *recorder) *Scheduler {
	return New(rec.run, Config{Tick: 5 * time.Millisecond, Now: clock.Now}, logger.Nop())
}

func TestRunPending_IntervalFiresAtExactSpacing(t *testing.T) {
	start := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	clock := newFakeClock(start)
	rec := &recorder{}
	s := newTestScheduler(clock, rec)
	s.Rebuild([]Spec{{Name: "poll", Schedule: "every 5m"}})

	assert.Equal(t, 0, s.RunPending(context.Background(), clock.Advance(4*time.Minute+59*time.Second)))
	assert.Equal(t, 1, s.RunPending(context.Background(), clock.Advance(time.Second)))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, start.Add(10*time.Minute), entries[0].Next)

	assert.Equal(t, 0, s.RunPending(context.Background(), clock.Advance(time.Minute)))
	assert.Equal(t, []string{"poll"}, rec.names())
}

func TestRunPending_DailyFiresOncePerDay(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 8, 0, 0, 0, time.Local))
	rec := &recorder{}
	s := newTestScheduler(clock, rec)
	s.Rebuild([]Spec{{Name: "nightly", Schedule: "09:00"}})

	fires := 0
	for i := 0; i < 72*60; i++ {
		fires += s.RunPending(context.Background(), clock.Advance(time.Minute))
	}
	assert.Equal(t, 3, fires)
}

func TestRunPending_OrderedByName(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	rec := &recorder{}
	s := newTestScheduler(clock, rec)
	s.Rebuild([]Spec{
		{Name: "charlie", Schedule: "every 1m"},
		{Name: "alpha", Schedule: "every 1m"},
		{Name: "bravo", Schedule: "every 1m"},
	})

	assert.Equal(t, 3, s.RunPending(context.Background(), clock.Advance(time.Minute)))
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, rec.names())
}

func TestRunPending_InvalidScheduleNeverFires(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	rec := &recorder{}
	s := newTestScheduler(clock, rec)
	s.Rebuild([]Spec{{Name: "broken", Schedule: "whenever"}})

	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, s.RunPending(context.Background(), clock.Advance(24*time.Hour)))
	}
	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Valid)
}

func TestRunPending_StopsWhenContextCancelled(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{hook: func(string) { cancel() }}
	s := newTestScheduler(clock, rec)
	s.Rebuild([]Spec{
		{Name: "a", Schedule: "every 1m"},
		{Name: "b", Schedule: "every 1m"},
	})

	assert.Equal(t, 1, s.RunPending(ctx, clock.Advance(time.Minute)))
	assert.Equal(t, []string{"a"}, rec.names())
}

func TestRebuild_PreservesUnchangedEntries(t *testing.T) {
	start := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	clock := newFakeClock(start)
	s := newTestScheduler(clock, &recorder{})
	s.Rebuild([]Spec{
		{Name: "keep", Schedule: "every 10m"},
		{Name: "change", Schedule: "every 10m"},
		{Name: "drop", Schedule: "every 10m"},
	})

	clock.Advance(3 * time.Minute)
	s.Rebuild([]Spec{
		{Name: "keep", Schedule: "every 10m"},
		{Name: "change", Schedule: "every 20m"},
		{Name: "new", Schedule: "every 1h"},
	})

	byName := map[string]Entry{}
	for _, e := range s.Entries() {
		byName[e.Name] = e
	}
	require.Len(t, byName, 3)
	assert.Equal(t, start.Add(10*time.Minute), byName["keep"].Next)
	assert.Equal(t, start.Add(23*time.Minute), byName["change"].Next)
	assert.Equal(t, start.Add(63*time.Minute), byName["new"].Next)
	assert.NotContains(t, byName, "drop")
}

func TestRebuild_DuringRunDoesNotResurrectReplacedEntry(t *testing.T) {
	start := time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local)
	clock := newFakeClock(start)
	rec := &recorder{}
	s := newTestScheduler(clock, rec)
	rec.hook = func(string) {
		s.Rebuild([]Spec{{Name: "job", Schedule: "every 30m"}})
	}
	s.Rebuild([]Spec{{Name: "job", Schedule: "every 1m"}})

	now := clock.Advance(time.Minute)
	assert.Equal(t, 1, s.RunPending(context.Background(), now))

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "every 30m", entries[0].Schedule)
	assert.Equal(t, now.Add(30*time.Minute), entries[0].Next)
}

func TestStartStop(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	rec := &recorder{}
	s := newTestScheduler(clock, rec)

	assert.False(t, s.Running())
	s.Stop()

	s.Start(context.Background(), []Spec{{Name: "poll", Schedule: "every 1m"}})
	assert.True(t, s.Running())
	s.Start(context.Background(), nil)
	require.Len(t, s.Entries(), 1, "second start must not rebuild")

	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return len(rec.names()) == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	clock.Advance(time.Hour)
	time.Sleep(30 * time.Millisecond)
	assert.Len(t, rec.names(), 1)
}

func TestStopDoesNotWaitForRunningTask(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	release := make(chan struct{})
	entered := make(chan struct{})
	rec := &recorder{hook: func(string) {
		close(entered)
		<-release
	}}
	s := newTestScheduler(clock, rec)
	s.Start(context.Background(), []Spec{{Name: "slow", Schedule: "every 1m"}})
	clock.Advance(time.Minute)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("task did not start")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on running task")
	}
	assert.False(t, s.Running())
	close(release)
}

func TestStopDoesNotCancelRunningTask(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	entered := make(chan struct{})
	release := make(chan struct{})
	bodyErr := make(chan error, 1)

	run := func(ctx context.Context, _ string) {
		close(entered)
		<-release
		bodyErr <- ctx.Err()
	}
	s := New(run, Config{Tick: 5 * time.Millisecond, Now: clock.Now}, logger.Nop())
	s.Start(context.Background(), []Spec{{Name: "slow", Schedule: "every 1m"}})
	clock.Advance(time.Minute)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("task did not start")
	}

	s.Stop()
	close(release)

	select {
	case err := <-bodyErr:
		assert.NoError(t, err, "a running body keeps a live context after Stop")
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}
	require.NoError(t, s.Wait(context.Background()))
}

func TestRestart(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	s := newTestScheduler(clock, &recorder{})

	s.Start(context.Background(), []Spec{{Name: "a", Schedule: "every 1m"}})
	s.Restart(context.Background(), []Spec{{Name: "b", Schedule: "every 1m"}})
	defer s.Stop()

	assert.True(t, s.Running())
	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)
}

func TestLoopPanicStopsScheduler(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	rec := &recorder{hook: func(string) { panic("run func exploded") }}
	s := newTestScheduler(clock, rec)

	s.Start(context.Background(), []Spec{{Name: "x", Schedule: "every 1m"}})
	clock.Advance(time.Minute)

	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)

	s.Start(context.Background(), []Spec{{Name: "x", Schedule: "every 1m"}})
	assert.True(t, s.Running())
	s.Stop()
}

func TestParentContextCancelStopsScheduler(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.Local))
	s := newTestScheduler(clock, &recorder{})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx, nil)
	cancel()

	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
}
