package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func def(name, schedule string) conf.AlertDefinition {
	return conf.AlertDefinition{
		Name:     name,
		Schedule: schedule,
		Query:    "SELECT 'OK' AS status",
		Enabled:  true,
	}
}

func newTestScheduler(run RunFunc) *Scheduler {
	if run == nil {
		run = func(context.Context, *conf.AlertDefinition) {}
	}
	return New(time.UTC, run, nil, logger.NewDiscardLogger())
}

func stopScheduler(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestStart_RegistersEnabledJobs(t *testing.T) {
	s := newTestScheduler(nil)

	defs := []conf.AlertDefinition{
		def("a", "*/5 * * * *"),
		def("b", "0 9 * * *"),
		{Name: "c", Schedule: "* * * * *", Query: "SELECT 1", Enabled: false},
	}
	require.NoError(t, s.Start(defs))
	defer stopScheduler(t, s)

	assert.Equal(t, 2, s.JobCount(), "disabled alerts are not scheduled")

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "b", jobs[1].Name)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestStart_RejectsInvalidSchedule(t *testing.T) {
	s := newTestScheduler(nil)

	err := s.Start([]conf.AlertDefinition{def("a", "not cron")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
	assert.Zero(t, s.JobCount())
}

func TestStart_Twice(t *testing.T) {
	s := newTestScheduler(nil)
	require.NoError(t, s.Start(nil))
	defer stopScheduler(t, s)

	assert.Error(t, s.Start(nil))
}

func TestReload_ReplacesJobTable(t *testing.T) {
	s := newTestScheduler(nil)
	require.NoError(t, s.Start([]conf.AlertDefinition{def("a", "*/5 * * * *"), def("b", "*/5 * * * *")}))
	defer stopScheduler(t, s)

	require.NoError(t, s.Reload([]conf.AlertDefinition{def("b", "0 * * * *"), def("c", "*/10 * * * *")}))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].Name)
	assert.Equal(t, "0 * * * *", jobs[0].Schedule)
	assert.Equal(t, "c", jobs[1].Name)
}

func TestReload_InvalidSetKeepsCurrentJobs(t *testing.T) {
	s := newTestScheduler(nil)
	require.NoError(t, s.Start([]conf.AlertDefinition{def("a", "*/5 * * * *")}))
	defer stopScheduler(t, s)

	err := s.Reload([]conf.AlertDefinition{def("b", "*/5 * * * *"), def("broken", "bad")})
	require.Error(t, err)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "a", jobs[0].Name, "failed reload must not touch the job table")
}

func TestReload_IsIdempotent(t *testing.T) {
	s := newTestScheduler(nil)
	defs := []conf.AlertDefinition{def("a", "*/5 * * * *")}
	require.NoError(t, s.Start(defs))
	defer stopScheduler(t, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Reload(defs))
	}
	assert.Equal(t, 1, s.JobCount())
}

func TestFire_SkipsOverlappingRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs int
	var mu sync.Mutex

	s := newTestScheduler(func(context.Context, *conf.AlertDefinition) {
		mu.Lock()
		runs++
		mu.Unlock()
		close(started)
		<-release
	})

	d := def("slow", "* * * * *")
	j := &job{def: d}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.fire(j)
	}()
	<-started

	// Second fire while the first is still in flight must be dropped.
	s.fire(j)
	mu.Lock()
	assert.Equal(t, 1, runs)
	mu.Unlock()

	close(release)
	wg.Wait()

	// After completion the job can fire again.
	release = make(chan struct{})
	close(release)
	s.fire(j)
	mu.Lock()
	assert.Equal(t, 2, runs)
	mu.Unlock()
}

func TestFire_RecoversFromPanic(t *testing.T) {
	s := newTestScheduler(func(context.Context, *conf.AlertDefinition) {
		panic("boom")
	})

	j := &job{def: def("panicky", "* * * * *")}
	assert.NotPanics(t, func() { s.fire(j) })
	assert.False(t, j.running.Load(), "running guard is released after a panic")
}

func TestRequestReload_ConsumedByControlLoop(t *testing.T) {
	s := newTestScheduler(nil)
	require.NoError(t, s.Start([]conf.AlertDefinition{def("a", "*/5 * * * *")}))
	defer stopScheduler(t, s)

	s.RequestReload([]conf.AlertDefinition{def("a", "*/5 * * * *"), def("b", "*/5 * * * *")})

	require.Eventually(t, func() bool { return s.JobCount() == 2 },
		2*time.Second, 10*time.Millisecond)
}

func TestRequestReload_SupersedesPendingRequest(t *testing.T) {
	s := newTestScheduler(nil)

	// Not started: nothing consumes the channel, so the second request
	// replaces the first.
	s.RequestReload([]conf.AlertDefinition{def("old", "*/5 * * * *")})
	s.RequestReload([]conf.AlertDefinition{def("new", "*/5 * * * *")})

	select {
	case defs := <-s.reloadCh:
		require.Len(t, defs, 1)
		assert.Equal(t, "new", defs[0].Name)
	default:
		t.Fatal("expected a pending reload request")
	}
}

func TestStop_WaitsForInFlightRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	s := newTestScheduler(func(context.Context, *conf.AlertDefinition) {
		close(started)
		<-release
	})
	require.NoError(t, s.Start(nil))

	j := &job{def: def("slow", "* * * * *")}
	go s.fire(j)
	<-started

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- s.Stop(ctx)
	}()

	select {
	case <-done:
		t.Fatal("Stop returned while a run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
}

func TestStop_BeforeStartIsNoop(t *testing.T) {
	s := newTestScheduler(nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
