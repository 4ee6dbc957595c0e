// Package scheduler drives periodic alert execution from cron schedules,
// with hot reload of alert definitions and per-alert overlap protection.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
	"github.com/kyle-gehring/sqlsentinel/internal/logger"
	"github.com/kyle-gehring/sqlsentinel/internal/metrics"
)

// RunFunc executes one alert when its schedule fires.
type RunFunc func(ctx context.Context, def *conf.AlertDefinition)

// JobInfo describes one registered job.
type JobInfo struct {
	Name     string
	Schedule string
	Running  bool
	NextRun  time.Time
}

type job struct {
	id      cron.EntryID
	def     conf.AlertDefinition
	running atomic.Bool
}

// Scheduler owns the cron runtime and the job table. All mutation of the
// job table happens on the caller of Start/Reload/Stop or on the single
// control goroutine consuming reload requests, guarded by one mutex.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	run     RunFunc
	metrics *metrics.Collector
	log     logger.Logger

	mu   sync.Mutex
	jobs map[string]*job

	reloadCh chan []conf.AlertDefinition
	done     chan struct{}
	wg       sync.WaitGroup
	runWG    sync.WaitGroup
	started  bool
}

// New creates a scheduler evaluating schedules in loc. metrics may be nil.
func New(loc *time.Location, run RunFunc, collector *metrics.Collector, log logger.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithParser(parser)),
		parser:   parser,
		run:      run,
		metrics:  collector,
		log:      log.With(logger.String("component", "scheduler")),
		jobs:     make(map[string]*job),
		reloadCh: make(chan []conf.AlertDefinition, 1),
		done:     make(chan struct{}),
	}
}

// Start registers the initial definitions and starts the cron runtime and
// the reload control loop. Nothing is registered if any schedule is invalid.
func (s *Scheduler) Start(defs []conf.AlertDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New(errors.CategoryExecution, "scheduler already started")
	}

	if err := s.replaceJobs(defs); err != nil {
		return err
	}

	s.cron.Start()
	s.started = true

	s.wg.Add(1)
	go s.controlLoop()

	s.log.Info("scheduler started", logger.Int("jobs", len(s.jobs)))
	return nil
}

// Reload atomically replaces the job table with defs. Validation runs
// over every schedule before anything is touched, so an invalid set leaves
// the current table intact.
func (s *Scheduler) Reload(defs []conf.AlertDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.replaceJobs(defs); err != nil {
		return err
	}
	s.log.Info("schedules reloaded", logger.Int("jobs", len(s.jobs)))
	return nil
}

// RequestReload queues defs for the control goroutine. A pending request
// that has not been consumed yet is superseded.
func (s *Scheduler) RequestReload(defs []conf.AlertDefinition) {
	for {
		select {
		case s.reloadCh <- defs:
			return
		default:
			select {
			case <-s.reloadCh:
			default:
			}
		}
	}
}

func (s *Scheduler) controlLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case defs := <-s.reloadCh:
			if err := s.Reload(defs); err != nil {
				s.log.Error("reload rejected, keeping current schedules", logger.Error(err))
			}
		}
	}
}

// replaceJobs validates then rebuilds the whole job table. Existing cron
// entries are always recreated, never patched in place. Caller holds mu.
func (s *Scheduler) replaceJobs(defs []conf.AlertDefinition) error {
	for i := range defs {
		if !defs[i].Enabled {
			continue
		}
		if _, err := s.parser.Parse(defs[i].Schedule); err != nil {
			return errors.Newf(errors.CategoryConfiguration,
				"alert %q has invalid schedule %q: %v", defs[i].Name, defs[i].Schedule, err)
		}
	}

	for name, j := range s.jobs {
		s.cron.Remove(j.id)
		delete(s.jobs, name)
	}

	for i := range defs {
		def := defs[i]
		if !def.Enabled {
			continue
		}
		j := &job{def: def}
		id, err := s.cron.AddFunc(def.Schedule, func() { s.fire(j) })
		if err != nil {
			return errors.Wrap(errors.CategoryConfiguration, err,
				"failed to register schedule for "+def.Name)
		}
		j.id = id
		s.jobs[def.Name] = j
	}

	if s.metrics != nil {
		s.metrics.SetScheduledJobs(len(s.jobs))
	}
	return nil
}

// fire runs one scheduled execution. A run that is still in flight when
// the schedule fires again is skipped, never queued.
func (s *Scheduler) fire(j *job) {
	if !j.running.CompareAndSwap(false, true) {
		s.log.Warn("skipping run, previous execution still in progress",
			logger.String("alert", j.def.Name))
		return
	}
	s.runWG.Add(1)
	defer s.runWG.Done()
	defer j.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("alert execution panicked",
				logger.String("alert", j.def.Name),
				logger.Any("panic", r))
		}
	}()

	s.run(context.Background(), &j.def)
}

// Jobs returns a snapshot of the registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, j := range s.jobs {
		infos = append(infos, JobInfo{
			Name:     name,
			Schedule: j.def.Schedule,
			Running:  j.running.Load(),
			NextRun:  s.cron.Entry(j.id).Next,
		})
	}
	sort.Slice(infos, func(i, k int) bool { return infos[i].Name < infos[k].Name })
	return infos
}

// JobCount returns the number of registered jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Stop halts scheduling and waits for in-flight executions to finish, or
// for ctx to expire, whichever comes first. No new runs start after Stop.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	stopCtx := s.cron.Stop()
	// If ctx expires first, this goroutine lives on until the last
	// in-flight run returns, then exits. Runs are never interrupted.
	drained := make(chan struct{})
	go func() {
		<-stopCtx.Done()
		s.runWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.CategoryExecution, ctx.Err(),
			"timed out waiting for running executions")
	}
}
