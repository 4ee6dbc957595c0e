// Package executor runs the full alert workflow: evaluate the check query,
// decide whether to notify, dispatch, and persist state and history.
package executor

import (
	"context"
	"strings"
	"time"

	"github.com/kyle-gehring/sqlsentinel/internal/alert"
	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/database"
	"github.com/kyle-gehring/sqlsentinel/internal/datastore/entities"
	"github.com/kyle-gehring/sqlsentinel/internal/datastore/repository"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
	"github.com/kyle-gehring/sqlsentinel/internal/logger"
	"github.com/kyle-gehring/sqlsentinel/internal/metrics"
	"github.com/kyle-gehring/sqlsentinel/internal/notify"
)

// dispatcher is the notification surface the executor depends on.
type dispatcher interface {
	DispatchAll(ctx context.Context, targets []conf.NotifyTarget, msg *notify.Message) []notify.TargetResult
}

// Options modifies a single execution.
type Options struct {
	// TriggeredBy records provenance in history (CRON, MANUAL, API).
	TriggeredBy string
	// DryRun evaluates the query and notification decision but skips
	// dispatch and all persistence.
	DryRun bool
}

// Executor runs alert checks end to end. Safe for concurrent use across
// distinct alerts; the scheduler guarantees per-alert serialization.
type Executor struct {
	states     repository.StateRepository
	history    repository.HistoryRepository
	dispatcher dispatcher
	metrics    *metrics.Collector
	log        logger.Logger

	minAlertInterval time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// New wires an executor. metrics may be nil when instrumentation is off.
func New(
	states repository.StateRepository,
	history repository.HistoryRepository,
	d dispatcher,
	collector *metrics.Collector,
	settings *conf.Settings,
	log logger.Logger,
) *Executor {
	return &Executor{
		states:           states,
		history:          history,
		dispatcher:       d,
		metrics:          collector,
		log:              log.With(logger.String("component", "executor")),
		minAlertInterval: settings.MinAlertInterval.Std(),
		now:              time.Now,
	}
}

// Execute runs one alert check. The returned result always describes the
// outcome; the error is non-nil only for state or history persistence
// failures, never for the check itself failing.
func (e *Executor) Execute(ctx context.Context, def *conf.AlertDefinition, adapter database.Adapter, opts Options) (*alert.ExecutionResult, error) {
	if opts.TriggeredBy == "" {
		opts.TriggeredBy = alert.TriggeredByManual
	}
	now := e.now().UTC()
	log := e.log.With(logger.String("alert", def.Name))

	state, err := e.states.GetState(ctx, def.Name)
	if err != nil {
		return nil, errors.Wrap(errors.CategoryExecution, err, "failed to load alert state")
	}

	queryResult, duration, queryErr := e.evaluate(ctx, def, adapter)

	status := alert.StatusError
	if queryErr == nil {
		status = queryResult.Status
	}

	result := &alert.ExecutionResult{
		AlertName:   def.Name,
		Timestamp:   now,
		Status:      outcomeFor(status),
		QueryResult: queryResult,
		Duration:    duration,
	}
	if queryErr != nil {
		result.Error = queryErr.Error()
		log.Error("alert check failed",
			logger.Duration("duration", duration),
			logger.Error(queryErr))
	} else {
		log.Info("alert check evaluated",
			logger.String("status", status),
			logger.Duration("duration", duration))
	}

	shouldNotify := state.ShouldNotify(status, e.minAlertInterval, now)

	record := &entities.Execution{
		AlertName:    def.Name,
		ExecutedAt:   now,
		DurationMs:   float64(duration.Microseconds()) / 1000,
		Status:       status,
		Query:        def.Query,
		TriggeredBy:  opts.TriggeredBy,
		ErrorMessage: result.Error,
	}
	if queryResult != nil {
		record.ActualValue = queryResult.ActualValue
		record.Threshold = queryResult.Threshold
		record.SetContext(queryResult.Context)
	}

	if opts.DryRun {
		log.Info("dry run: skipping dispatch and persistence",
			logger.Bool("would_notify", shouldNotify))
		e.observe(def.Name, result.Status, duration)
		return result, nil
	}

	// Disabled alerts can still be run manually, but they never notify.
	if shouldNotify && def.Enabled {
		e.dispatchTargets(ctx, def, queryResult, state, record, now)
	}

	state.AlertName = def.Name
	state.ApplyStatus(status, now)
	if err := e.states.SaveState(ctx, state); err != nil {
		return result, errors.Wrap(errors.CategoryExecution, err, "failed to save alert state")
	}

	if _, err := e.history.Record(ctx, record); err != nil {
		return result, err
	}

	e.observe(def.Name, result.Status, duration)
	return result, nil
}

// evaluate runs the check query and applies the result contract. The
// duration covers the query round trip plus validation.
func (e *Executor) evaluate(ctx context.Context, def *conf.AlertDefinition, adapter database.Adapter) (*alert.QueryResult, time.Duration, error) {
	started := e.now()
	rows, err := adapter.ExecuteQuery(ctx, def.Query)
	if err != nil {
		return nil, e.now().Sub(started), errors.Wrap(errors.CategoryExecution, err, "query execution failed")
	}
	result, err := alert.BuildQueryResult(rows)
	return result, e.now().Sub(started), err
}

// dispatchTargets fans the notification out and folds per-target outcomes
// into the state row and the history record.
func (e *Executor) dispatchTargets(ctx context.Context, def *conf.AlertDefinition, queryResult *alert.QueryResult, state *entities.AlertState, record *entities.Execution, now time.Time) {
	if len(def.Notify) == 0 {
		return
	}

	msg := &notify.Message{
		AlertName:   def.Name,
		Description: def.Description,
		Status:      queryResult.Status,
		ActualValue: queryResult.ActualValue,
		Threshold:   queryResult.Threshold,
		Context:     queryResult.Context,
		ContextKeys: queryResult.ContextKeys(),
		Timestamp:   now,
	}

	results := e.dispatcher.DispatchAll(ctx, def.Notify, msg)

	var failures []string
	for _, r := range results {
		if e.metrics != nil {
			e.metrics.RecordNotification(string(r.Channel), r.Err == nil)
		}
		if r.Err != nil {
			state.NotificationFailures++
			failures = append(failures, r.Err.Error())
		} else {
			state.LastNotificationChannel = string(r.Channel)
			record.NotificationSent = true
		}
	}
	record.NotificationError = strings.Join(failures, "; ")
}

func (e *Executor) observe(alertName, status string, duration time.Duration) {
	if e.metrics != nil {
		e.metrics.RecordExecution(alertName, status, duration)
	}
}

// outcomeFor maps a check status to the stable three-way execution outcome.
func outcomeFor(status string) string {
	switch status {
	case alert.StatusAlert:
		return alert.ResultFailure
	case alert.StatusOK:
		return alert.ResultSuccess
	default:
		return alert.ResultError
	}
}
