// Package app wires the application: configuration, datastore, dispatcher,
// executor, scheduler, watcher, and the optional health server. All state
// lives on the App value handed to commands; there are no package globals.
package app

import (
	"context"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/kyle-gehring/sqlsentinel/internal/alert"
	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/database"
	"github.com/kyle-gehring/sqlsentinel/internal/datastore"
	"github.com/kyle-gehring/sqlsentinel/internal/datastore/repository"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
	"github.com/kyle-gehring/sqlsentinel/internal/executor"
	"github.com/kyle-gehring/sqlsentinel/internal/health"
	"github.com/kyle-gehring/sqlsentinel/internal/logger"
	"github.com/kyle-gehring/sqlsentinel/internal/metrics"
	"github.com/kyle-gehring/sqlsentinel/internal/notify"
	"github.com/kyle-gehring/sqlsentinel/internal/scheduler"
)

// Options selects the configuration sources for New.
type Options struct {
	// SettingsPath is an optional settings file; env vars always apply.
	SettingsPath string
	// AlertsPath is the alert definitions YAML file.
	AlertsPath string
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
}

// App is the assembled application.
type App struct {
	Settings *conf.Settings
	Alerts   []conf.AlertDefinition
	Log      logger.Logger

	DB        *gorm.DB
	States    repository.StateRepository
	History   repository.HistoryRepository
	Adapters  *database.AdapterCache
	Metrics   *metrics.Collector
	Executor  *executor.Executor
	Scheduler *scheduler.Scheduler

	alertsPath string
	watcher    *scheduler.Watcher
	healthSrv  *health.Server
}

// New loads configuration and wires every component. The scheduler is
// constructed but not started; Run starts the daemon surfaces.
func New(opts Options) (*App, error) {
	settings, err := conf.LoadSettings(opts.SettingsPath)
	if err != nil {
		return nil, err
	}

	level := settings.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	log := logger.NewSlogLogger(os.Stderr, logger.ParseLevel(level), nil)

	defs, err := conf.LoadAlerts(opts.AlertsPath)
	if err != nil {
		return nil, err
	}

	db, err := datastore.Open(settings.StateDB)
	if err != nil {
		return nil, err
	}
	if err := datastore.Migrate(db); err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	dispatcher := notify.NewDispatcher(settings, log)
	states := repository.NewStateRepository(db)
	history := repository.NewHistoryRepository(db)
	exec := executor.New(states, history, dispatcher, collector, settings, log)
	adapters := database.NewAdapterCache(settings.AdapterCacheTTL.Std())

	a := &App{
		Settings:   settings,
		Alerts:     defs,
		Log:        log,
		DB:         db,
		States:     states,
		History:    history,
		Adapters:   adapters,
		Metrics:    collector,
		Executor:   exec,
		alertsPath: opts.AlertsPath,
	}
	a.Scheduler = scheduler.New(settings.Location(), a.runScheduled, collector, log)
	return a, nil
}

// runScheduled is the scheduler's entry into the executor.
func (a *App) runScheduled(ctx context.Context, def *conf.AlertDefinition) {
	if _, err := a.ExecuteAlert(ctx, def, executor.Options{TriggeredBy: alert.TriggeredByCron}); err != nil {
		a.Log.Error("scheduled execution failed",
			logger.String("alert", def.Name),
			logger.Error(err))
	}
}

// ExecuteAlert resolves the query adapter and runs one alert.
func (a *App) ExecuteAlert(ctx context.Context, def *conf.AlertDefinition, opts executor.Options) (*alert.ExecutionResult, error) {
	if a.Settings.DatabaseURL == "" {
		return nil, errors.New(errors.CategoryConfiguration,
			"no database URL configured; set SQLSENTINEL_DATABASEURL")
	}
	adapter, err := a.Adapters.Get(ctx, a.Settings.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return a.Executor.Execute(ctx, def, adapter, opts)
}

// FindAlert returns the definition with the given name.
func (a *App) FindAlert(name string) (*conf.AlertDefinition, error) {
	for i := range a.Alerts {
		if a.Alerts[i].Name == name {
			return &a.Alerts[i], nil
		}
	}
	return nil, errors.Newf(errors.CategoryValidation, "unknown alert %q", name)
}

// Run starts the scheduler, the alerts file watcher, and the health server,
// then blocks until ctx is cancelled. Shutdown is graceful: in-flight
// executions get up to 30 seconds to finish.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(a.Alerts); err != nil {
		return err
	}

	a.watcher = scheduler.NewWatcher(
		a.alertsPath,
		a.Settings.WatcherDebounce.Std(),
		a.Scheduler.RequestReload,
		a.Log,
	)
	if err := a.watcher.Start(); err != nil {
		return err
	}

	if a.Settings.Health.Enabled {
		a.healthSrv = health.NewServer(a.Settings.Health.Addr, a.DB, a.Scheduler, a.Metrics, a.Log)
		go func() {
			if err := a.healthSrv.Start(); err != nil {
				a.Log.Error("health server failed", logger.Error(err))
			}
		}()
	}

	<-ctx.Done()
	return a.Shutdown()
}

// Shutdown stops every running surface and closes held resources.
func (a *App) Shutdown() error {
	a.Log.Info("shutting down")

	if a.watcher != nil {
		a.watcher.Stop()
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := a.Scheduler.Stop(stopCtx)

	if a.healthSrv != nil {
		if herr := a.healthSrv.Shutdown(stopCtx); herr != nil && err == nil {
			err = herr
		}
	}

	a.Adapters.Close()
	if sqlDB, dbErr := a.DB.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	return err
}

// Close releases resources for non-daemon commands that never called Run.
func (a *App) Close() {
	a.Adapters.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
