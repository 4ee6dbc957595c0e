package scheduler

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kyle-gehring/sqlsentinel/internal/conf"
	"github.com/kyle-gehring/sqlsentinel/internal/errors"
	"github.com/kyle-gehring/sqlsentinel/internal/logger"
)

// Watcher reloads alert definitions when the alerts file changes on disk.
// Change bursts are debounced so editors that write in several steps
// trigger a single reload. A file that fails to load is logged and the
// previous definitions stay in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func([]conf.AlertDefinition)
	log      logger.Logger

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWatcher creates a watcher for the alerts file at path. onChange
// receives freshly validated definitions after each debounced change.
func NewWatcher(path string, debounce time.Duration, onChange func([]conf.AlertDefinition), log logger.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
		log:      log.With(logger.String("component", "watcher")),
		done:     make(chan struct{}),
	}
}

// Start begins watching. The containing directory is watched rather than
// the file itself so atomic save-via-rename keeps working.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.CategoryConfiguration, err, "failed to create file watcher")
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return errors.Wrap(errors.CategoryConfiguration, err, "failed to watch alerts directory")
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()

	w.log.Info("watching alerts file",
		logger.String("path", w.path),
		logger.Duration("debounce", w.debounce))
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	target := filepath.Clean(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.log.Debug("alerts file changed", logger.String("op", event.Op.String()))
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("file watcher error", logger.Error(err))
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	defs, err := conf.LoadAlerts(w.path)
	if err != nil {
		w.log.Error("ignoring alerts file change, load failed", logger.Error(err))
		return
	}
	w.log.Info("alerts file reloaded", logger.Int("alerts", len(defs)))
	w.onChange(defs)
}

// Stop ends watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	close(w.done)
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	w.wg.Wait()
}
