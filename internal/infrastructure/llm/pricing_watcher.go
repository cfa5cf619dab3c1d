package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// PricingWatcher hot-reloads the pricing overrides file into a
// PricingTable. Provider list prices change often enough that a restart
// for every adjustment is not acceptable in long-running deployments.
type PricingWatcher struct {
	path    string
	table   *PricingTable
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewPricingWatcher performs the initial load and prepares the watcher.
// A missing file is not an error; the built-in table stays in effect.
func NewPricingWatcher(path string, table *PricingTable, logger *zap.Logger) (*PricingWatcher, error) {
	w := &PricingWatcher{
		path:   path,
		table:  table,
		stopCh: make(chan struct{}),
		logger: logger.With(zap.String("component", "pricing-watcher")),
	}

	if err := w.reload(); err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("Initial pricing overrides load failed",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create pricing watcher: %w", err)
	}
	w.watcher = watcher

	// Watch the directory: editors replace files on save, which drops a
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch pricing dir: %w", err)
	}

	return w, nil
}

// Start launches the watch loop in the background; Stop ends it and
// waits for it to exit.
func (w *PricingWatcher) Start() {
	w.logger.Info("Pricing overrides watching started", zap.String("path", w.path))

	w.wg.Add(1)
	go w.run()
}

func (w *PricingWatcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.reload(); err != nil {
				w.logger.Warn("Pricing overrides reload failed", zap.Error(err))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Pricing watcher error", zap.Error(err))
		}
	}
}

// Stop ends the watch loop.
func (w *PricingWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
	w.wg.Wait()
	w.logger.Info("Pricing overrides watching stopped")
}

func (w *PricingWatcher) reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}

	var overrides PricingOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse pricing overrides: %w", err)
	}

	w.table.Apply(overrides)
	return nil
}
