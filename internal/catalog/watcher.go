package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher calls onChange after the catalog file is written, created or
// replaced. Editors and deploy tools often rename a temp file over the
// original, so the parent directory is watched and events are filtered by
// file name. Bursts of events collapse into one callback.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

func NewWatcher(path string, debounce time.Duration, onChange func(ctx context.Context)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating catalog watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching catalog directory %s: %w", dir, err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		watcher:  fw,
		logger:   slog.Default().With("component", "catalog-watcher", "path", path),
	}, nil
}

// Run blocks, dispatching change callbacks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	w.logger.Info("watching catalog file for changes")
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)) {
				continue
			}
			w.logger.Debug("catalog file event", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.onChange(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("catalog watcher error", "error", err)
		}
	}
}
