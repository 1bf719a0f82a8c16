// Package watch re-runs an action when a file changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last change before the
// action runs.
const DefaultDebounce = 300 * time.Millisecond

// Watcher monitors one file. Editors often replace files by rename, so the
// parent directory is watched and events are filtered by name.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *zap.Logger
	watcher  *fsnotify.Watcher
}

// New starts watching path. A non-positive debounce uses DefaultDebounce.
func New(path string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = zap.NewNop()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(absPath), err)
	}

	return &Watcher{path: absPath, debounce: debounce, log: log, watcher: fw}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run calls onChange after each burst of changes to the file until ctx is
// done or the watcher is closed. Errors from onChange are logged and do not
// stop the loop.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context) error) error {
	name := filepath.Base(w.path)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.log.Info("watching for changes", zap.String("path", w.path))
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Remove) {
				w.log.Warn("watched file removed", zap.String("path", event.Name))
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("change detected", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("file watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			if err := onChange(ctx); err != nil {
				w.log.Error("change handler failed", zap.String("path", w.path), zap.Error(err))
			}
		}
	}
}

// Close stops watching. A running Run returns.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
