// Package watch reruns an action when watched files settle after a change.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zeusync/ecsgen/internal/core/observability/log"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	tick            = 50 * time.Millisecond
)

// Action is called with the path of a file once its events settled. An error is
// logged and watching goes on.
type Action func(ctx context.Context, path string) error

// Watcher watches individual files through their directories, so that editors
// replacing a file by rename are followed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   log.Log
	action   Action
	debounce time.Duration

	files map[string]struct{}

	mu      sync.Mutex
	pending map[string]time.Time
}

func New(logger log.Log, debounce time.Duration, action Action, files ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fw,
		logger:   logger.Named("watch"),
		action:   action,
		debounce: debounce,
		files:    make(map[string]struct{}, len(files)),
		pending:  make(map[string]time.Time),
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
		w.logger.Debug("watching directory", log.String("dir", dir))
	}
	return w, nil
}

// Run blocks until ctx is done or the watcher is closed, then releases the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", log.Error(err))

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}
	if _, ok := w.files[abs]; !ok {
		return
	}

	w.mu.Lock()
	w.pending[abs] = time.Now()
	w.mu.Unlock()
}

// flush runs the action for every file whose last event is older than the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		if err := w.action(ctx, path); err != nil {
			w.logger.Error("action failed", log.String("path", path), log.Error(err))
		}
	}
}
