// Package refresher performs scheduled and file-triggered index refresh.
package refresher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hyperjump/ruiji/internal/similarity"
)

const defaultDebounce = 400 * time.Millisecond

// Refresher updates registered indexes on a cron schedule and re-updates
// file-backed indexes when their vocabulary file changes. Update semantics
// stay with the index itself; the refresher only decides when to call Update.
type Refresher struct {
	registry *similarity.Registry
	schedule string
	debounce time.Duration
	logger   *zap.Logger // optional; when set, logs refresh events

	cron    *cron.Cron
	watcher *fsnotify.Watcher

	mu          sync.Mutex
	watched     map[string]*similarity.Index // absolute file path -> index
	debounceMap map[string]*time.Timer

	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets a logger for debug output (schedule runs, file events).
func WithLogger(l *zap.Logger) Option {
	return func(r *Refresher) { r.logger = l }
}

// WithDebounce overrides the file-change debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(r *Refresher) { r.debounce = d }
}

// New creates a refresher. schedule is a cron expression ("" disables
// scheduled refresh); file watches are added with WatchFile before Start.
func New(registry *similarity.Registry, schedule string, opts ...Option) *Refresher {
	r := &Refresher{
		registry:    registry,
		schedule:    schedule,
		debounce:    defaultDebounce,
		watched:     make(map[string]*similarity.Index),
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WatchFile registers a vocabulary file whose changes trigger an update of
// idx. Must be called before Start.
func (r *Refresher) WatchFile(path string, idx *similarity.Index) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watched[abs] = idx
	return nil
}

// Start begins scheduled refresh and file watching. It returns immediately;
// work happens on background goroutines until Stop.
func (r *Refresher) Start() error {
	if r.schedule != "" {
		r.cron = cron.New()
		_, err := r.cron.AddFunc(r.schedule, r.runScheduled)
		if err != nil {
			return fmt.Errorf("invalid refresh schedule %q: %w", r.schedule, err)
		}
		r.cron.Start()
	}

	r.mu.Lock()
	watchCount := len(r.watched)
	r.mu.Unlock()
	if watchCount > 0 {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create file watcher: %w", err)
		}
		r.watcher = watcher
		// Watch parent directories: editors and atomic writers replace the
		// file, so the path itself stops existing between writes.
		dirs := make(map[string]bool)
		r.mu.Lock()
		for path := range r.watched {
			dirs[filepath.Dir(path)] = true
		}
		r.mu.Unlock()
		for dir := range dirs {
			if err := watcher.Add(dir); err != nil {
				_ = watcher.Close()
				return fmt.Errorf("watch %s: %w", dir, err)
			}
		}
		go r.watchLoop()
	}
	return nil
}

func (r *Refresher) runScheduled() {
	if r.logger != nil {
		r.logger.Debug("scheduled refresh starting")
	}
	results := r.registry.UpdateAll(context.Background())
	for _, res := range results {
		if res.Err != nil && r.logger != nil {
			r.logger.Warn("scheduled refresh failed for index",
				zap.String("index", res.Key.String()), zap.Error(res.Err))
		}
	}
}

func (r *Refresher) watchLoop() {
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.mu.Lock()
			idx, watchedFile := r.watched[event.Name]
			r.mu.Unlock()
			if !watchedFile {
				continue
			}
			r.scheduleUpdate(event.Name, idx)
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			if r.logger != nil {
				r.logger.Warn("file watcher error", zap.Error(err))
			}
		}
	}
}

// scheduleUpdate debounces bursts of file events into one update.
func (r *Refresher) scheduleUpdate(path string, idx *similarity.Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.debounceMap[path]; ok {
		timer.Stop()
	}
	r.debounceMap[path] = time.AfterFunc(r.debounce, func() {
		if r.logger != nil {
			r.logger.Debug("vocabulary file changed, updating index", zap.String("path", path))
		}
		if _, err := idx.Update(context.Background()); err != nil && r.logger != nil {
			r.logger.Warn("file-triggered update failed", zap.String("path", path), zap.Error(err))
		}
	})
}

// Stop halts scheduled refresh and file watching. Safe to call more than once.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		if r.cron != nil {
			r.cron.Stop()
		}
		if r.watcher != nil {
			_ = r.watcher.Close()
		}
		r.mu.Lock()
		for _, timer := range r.debounceMap {
			timer.Stop()
		}
		r.mu.Unlock()
	})
}
