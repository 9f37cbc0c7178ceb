package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration file on change and hands the new
// *Config to OnChange, the way the teacher's skills.Manager/templates.Registry
// debounce fsnotify events before re-running Discover.
//
// Only a subset of settings make sense to apply without a process restart —
// SEARCH_WEIGHTS, SYNONYMS, and ALLOWED_IMPORTS are pure runtime tunables
// with no connection pools or listeners bound to their old values. Callers
// apply exactly those fields from the reloaded Config; server address,
// database URL, and LLM credentials still require a restart.
type Watcher struct {
	path     string
	debounce time.Duration

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	onChange func(*Config)
	onError  func(error)
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce overrides the default 250ms debounce between a file event and
// the reload it triggers.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithErrorHandler registers a callback for reload failures (a momentarily
// unparsable file mid-write, a watch error). Reloading keeps the
// previously loaded Config in effect until a valid reload succeeds.
func WithErrorHandler(fn func(error)) WatchOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher builds a Watcher for path. onChange is invoked with the newly
// loaded Config after each debounced file event; it must not block.
func NewWatcher(path string, onChange func(*Config), opts ...WatchOption) *Watcher {
	w := &Watcher{path: path, debounce: 250 * time.Millisecond, onChange: onChange}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching path in the background. Calling Start twice is a
// no-op. The returned error is from the initial fsnotify setup only; reload
// failures go to the configured error handler instead.
func (w *Watcher) Start(ctx context.Context) error {
	w.watchMu.Lock()
	if w.watcher != nil {
		w.watchMu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.watchMu.Unlock()
		return err
	}
	if err := fsw.Add(w.path); err != nil {
		_ = fsw.Close()
		w.watchMu.Unlock()
		return err
	}
	w.watcher = fsw
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.watchMu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx)
	return nil
}

// Stop halts the watch goroutine and closes the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	w.watchMu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	fsw := w.watcher
	w.watcher = nil
	w.watchMu.Unlock()

	if fsw != nil {
		_ = fsw.Close()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	w.watchMu.Lock()
	fsw := w.watcher
	w.watchMu.Unlock()
	if fsw == nil {
		return
	}

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			cfg, err := Load(w.path)
			if err != nil {
				if w.onError != nil {
					w.onError(err)
				}
				return
			}
			if w.onChange != nil {
				w.onChange(cfg)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}
