package ruleset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source produces a fresh rule set, typically Load followed by LoadPacks.
type Source func() (*RuleSet, error)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce is how long to wait after the last change before reloading.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher holds the current rule set and swaps it when the rules file or
// packs directory changes. A reload that fails validation keeps the
// previous rules in place.
type Watcher struct {
	source   Source
	paths    []string
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	current  *RuleSet
	onReload []func(*RuleSet)

	fsw  *fsnotify.Watcher
	done chan struct{}
	once sync.Once
}

// NewWatcher loads the initial rule set from source and prepares to watch
// paths. Paths may be files or directories; a file is watched through its
// parent directory so editors that replace files atomically are seen.
func NewWatcher(source Source, paths []string, opts WatcherOptions) (*Watcher, error) {
	rs, err := source()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		source:   source,
		paths:    paths,
		debounce: opts.Debounce,
		logger:   opts.Logger,
		current:  rs,
		done:     make(chan struct{}),
	}, nil
}

// Current returns the active rule set.
func (w *Watcher) Current() *RuleSet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnReload registers fn to run after every successful reload.
func (w *Watcher) OnReload(fn func(*RuleSet)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = append(w.onReload, fn)
}

// Reload re-reads the source and swaps the rule set if it is valid.
func (w *Watcher) Reload() error {
	rs, err := w.source()
	if err != nil {
		w.logger.Warn("rules reload failed, keeping previous set", "error", err)
		return err
	}
	w.mu.Lock()
	w.current = rs
	hooks := append([]func(*RuleSet){}, w.onReload...)
	w.mu.Unlock()

	w.logger.Info("rules reloaded", "rules", len(rs.Rules), "active", len(rs.Active()))
	for _, fn := range hooks {
		fn(rs)
	}
	return nil
}

// Start begins watching. It returns once the watches are registered; events
// are processed until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	dirs := make(map[string]bool)
	for _, p := range w.paths {
		dir := p
		if isYAMLFile(p) {
			dir = filepath.Dir(p)
		}
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			w.logger.Debug("not watching path", "path", dir, "error", err)
			continue
		}
		dirs[dir] = true
	}
	w.fsw = fsw
	go w.loop(ctx)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rules watcher error", "error", err)
		case <-timerC:
			timerC = nil
			_ = w.Reload()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !isYAMLFile(event.Name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
