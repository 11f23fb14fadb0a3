// Package watcher re-runs extraction when container files change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zheng/assetgraph/internal/container"
	"github.com/zheng/assetgraph/internal/extract"
)

// DefaultDebounce is the quiet period before a batch of changes triggers extraction.
const DefaultDebounce = 500 * time.Millisecond

// RunFunc performs one extraction.
type RunFunc func(ctx context.Context, opts extract.Options) (*extract.Result, error)

// Watcher watches for container changes and triggers re-extraction
type Watcher struct {
	opts      extract.Options
	fsWatcher *fsnotify.Watcher
	run       RunFunc
	log       *slog.Logger
	ignored   map[string]bool // output database and its side files

	// Debouncing
	debounceDelay time.Duration
	pendingFiles  map[string]struct{}
	pendingMu     sync.Mutex
	debounceTimer *time.Timer

	// one extraction at a time
	runMu sync.Mutex

	// Callbacks
	onAnalysisStart func(changed []string)
	onAnalysisDone  func(res *extract.Result)
	onError         func(error)

	// Control
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// WatcherOption configures the watcher
type WatcherOption func(*Watcher)

// WithDebounceDelay sets the debounce delay
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDelay = d
		}
	}
}

// WithRunFunc replaces extract.Run
func WithRunFunc(fn RunFunc) WatcherOption {
	return func(w *Watcher) {
		w.run = fn
	}
}

// WithOnAnalysisStart sets the callback for when extraction starts
func WithOnAnalysisStart(fn func(changed []string)) WatcherOption {
	return func(w *Watcher) {
		w.onAnalysisStart = fn
	}
}

// WithOnAnalysisDone sets the callback for when extraction completes
func WithOnAnalysisDone(fn func(res *extract.Result)) WatcherOption {
	return func(w *Watcher) {
		w.onAnalysisDone = fn
	}
}

// WithOnError sets the callback for errors
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// New creates a watcher over opts.Root. Every extraction uses opts unchanged.
func New(opts extract.Options, watcherOpts ...WatcherOption) (*Watcher, error) {
	if opts.Pattern == "" {
		opts.Pattern = "*"
	}
	if _, err := filepath.Match(opts.Pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", opts.Pattern, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		opts:          opts,
		fsWatcher:     fsWatcher,
		run:           extract.Run,
		log:           opts.Logger,
		ignored:       make(map[string]bool),
		debounceDelay: DefaultDebounce,
		pendingFiles:  make(map[string]struct{}),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	if opts.Output != "" {
		if abs, err := filepath.Abs(opts.Output); err == nil {
			for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
				w.ignored[abs+suffix] = true
			}
		}
	}

	for _, opt := range watcherOpts {
		opt(w)
	}

	if err := w.addDirs(opts.Root); err != nil {
		cancel()
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to add directories to watch: %w", err)
	}

	return w, nil
}

// addDirs recursively adds all directories under root to the watcher.
// Unreadable subdirectories are skipped, as extraction skips them.
func (w *Watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root || d == nil || !d.IsDir() {
				return err
			}
			w.log.Warn("not watching unreadable directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && container.Hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Start begins watching for changes
func (w *Watcher) Start() {
	go w.eventLoop()
}

// Stop stops the watcher. An extraction in progress is canceled. Later calls
// return the result of the first.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		w.cancel()
		close(w.done)

		w.pendingMu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.pendingMu.Unlock()

		w.stopErr = w.fsWatcher.Close()
	})
	return w.stopErr
}

// eventLoop handles file system events
func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

// handleEvent processes a single file system event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if container.Hidden(info.Name()) {
				return
			}
			if err := w.addDirs(event.Name); err != nil {
				w.reportError(fmt.Errorf("failed to watch %s: %w", event.Name, err))
			}
			return
		}
	}

	if !w.relevant(event.Name) {
		return
	}
	w.log.Debug("container changed", slog.String("path", event.Name), slog.String("op", event.Op.String()))

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pendingFiles[event.Name] = struct{}{}

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.triggerAnalysis)
}

// relevant reports whether a changed path could be a container.
func (w *Watcher) relevant(path string) bool {
	if abs, err := filepath.Abs(path); err == nil && w.ignored[abs] {
		return false
	}
	return container.Candidate(w.opts.Pattern, filepath.Base(path))
}

// triggerAnalysis runs extraction after debounce
func (w *Watcher) triggerAnalysis() {
	w.pendingMu.Lock()
	files := make([]string, 0, len(w.pendingFiles))
	for f := range w.pendingFiles {
		files = append(files, f)
	}
	w.pendingFiles = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(files) == 0 || w.ctx.Err() != nil {
		return
	}
	sort.Strings(files)

	w.runMu.Lock()
	defer w.runMu.Unlock()

	if w.onAnalysisStart != nil {
		w.onAnalysisStart(files)
	}
	w.log.Info("re-extracting after changes", slog.Int("changed", len(files)))

	res, err := w.run(w.ctx, w.opts)
	if err != nil {
		w.reportError(fmt.Errorf("extraction failed: %w", err))
		return
	}

	if w.onAnalysisDone != nil {
		w.onAnalysisDone(res)
	}
}

func (w *Watcher) reportError(err error) {
	w.log.Warn("watch error", slog.Any("error", err))
	if w.onError != nil {
		w.onError(err)
	}
}
