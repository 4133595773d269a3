package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kukmin84ai/bibliotheca/helper"
)

const (
	defaultDebounce = 400 * time.Millisecond
	jobQueueSize    = 64
)

type watchJob struct {
	path   string
	remove bool
}

// Watcher watches a directory tree and calls onIndex for created or
// written files once they are quiet for the debounce interval, and
// onRemove for removed or renamed files. Callbacks run one at a time on
// a single worker, in the order the changes settled. A Watcher is meant
// for one Watch call.
type Watcher struct {
	root        string
	supports    func(path string) bool
	onIndex     func(ctx context.Context, path string)
	onRemove    func(ctx context.Context, path string)
	debounce    time.Duration
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	jobs        chan watchJob
	stop        chan struct{}
	log         *slog.Logger
}

// NewWatcher creates a watcher for root. supports filters the files of
// interest.
func NewWatcher(root string, supports func(path string) bool, onIndex, onRemove func(ctx context.Context, path string), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = helper.NewLogger("info")
	}
	return &Watcher{
		root:        filepath.Clean(root),
		supports:    supports,
		onIndex:     onIndex,
		onRemove:    onRemove,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		jobs:        make(chan watchJob, jobQueueSize),
		stop:        make(chan struct{}),
		log:         logger,
	}
}

// WatchIngester creates a watcher that feeds file changes into ingester.
func WatchIngester(root string, ingester *Ingester, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = helper.NewLogger("info")
	}
	onIndex := func(ctx context.Context, path string) {
		if _, err := ingester.IngestFile(ctx, path); err != nil {
			logger.Error("Failed to ingest changed file", slog.String("file", path), slog.String("error", err.Error()))
		}
	}
	onRemove := func(ctx context.Context, path string) {
		if err := ingester.Remove(ctx, path); err != nil {
			logger.Error("Failed to remove file", slog.String("file", path), slog.String("error", err.Error()))
		}
	}
	return NewWatcher(root, ingester.Registry().Supports, onIndex, onRemove, logger)
}

// SetDebounce changes the quiet interval before a file is indexed.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Watch blocks until ctx is done. Subdirectories created while watching
// are added as well.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return helper.NewError("create watcher", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}
	w.log.Info("Watching directory", slog.String("dir", w.root))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.process(ctx)
	}()
	defer func() {
		w.stopTimers()
		close(w.stop)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, watcher, ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, watcher *fsnotify.Watcher, ev fsnotify.Event) {
	path := ev.Name
	w.log.Debug("Watcher event", slog.String("op", ev.Op.String()), slog.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if err := w.addTree(watcher, path); err != nil {
				w.log.Warn("Failed to watch directory", slog.String("dir", path), slog.String("error", err.Error()))
			}
			w.syncDirectory(ctx, path)
			return
		}
		if w.supports(path) {
			w.debounceIndex(ctx, path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
		if w.supports(path) {
			w.enqueue(ctx, watchJob{path: path, remove: true})
		}
	}
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return helper.NewError("watch directory", err)
	}
	return nil
}

// syncDirectory indexes the files of a directory that appeared while watching.
func (w *Watcher) syncDirectory(ctx context.Context, dir string) {
	files, err := Discover(dir, w.supports)
	if err != nil {
		w.log.Warn("Failed to list directory", slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	for _, path := range files {
		w.debounceIndex(ctx, path)
	}
}

func (w *Watcher) debounceIndex(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()

		w.enqueue(ctx, watchJob{path: path})
	})
}

// enqueue hands job to the worker unless watching has stopped.
func (w *Watcher) enqueue(ctx context.Context, job watchJob) {
	select {
	case w.jobs <- job:
	case <-w.stop:
	case <-ctx.Done():
	}
}

// process runs the queued callbacks until watching stops.
func (w *Watcher) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case job := <-w.jobs:
			if job.remove {
				if w.onRemove != nil {
					w.onRemove(ctx, job.path)
				}
			} else if w.onIndex != nil {
				w.onIndex(ctx, job.path)
			}
		}
	}
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
}
