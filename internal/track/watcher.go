package track

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Override92/tid3/internal/event"
)

// Watcher observes the directories containing loaded tracks and publishes
// a conflict event when a loaded file is written to by another program.
// Events for one file are debounced so editors that write in bursts
// produce a single notification.
type Watcher struct {
	set      *WorkingSet
	bus      *event.Bus
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	watching map[string]bool // directories currently watched
	pending  map[string]*time.Timer
}

// NewWatcher creates a watcher over the given working set.
func NewWatcher(set *WorkingSet, bus *event.Bus, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		set:      set,
		bus:      bus,
		logger:   logger.With("component", "file-watcher"),
		debounce: 1 * time.Second,
		watching: make(map[string]bool),
		pending:  make(map[string]*time.Timer),
	}
}

// SetDebounce overrides the default debounce interval (for testing).
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start blocks until ctx is canceled, dispatching filesystem events for
// loaded tracks. If fsnotify is unavailable the watcher logs and returns;
// conflict detection then falls back to the explicit CheckFileConflict
// call before each save.
func (w *Watcher) Start(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("fsnotify unavailable, external change detection disabled", "error", err)
		return
	}
	defer fw.Close() //nolint:errcheck

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()
	w.refreshWatchPaths()

	refresh := time.NewTicker(30 * time.Second)
	defer refresh.Stop()

	w.logger.Info("file watcher starting")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopping")
			return

		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)

		case <-refresh.C:
			w.refreshWatchPaths()
		}
	}
}

// refreshWatchPaths ensures every directory holding a loaded track is watched.
func (w *Watcher) refreshWatchPaths() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return
	}

	for _, tr := range w.set.Tracks() {
		dir := filepath.Dir(tr.Path)
		if w.watching[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("cannot watch directory", "dir", dir, "error", err)
			continue
		}
		w.watching[dir] = true
	}
}

// handleEvent debounces write/rename events for loaded tracks and publishes
// a conflict once the burst settles.
func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}
	tr := w.set.Get(ev.Name)
	if tr == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[ev.Name]; ok {
		timer.Stop()
	}
	path := ev.Name
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.publishConflict(path)
	})
}

func (w *Watcher) publishConflict(path string) {
	loaded, ok := w.set.LoadedAt(path)
	if !ok {
		return
	}
	check := CheckFileConflict(path, loaded)
	if !check.HasConflict {
		return
	}
	w.logger.Warn("track modified externally", "path", path)
	if w.bus != nil {
		w.bus.Publish(event.Event{
			Type: event.TrackConflict,
			Data: map[string]any{"path": path, "reason": check.Reason},
		})
	}
}
