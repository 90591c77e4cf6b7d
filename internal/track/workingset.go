package track

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Override92/tid3/internal/event"
)

// WorkingSet is the ordered collection of tracks currently loaded for
// editing. It owns track lifecycle: removal notifies interested parties
// (the reconciliation engine releases its per-track state) via the
// registered remove hooks.
type WorkingSet struct {
	mu       sync.RWMutex
	tracks   []*LocalTrack
	byPath   map[string]*LocalTrack
	loadedAt map[string]time.Time
	onRemove []func(*LocalTrack)
	bus      *event.Bus
	logger   *slog.Logger
}

// NewWorkingSet creates an empty working set. bus may be nil.
func NewWorkingSet(bus *event.Bus, logger *slog.Logger) *WorkingSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkingSet{
		byPath:   make(map[string]*LocalTrack),
		loadedAt: make(map[string]time.Time),
		bus:      bus,
		logger:   logger,
	}
}

// OnRemove registers a hook invoked after a track leaves the set.
func (w *WorkingSet) OnRemove(fn func(*LocalTrack)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onRemove = append(w.onRemove, fn)
}

// Add appends a track to the working set. Paths must be unique.
func (w *WorkingSet) Add(tr *LocalTrack) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if tr.Path == "" {
		return fmt.Errorf("track has no path")
	}
	if _, exists := w.byPath[tr.Path]; exists {
		return fmt.Errorf("track already loaded: %s", tr.Path)
	}

	w.tracks = append(w.tracks, tr)
	w.byPath[tr.Path] = tr
	w.loadedAt[tr.Path] = time.Now().UTC()

	w.publish(event.TrackLoaded, map[string]any{"path": tr.Path})
	return nil
}

// Remove drops the track with the given path and fires the remove hooks,
// releasing any reconciliation state that existed only to serve it.
func (w *WorkingSet) Remove(path string) bool {
	w.mu.Lock()
	tr, ok := w.byPath[path]
	if !ok {
		w.mu.Unlock()
		return false
	}
	delete(w.byPath, path)
	delete(w.loadedAt, path)
	for i, t := range w.tracks {
		if t == tr {
			w.tracks = append(w.tracks[:i], w.tracks[i+1:]...)
			break
		}
	}
	hooks := make([]func(*LocalTrack), len(w.onRemove))
	copy(hooks, w.onRemove)
	w.mu.Unlock()

	for _, fn := range hooks {
		fn(tr)
	}
	w.publish(event.TrackRemoved, map[string]any{"path": path})
	return true
}

// Get returns the track with the given path, or nil.
func (w *WorkingSet) Get(path string) *LocalTrack {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.byPath[path]
}

// Tracks returns the loaded tracks in load order.
func (w *WorkingSet) Tracks() []*LocalTrack {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*LocalTrack, len(w.tracks))
	copy(out, w.tracks)
	return out
}

// Count returns the number of loaded tracks. This is the loaded-count
// signal the match scorer compares against candidate track counts.
func (w *WorkingSet) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.tracks)
}

// LoadedAt returns when the track at path was added to the set.
func (w *WorkingSet) LoadedAt(path string) (time.Time, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.loadedAt[path]
	return t, ok
}

func (w *WorkingSet) publish(t event.Type, data map[string]any) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(event.Event{Type: t, Data: data})
}
