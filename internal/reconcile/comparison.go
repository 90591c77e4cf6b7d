package reconcile

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/Override92/tid3/internal/event"
	"github.com/Override92/tid3/internal/provider"
	"github.com/Override92/tid3/internal/track"
)

// Engine drives the per-field accept/reject workflow. It holds one session
// per track (keyed by file path) containing the original snapshot, the
// current comparison items, and the change history. Each session carries
// its own mutex, so different tracks can be reconciled concurrently while
// operations on one track are serialized.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*session
	bus      *event.Bus
	logger   *slog.Logger
}

type session struct {
	mu       sync.Mutex
	track    *track.LocalTrack
	original *Snapshot
	items    []*Item
	history  *History
}

// NewEngine creates a reconciliation engine. bus may be nil when no one
// listens for reconciliation events.
func NewEngine(bus *event.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sessions: make(map[string]*session),
		bus:      bus,
		logger:   logger,
	}
}

// session returns the per-track session, creating it on first use.
func (e *Engine) session(tr *track.LocalTrack) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[tr.Path]
	if !ok {
		s = &session{track: tr, history: NewHistory()}
		e.sessions[tr.Path] = s
	}
	return s
}

// ApplyCandidate projects a candidate release into a proposed snapshot and
// builds the comparison for tr. It satisfies the ranker's auto-apply
// callback; the same path serves manual candidate selection.
func (e *Engine) ApplyCandidate(tr *track.LocalTrack, candidate provider.CandidateRelease) error {
	candTrack := selectCandidateTrack(tr, candidate)
	proposed := ProjectRelease(candidate, candTrack, tr)
	e.build(tr, proposed, candidate.Source.DisplayName())
	return nil
}

// BuildComparison replaces the comparison item list for tr with a fresh
// field-by-field diff against the proposed snapshot. The original snapshot
// is captured lazily the first time a comparison is built and survives
// rebuilds until Clear.
func (e *Engine) BuildComparison(tr *track.LocalTrack, proposed Snapshot) []*Item {
	return e.build(tr, proposed, "manual")
}

func (e *Engine) build(tr *track.LocalTrack, proposed Snapshot, source string) []*Item {
	s := e.session(tr)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.original == nil {
		snap := TakeSnapshot(tr)
		s.original = &snap
	}

	items := make([]*Item, 0, len(AllFields()))
	differing := 0
	for _, field := range AllFields() {
		item := newItem(field, snapshotValue(*s.original, field), snapshotValue(proposed, field))
		if item.HasDifference() {
			differing++
		}
		items = append(items, item)
	}
	s.items = items

	s.history.Append("comparison", fmt.Sprintf("%d field(s) differ", differing), source)
	e.publish(event.ComparisonBuilt, map[string]any{
		"track":     tr.Path,
		"source":    source,
		"differing": differing,
	})
	e.logger.Debug("comparison built",
		slog.String("track", tr.DisplayName()),
		slog.String("source", source),
		slog.Int("differing", differing))

	return items
}

// Items returns the current comparison items for tr, or nil when no
// comparison has been built.
func (e *Engine) Items(tr *track.LocalTrack) []*Item {
	s := e.session(tr)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Item, len(s.items))
	copy(out, s.items)
	return out
}

// Accept applies the item's new value onto the track field, marks the item
// accepted, and logs the change. Illegal calls (CanAccept false) are
// ignored. A new value that fails numeric parsing for year/track leaves
// the field at its previous value but the item is still marked accepted.
func (e *Engine) Accept(tr *track.LocalTrack, item *Item) {
	s := e.session(tr)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.acceptLocked(s, item)
}

func (e *Engine) acceptLocked(s *session, item *Item) {
	if item == nil || !item.CanAccept() || !s.owns(item) {
		return
	}

	e.writeField(s.track, item.Field, item.NewValue)
	item.IsAccepted = true
	item.IsRejected = false

	s.history.Append("accept",
		fmt.Sprintf("%s: %q -> %q", item.Field, item.OldValue, item.NewValue), "")
	e.publish(event.FieldAccepted, map[string]any{
		"track": s.track.Path,
		"field": string(item.Field),
	})
}

// Reject marks the item rejected without touching the track. Illegal calls
// (CanReject false) are ignored.
func (e *Engine) Reject(tr *track.LocalTrack, item *Item) {
	s := e.session(tr)
	s.mu.Lock()
	defer s.mu.Unlock()

	if item == nil || !item.CanReject() || !s.owns(item) {
		return
	}

	item.IsRejected = true
	item.IsAccepted = false

	s.history.Append("reject", fmt.Sprintf("%s: kept %q", item.Field, item.OldValue), "")
	e.publish(event.FieldRejected, map[string]any{
		"track": tr.Path,
		"field": string(item.Field),
	})
}

// AcceptAll accepts every item that is acceptable at call time. The set is
// evaluated once up front, so items becoming acceptable mid-loop are not
// picked up. Returns the number of items accepted.
func (e *Engine) AcceptAll(tr *track.LocalTrack) int {
	s := e.session(tr)
	s.mu.Lock()
	defer s.mu.Unlock()

	var acceptable []*Item
	for _, item := range s.items {
		if item.CanAccept() {
			acceptable = append(acceptable, item)
		}
	}
	for _, item := range acceptable {
		e.writeField(s.track, item.Field, item.NewValue)
		item.IsAccepted = true
		item.IsRejected = false
	}

	s.history.Append("accept all", fmt.Sprintf("%d field(s) applied", len(acceptable)), "")
	e.publish(event.BulkApplied, map[string]any{
		"track": tr.Path,
		"count": len(acceptable),
	})
	return len(acceptable)
}

// RevertAll restores every tracked field from the original snapshot,
// whether or not it had been accepted, and clears all accept/reject flags.
// Returns the number of items that had been accepted before the revert.
func (e *Engine) RevertAll(tr *track.LocalTrack) int {
	s := e.session(tr)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.original == nil {
		return 0
	}

	accepted := 0
	for _, item := range s.items {
		if item.IsAccepted {
			accepted++
		}
		item.IsAccepted = false
		item.IsRejected = false
	}
	s.original.Restore(tr)

	s.history.Append("revert all", fmt.Sprintf("%d accepted field(s) reverted", accepted), "")
	e.publish(event.ComparisonReverted, map[string]any{
		"track":    tr.Path,
		"accepted": accepted,
	})
	return accepted
}

// Clear discards the comparison items and the original snapshot, so the
// next BuildComparison starts from the track's current values. The change
// history is kept.
func (e *Engine) Clear(tr *track.LocalTrack) {
	s := e.session(tr)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.original = nil
}

// History returns a read-only copy of the track's change history, newest first.
func (e *Engine) History(tr *track.LocalTrack) []HistoryEntry {
	return e.session(tr).history.Entries()
}

// Release drops all per-track state. Call when the track leaves the
// working set; its snapshot, comparison, and history exist only to serve it.
func (e *Engine) Release(tr *track.LocalTrack) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, tr.Path)
}

// owns reports whether item belongs to this session's current comparison.
// Stale pointers from a replaced comparison are ignored.
func (s *session) owns(item *Item) bool {
	for _, it := range s.items {
		if it == item {
			return true
		}
	}
	return false
}

// writeField sets one track field from its string representation. Numeric
// fields that fail to parse leave the track untouched.
func (e *Engine) writeField(tr *track.LocalTrack, field Field, value string) {
	switch field {
	case FieldTitle:
		tr.Title = value
	case FieldArtist:
		tr.Artist = value
	case FieldAlbum:
		tr.Album = value
	case FieldAlbumArtist:
		tr.AlbumArtist = value
	case FieldGenre:
		tr.Genre = value
	case FieldComment:
		tr.Comment = value
	case FieldYear:
		if n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32); err == nil {
			tr.Year = uint(n)
		} else {
			e.logger.Debug("ignoring unparseable year", slog.String("value", value))
		}
	case FieldTrack:
		if n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32); err == nil {
			tr.Track = uint(n)
		} else {
			e.logger.Debug("ignoring unparseable track number", slog.String("value", value))
		}
	}
}

// snapshotValue renders one snapshot field as a string. Numeric zero means
// unknown and renders empty so the new/removed logic treats it as absent.
func snapshotValue(s Snapshot, field Field) string {
	switch field {
	case FieldTitle:
		return s.Title
	case FieldArtist:
		return s.Artist
	case FieldAlbum:
		return s.Album
	case FieldAlbumArtist:
		return s.AlbumArtist
	case FieldGenre:
		return s.Genre
	case FieldYear:
		if s.Year == 0 {
			return ""
		}
		return strconv.FormatUint(uint64(s.Year), 10)
	case FieldTrack:
		if s.Track == 0 {
			return ""
		}
		return strconv.FormatUint(uint64(s.Track), 10)
	case FieldComment:
		return s.Comment
	default:
		return ""
	}
}

// selectCandidateTrack finds the candidate track that corresponds to tr,
// preferring a position match and falling back to a title match.
func selectCandidateTrack(tr *track.LocalTrack, candidate provider.CandidateRelease) *provider.CandidateTrack {
	if len(candidate.Tracks) == 0 {
		return nil
	}
	if tr.Track > 0 {
		for i := range candidate.Tracks {
			if candidate.Tracks[i].Position == int(tr.Track) {
				return &candidate.Tracks[i]
			}
		}
	}
	if tr.Title != "" {
		for i := range candidate.Tracks {
			if strings.EqualFold(strings.TrimSpace(candidate.Tracks[i].Title), strings.TrimSpace(tr.Title)) {
				return &candidate.Tracks[i]
			}
		}
	}
	return nil
}

func (e *Engine) publish(t event.Type, data map[string]any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(event.Event{Type: t, Data: data})
}
