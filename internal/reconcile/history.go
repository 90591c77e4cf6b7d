package reconcile

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxHistoryEntries caps the per-track change history. Once exceeded, the
// oldest entries are discarded.
const MaxHistoryEntries = 50

// HistoryEntry is one audited reconciliation action. Immutable once appended.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	Source    string    `json:"source"`
}

// History is an append-only, capacity-bounded log of reconciliation
// actions for one track, newest first.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append records an action at the head of the log, dropping the oldest
// entry when the cap is exceeded.
func (h *History) Append(action, detail, source string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := HistoryEntry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Action:    action,
		Detail:    detail,
		Source:    source,
	}
	h.entries = append([]HistoryEntry{entry}, h.entries...)
	if len(h.entries) > MaxHistoryEntries {
		h.entries = h.entries[:MaxHistoryEntries]
	}
}

// Entries returns a copy of the log, newest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
