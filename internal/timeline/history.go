package timeline

import (
	"encoding/json"

	"github.com/ripplecut/ripplecut/internal/segment"
)

// DefaultHistoryLimit caps the undo stack; the oldest snapshot is discarded
// when the cap is exceeded.
const DefaultHistoryLimit = 30

// Snapshot is one undo entry. The confirmed list and the sensitivity that
// produced it are coupled: a sensitivity level is only meaningful relative to
// the segment set it generated, so undo restores both together.
type Snapshot struct {
	// Confirmed is the confirmed segment list at snapshot time.
	Confirmed []segment.Confirmed `json:"confirmed"`
	// Sensitivity is the committed detection sensitivity at snapshot time.
	Sensitivity float64 `json:"sensitivity"`
}

// History is a bounded stack of timeline snapshots.
type History struct {
	entries []Snapshot
	limit   int
}

// NewHistory creates a History with the given cap. A non-positive limit
// falls back to DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records a snapshot unless it is structurally identical to the current
// top, compared in serialized form. When the cap is exceeded the oldest
// entry is dropped.
func (h *History) Push(s Snapshot) {
	if len(h.entries) > 0 && sameSnapshot(h.entries[len(h.entries)-1], s) {
		return
	}
	h.entries = append(h.entries, cloneSnapshot(s))
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Pop removes and returns the most recent snapshot. The second return value
// is false when the stack is empty; callers treat that as a reported no-op.
func (h *History) Pop() (Snapshot, bool) {
	if len(h.entries) == 0 {
		return Snapshot{}, false
	}
	top := h.entries[len(h.entries)-1]
	h.entries = h.entries[:len(h.entries)-1]
	return top, true
}

// Len returns the number of stored snapshots.
func (h *History) Len() int {
	return len(h.entries)
}

func cloneSnapshot(s Snapshot) Snapshot {
	confirmed := make([]segment.Confirmed, len(s.Confirmed))
	copy(confirmed, s.Confirmed)
	return Snapshot{Confirmed: confirmed, Sensitivity: s.Sensitivity}
}

func sameSnapshot(a, b Snapshot) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ab) == string(bb)
}
