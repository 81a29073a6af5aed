package surface

import (
	"errors"
	"sync"

	"github.com/ripplecut/ripplecut/internal/segment"
	"github.com/ripplecut/ripplecut/internal/timeline"
)

// Gesture is the interaction state machine's current state. Exactly one
// gesture session may be active at a time; a new one can only start after
// the previous pointer-up returned the machine to Idle.
type Gesture string

const (
	// GestureIdle means no pointer session is active.
	GestureIdle Gesture = "idle"
	// GestureScrubbing seeks the playhead while the pointer is down on the ruler.
	GestureScrubbing Gesture = "scrubbing"
	// GestureEdgeDragging resizes a segment edge with ephemeral previews.
	GestureEdgeDragging Gesture = "edge-dragging"
	// GestureBoxSelecting tracks a rectangular selection.
	GestureBoxSelecting Gesture = "box-selecting"
	// GestureMediaSelecting is a press on the media row.
	GestureMediaSelecting Gesture = "media-selecting"
)

// validTransitions defines the allowed gesture transitions.
var validTransitions = map[Gesture][]Gesture{
	GestureIdle:           {GestureScrubbing, GestureEdgeDragging, GestureBoxSelecting, GestureMediaSelecting},
	GestureScrubbing:      {GestureIdle},
	GestureEdgeDragging:   {GestureIdle},
	GestureBoxSelecting:   {GestureIdle},
	GestureMediaSelecting: {GestureIdle},
}

func canTransition(from, to Gesture) bool {
	for _, g := range validTransitions[from] {
		if g == to {
			return true
		}
	}
	return false
}

// ErrGestureActive is returned when a pointer-down arrives while a gesture
// session is still in progress.
var ErrGestureActive = errors.New("surface: gesture already active")

// Edge names which end of a segment a drag grabs.
type Edge string

const (
	// EdgeStart is the left edge.
	EdgeStart Edge = "start"
	// EdgeEnd is the right edge.
	EdgeEnd Edge = "end"
)

// Selection is the ephemeral selection state. It is never persisted and is
// reset whenever the active file identity changes.
type Selection struct {
	// Track is the selected track kind.
	Track timeline.Track `json:"track"`
	// Indices are the selected positions within the track's current list.
	// Empty indices on the media track mean the whole item is selected.
	Indices []int `json:"indices"`
}

// Pointer is a canvas-space pointer position in pixels.
type Pointer struct {
	X float64
	Y float64
}

// DeleteOutcome reports how a keyboard delete was dispatched.
type DeleteOutcome string

const (
	// DeleteNone means nothing was selected.
	DeleteNone DeleteOutcome = "none"
	// DeletedPending removed segments from the pending list.
	DeletedPending DeleteOutcome = "pending"
	// DeletedConfirmed removed segments from the confirmed list.
	DeletedConfirmed DeleteOutcome = "confirmed"
	// DeletedClips ripple-deleted selected speech clips into confirmed cuts.
	DeletedClips DeleteOutcome = "clips"
	// DeleteMediaRequested asks the caller to remove the whole media item.
	DeleteMediaRequested DeleteOutcome = "media"
)

// dragState addresses the dragged segment by its stable ID, never by list
// position: merges reordering the list mid-gesture cannot invalidate it.
type dragState struct {
	track      timeline.Track
	id         string
	edge       Edge
	mapper     timeline.Mapper
	preConfirm []segment.Confirmed
	prePending []segment.Pending
}

type boxState struct {
	startX, startY float64
	curX, curY     float64
}

// Surface drives one canvas over one timeline model.
type Surface struct {
	mu sync.Mutex

	model  *timeline.Model
	layout Layout

	zoom       float64
	minZoom    float64
	scrollLeft float64
	playhead   float64

	gesture         Gesture
	drag            dragState
	box             boxState
	selection       Selection
	contextMenuOpen bool

	dirty bool
}

// New creates a surface for a model with the given viewport, zoomed to fit.
func New(model *timeline.Model, viewportWidth, viewportHeight float64) *Surface {
	s := &Surface{
		model:   model,
		layout:  DefaultLayout(viewportWidth, viewportHeight),
		gesture: GestureIdle,
		zoom:    1,
		dirty:   true,
	}
	s.refreshZoomBounds()
	s.zoom = s.fitZoom()
	return s
}

// ResetForFile rebinds the surface to a new model when the active file
// identity changes. Selection, gesture and scroll state are cleared.
func (s *Surface) ResetForFile(model *timeline.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	s.selection = Selection{}
	s.gesture = GestureIdle
	s.drag = dragState{}
	s.contextMenuOpen = false
	s.scrollLeft = 0
	s.playhead = 0
	s.refreshZoomBounds()
	s.zoom = s.fitZoom()
	s.dirty = true
}

// Model returns the bound timeline model.
func (s *Surface) Model() *timeline.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Gesture returns the current state machine state.
func (s *Surface) Gesture() Gesture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gesture
}

// Selection returns the current selection.
func (s *Surface) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Selection{Track: s.selection.Track, Indices: make([]int, len(s.selection.Indices))}
	copy(out.Indices, s.selection.Indices)
	return out
}

// Playhead returns the playhead position in real seconds.
func (s *Surface) Playhead() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playhead
}

// Zoom returns the current zoom in pixels per second.
func (s *Surface) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// ScrollLeft returns the horizontal scroll offset in pixels.
func (s *Surface) ScrollLeft() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrollLeft
}

// SetScrollLeft applies a user scroll, clamped to the layout extent.
func (s *Surface) SetScrollLeft(px float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	extent := s.layoutDuration()*s.zoom - s.layout.ViewportWidth
	if extent < 0 {
		extent = 0
	}
	s.scrollLeft = clampFloat(px, 0, extent)
	s.dirty = true
}

// ContextMenuOpen reports whether the context menu overlay is showing.
func (s *Surface) ContextMenuOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextMenuOpen
}

// OpenContextMenu raises the overlay. It does not disturb the gesture state;
// any outside click dismisses it.
func (s *Surface) OpenContextMenu() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextMenuOpen = true
	s.dirty = true
}

// OutsideClick dismisses the context menu overlay.
func (s *Surface) OutsideClick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contextMenuOpen {
		s.contextMenuOpen = false
		s.dirty = true
	}
}

// PointerDown starts a gesture session according to the hit-test priority:
// ruler, pending edge, pending body, confirmed edge, confirmed body, media
// row, box-select. A click while the context menu is open only dismisses it.
func (s *Surface) PointerDown(p Pointer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contextMenuOpen {
		s.contextMenuOpen = false
		s.dirty = true
		return nil
	}
	if s.gesture != GestureIdle {
		return ErrGestureActive
	}

	p.X = finiteOr(p.X, 0)
	p.Y = finiteOr(p.Y, 0)

	switch s.layout.rowAt(p.Y) {
	case rowRuler:
		s.transition(GestureScrubbing)
		s.seek(p.X)
		return nil

	case rowPending:
		pending := s.model.Pending()
		if idx, edge, ok := s.hitSegmentEdge(segment.PendingIntervals(pending), p.X); ok {
			s.beginEdgeDrag(timeline.TrackPending, pending[idx].ID, edge)
			return nil
		}
		if idx, ok := s.hitSegmentBody(segment.PendingIntervals(pending), p.X); ok {
			s.selection = Selection{Track: timeline.TrackPending, Indices: []int{idx}}
			s.dirty = true
			return nil
		}

	case rowConfirmed:
		confirmed := s.model.Confirmed()
		if idx, edge, ok := s.hitSegmentEdge(segment.Intervals(confirmed), p.X); ok {
			s.beginEdgeDrag(timeline.TrackConfirmed, confirmed[idx].ID, edge)
			return nil
		}
		if idx, ok := s.hitSegmentBody(segment.Intervals(confirmed), p.X); ok {
			s.selection = Selection{Track: timeline.TrackConfirmed, Indices: []int{idx}}
			s.dirty = true
			return nil
		}

	case rowMedia:
		s.transition(GestureMediaSelecting)
		if s.model.Mode() == timeline.ModeFragmented {
			if idx, ok := s.hitClip(p.X); ok {
				s.selection = Selection{Track: timeline.TrackMedia, Indices: []int{idx}}
				s.dirty = true
				return nil
			}
		}
		s.selection = Selection{Track: timeline.TrackMedia}
		s.dirty = true
		return nil
	}

	s.transition(GestureBoxSelecting)
	s.box = boxState{startX: p.X, startY: p.Y, curX: p.X, curY: p.Y}
	return nil
}

// PointerMove advances the active gesture: scrubbing seeks, edge dragging
// updates the segment through the ephemeral (skip-history) path, box
// selection grows the rectangle. Moves while Idle are ignored.
func (s *Surface) PointerMove(p Pointer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.X = finiteOr(p.X, 0)
	p.Y = finiteOr(p.Y, 0)

	switch s.gesture {
	case GestureScrubbing:
		s.seek(p.X)
	case GestureEdgeDragging:
		s.updateDrag(p.X)
	case GestureBoxSelecting:
		s.box.curX = p.X
		s.box.curY = p.Y
		s.dirty = true
	}
}

// PointerUp ends the gesture session. Edge drags commit exactly one history
// entry; box selects resolve the covered indices into the selection.
func (s *Surface) PointerUp(p Pointer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.X = finiteOr(p.X, 0)
	p.Y = finiteOr(p.Y, 0)

	switch s.gesture {
	case GestureScrubbing:
		s.seek(p.X)
	case GestureEdgeDragging:
		s.updateDrag(p.X)
		s.commitDrag()
	case GestureBoxSelecting:
		s.box.curX = p.X
		s.box.curY = p.Y
		s.resolveBoxSelection()
	}

	if s.gesture != GestureIdle {
		s.transition(GestureIdle)
	}
	s.drag = dragState{}
}

// CancelGesture abandons the active gesture session without committing it.
// An edge drag rolls back to the pre-gesture list with no history entry; a
// box selection is discarded. Cancelling while Idle is a no-op.
func (s *Surface) CancelGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.gesture {
	case GestureIdle:
		return
	case GestureEdgeDragging:
		s.rollbackDrag()
	}

	s.transition(GestureIdle)
	s.drag = dragState{}
	s.box = boxState{}
	s.dirty = true
}

// rollbackDrag restores the dragged track to its pre-gesture snapshot. The
// confirmed restore skips history so the abandoned gesture leaves no entry.
func (s *Surface) rollbackDrag() {
	switch s.drag.track {
	case timeline.TrackConfirmed:
		_ = s.model.Apply(timeline.Mutation{Track: timeline.TrackConfirmed, Confirmed: s.drag.preConfirm, SkipHistory: true})
	case timeline.TrackPending:
		_ = s.model.Apply(timeline.Mutation{Track: timeline.TrackPending, Pending: s.drag.prePending})
	}
}

// KeyDelete dispatches a delete keypress by the selected track kind.
func (s *Surface) KeyDelete() DeleteOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.selection
	switch sel.Track {
	case timeline.TrackPending:
		if len(sel.Indices) == 0 {
			return DeleteNone
		}
		pending := s.model.Pending()
		next := excludePending(pending, sel.Indices)
		_ = s.model.Apply(timeline.Mutation{Track: timeline.TrackPending, Pending: next})
		s.selection = Selection{}
		s.dirty = true
		return DeletedPending

	case timeline.TrackConfirmed:
		if len(sel.Indices) == 0 {
			return DeleteNone
		}
		confirmed := s.model.Confirmed()
		next := excludeConfirmed(confirmed, sel.Indices)
		_ = s.model.Apply(timeline.Mutation{Track: timeline.TrackConfirmed, Confirmed: next})
		s.selection = Selection{}
		s.dirty = true
		return DeletedConfirmed

	case timeline.TrackMedia:
		if len(sel.Indices) > 0 && s.model.Mode() == timeline.ModeFragmented {
			// Ripple delete: each selected speech clip becomes a confirmed cut.
			clips := s.model.SpeechClips()
			next := s.model.Confirmed()
			for _, idx := range sel.Indices {
				if idx >= 0 && idx < len(clips) {
					next = append(next, segment.NewConfirmed(clips[idx].Start, clips[idx].End))
				}
			}
			_ = s.model.Apply(timeline.Mutation{Track: timeline.TrackConfirmed, Confirmed: next})
			s.selection = Selection{}
			s.dirty = true
			return DeletedClips
		}
		if len(sel.Indices) == 0 {
			s.selection = Selection{}
			s.dirty = true
			return DeleteMediaRequested
		}
	}
	return DeleteNone
}

// transition moves the gesture machine; disallowed transitions are ignored
// so a stray event cannot corrupt the single-session invariant.
func (s *Surface) transition(to Gesture) {
	if !canTransition(s.gesture, to) {
		return
	}
	s.gesture = to
	s.dirty = true
}

// seek moves the playhead to the real-time instant under the pointer.
func (s *Surface) seek(x float64) {
	mapper := s.model.Mapper()
	t := mapper.VirtualToReal(s.timeAt(x))
	s.playhead = clampFloat(t, 0, s.model.OriginalDuration())
	s.dirty = true
}

func (s *Surface) beginEdgeDrag(track timeline.Track, id string, edge Edge) {
	s.transition(GestureEdgeDragging)
	s.drag = dragState{
		track:  track,
		id:     id,
		edge:   edge,
		mapper: s.model.Mapper(),
	}
	if track == timeline.TrackConfirmed {
		s.drag.preConfirm = s.model.Confirmed()
	} else {
		s.drag.prePending = s.model.Pending()
	}
}

// updateDrag applies the dragged edge position through the ephemeral path,
// resolving the segment by its stable ID against the model's current list.
func (s *Surface) updateDrag(x float64) {
	t := s.drag.mapper.VirtualToReal(s.timeAt(x))
	t = clampFloat(t, 0, s.model.OriginalDuration())

	switch s.drag.track {
	case timeline.TrackConfirmed:
		segs := s.model.Confirmed()
		for i := range segs {
			if segs[i].ID != s.drag.id {
				continue
			}
			segs[i].Interval = dragEdge(segs[i].Interval, s.drag.edge, t, s.model.OriginalDuration())
			_ = s.model.Apply(timeline.Mutation{Track: timeline.TrackConfirmed, Confirmed: segs, SkipHistory: true})
			break
		}
	case timeline.TrackPending:
		segs := s.model.Pending()
		for i := range segs {
			if segs[i].ID != s.drag.id {
				continue
			}
			segs[i].Interval = dragEdge(segs[i].Interval, s.drag.edge, t, s.model.OriginalDuration())
			_ = s.model.Apply(timeline.Mutation{Track: timeline.TrackPending, Pending: segs})
			break
		}
	}
	s.dirty = true
}

// commitDrag pushes exactly one history entry for a confirmed-list drag: the
// pre-drag list is restored through the ephemeral path, then the final value
// is applied normally so the snapshot recorded is the pre-gesture state.
func (s *Surface) commitDrag() {
	if s.drag.track != timeline.TrackConfirmed {
		return
	}
	final := s.model.Confirmed()
	_ = s.model.Apply(timeline.Mutation{Track: timeline.TrackConfirmed, Confirmed: s.drag.preConfirm, SkipHistory: true})
	_ = s.model.Apply(timeline.Mutation{Track: timeline.TrackConfirmed, Confirmed: final})
}

// dragEdge moves one edge to t, keeping the minimum UI width.
func dragEdge(iv segment.Interval, edge Edge, t, maxEnd float64) segment.Interval {
	if edge == EdgeStart {
		iv.Start = clampFloat(t, 0, iv.End-segment.MinWidth)
	} else {
		iv.End = clampFloat(t, iv.Start+segment.MinWidth, maxEnd)
	}
	return iv
}

func excludeConfirmed(segs []segment.Confirmed, indices []int) []segment.Confirmed {
	drop := indexSet(indices)
	out := make([]segment.Confirmed, 0, len(segs))
	for i, s := range segs {
		if !drop[i] {
			out = append(out, s)
		}
	}
	return out
}

func excludePending(segs []segment.Pending, indices []int) []segment.Pending {
	drop := indexSet(indices)
	out := make([]segment.Pending, 0, len(segs))
	for i, s := range segs {
		if !drop[i] {
			out = append(out, s)
		}
	}
	return out
}

func indexSet(indices []int) map[int]bool {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	return set
}
