package surface

import (
	"github.com/ripplecut/ripplecut/internal/segment"
	"github.com/ripplecut/ripplecut/internal/timeline"
)

// segmentPixelRange projects a segment's interval onto the viewport through
// the model's current mapper, so fragmented mode collapses it the same way
// the renderer does.
func (s *Surface) segmentPixelRange(iv segment.Interval) (startPx, endPx float64) {
	mapper := s.model.Mapper()
	return s.pixelOf(mapper.RealToVirtual(iv.Start)), s.pixelOf(mapper.RealToVirtual(iv.End))
}

// hitSegmentEdge finds the first segment whose start or end edge is within
// EdgeTolerancePx of x. Edges win over bodies, so a narrow segment is still
// resizable.
func (s *Surface) hitSegmentEdge(intervals []segment.Interval, x float64) (int, Edge, bool) {
	for i, iv := range intervals {
		startPx, endPx := s.segmentPixelRange(iv)
		if abs(x-startPx) <= EdgeTolerancePx {
			return i, EdgeStart, true
		}
		if abs(x-endPx) <= EdgeTolerancePx {
			return i, EdgeEnd, true
		}
	}
	return 0, EdgeStart, false
}

// hitSegmentBody finds the first segment whose body contains x.
func (s *Surface) hitSegmentBody(intervals []segment.Interval, x float64) (int, bool) {
	for i, iv := range intervals {
		startPx, endPx := s.segmentPixelRange(iv)
		if x >= startPx && x <= endPx {
			return i, true
		}
	}
	return 0, false
}

// hitClip finds the speech clip under x on the collapsed media row.
func (s *Surface) hitClip(x float64) (int, bool) {
	for i, c := range s.model.SpeechClips() {
		startPx := s.pixelOf(c.VirtualStart)
		endPx := s.pixelOf(c.VirtualStart + c.Duration)
		if x >= startPx && x <= endPx {
			return i, true
		}
	}
	return 0, false
}

// resolveBoxSelection computes which indices the released box covers and
// sets the selection. When the box spans several rows the ambiguity is
// resolved pending-over-confirmed, then media clips.
func (s *Surface) resolveBoxSelection() {
	minX, maxX := ordered(s.box.startX, s.box.curX)
	minY, maxY := ordered(s.box.startY, s.box.curY)

	covers := func(r row) bool {
		top, bottom := s.layout.rowSpan(r)
		return maxY >= top && minY <= bottom
	}

	if covers(rowPending) {
		if idx := s.boxedSegments(segment.PendingIntervals(s.model.Pending()), minX, maxX); len(idx) > 0 {
			s.selection = Selection{Track: timeline.TrackPending, Indices: idx}
			s.dirty = true
			return
		}
	}
	if covers(rowConfirmed) {
		if idx := s.boxedSegments(segment.Intervals(s.model.Confirmed()), minX, maxX); len(idx) > 0 {
			s.selection = Selection{Track: timeline.TrackConfirmed, Indices: idx}
			s.dirty = true
			return
		}
	}
	if covers(rowMedia) && s.model.Mode() == timeline.ModeFragmented {
		var idx []int
		for i, c := range s.model.SpeechClips() {
			startPx := s.pixelOf(c.VirtualStart)
			endPx := s.pixelOf(c.VirtualStart + c.Duration)
			if endPx >= minX && startPx <= maxX {
				idx = append(idx, i)
			}
		}
		if len(idx) > 0 {
			s.selection = Selection{Track: timeline.TrackMedia, Indices: idx}
			s.dirty = true
			return
		}
	}

	s.selection = Selection{}
	s.dirty = true
}

// boxedSegments returns the indices of segments whose projected pixel range
// overlaps [minX, maxX].
func (s *Surface) boxedSegments(intervals []segment.Interval, minX, maxX float64) []int {
	var idx []int
	for i, iv := range intervals {
		startPx, endPx := s.segmentPixelRange(iv)
		if endPx >= minX && startPx <= maxX {
			idx = append(idx, i)
		}
	}
	return idx
}

func ordered(a, b float64) (lo, hi float64) {
	if a > b {
		return b, a
	}
	return a, b
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
