// Package surface implements the interactive canvas engine: hit-testing,
// the drag/scrub/box-select gesture state machine, anchored zoom, selection
// and the dirty-flag render loop. It mutates the timeline model through its
// single entry point and owns no segment data itself.
package surface

import (
	"math"

	"github.com/ripplecut/ripplecut/internal/timeline"
)

const (
	// EdgeTolerancePx is the hit-test tolerance around a segment edge.
	EdgeTolerancePx = 8

	// MaxZoom is the upper zoom bound in pixels per second.
	MaxZoom = 2000

	// WheelZoomRate scales wheel delta into a zoom factor.
	WheelZoomRate = 0.002
)

// Layout describes the vertical arrangement of the canvas rows and the
// viewport dimensions. Rows are stacked: ruler, pending track, confirmed
// track, media track.
type Layout struct {
	// ViewportWidth is the visible canvas width in pixels.
	ViewportWidth float64
	// ViewportHeight is the visible canvas height in pixels.
	ViewportHeight float64
	// RulerHeight is the height of the time ruler row.
	RulerHeight float64
	// TrackHeight is the height of each segment/media row.
	TrackHeight float64
}

// DefaultLayout returns the standard row geometry for a viewport size.
func DefaultLayout(viewportWidth, viewportHeight float64) Layout {
	return Layout{
		ViewportWidth:  finiteOr(viewportWidth, 0),
		ViewportHeight: finiteOr(viewportHeight, 0),
		RulerHeight:    24,
		TrackHeight:    48,
	}
}

// row identifies which horizontal band a Y coordinate falls into.
type row int

const (
	rowNone row = iota
	rowRuler
	rowPending
	rowConfirmed
	rowMedia
)

// rowAt maps a Y pixel coordinate to its row.
func (l Layout) rowAt(y float64) row {
	if !isFinite(y) || y < 0 {
		return rowNone
	}
	switch {
	case y < l.RulerHeight:
		return rowRuler
	case y < l.RulerHeight+l.TrackHeight:
		return rowPending
	case y < l.RulerHeight+2*l.TrackHeight:
		return rowConfirmed
	case y < l.RulerHeight+3*l.TrackHeight:
		return rowMedia
	default:
		return rowNone
	}
}

// rowSpan returns the Y range of a row.
func (l Layout) rowSpan(r row) (top, bottom float64) {
	switch r {
	case rowRuler:
		return 0, l.RulerHeight
	case rowPending:
		return l.RulerHeight, l.RulerHeight + l.TrackHeight
	case rowConfirmed:
		return l.RulerHeight + l.TrackHeight, l.RulerHeight + 2*l.TrackHeight
	case rowMedia:
		return l.RulerHeight + 2*l.TrackHeight, l.RulerHeight + 3*l.TrackHeight
	default:
		return 0, 0
	}
}

// timeAt converts a viewport X pixel into a timeline coordinate at the
// current zoom and scroll. Segment rows use real time; the media row uses
// the active layout time (virtual in fragmented mode).
func (s *Surface) timeAt(x float64) float64 {
	x = finiteOr(x, 0)
	if s.zoom <= 0 {
		return 0
	}
	return (s.scrollLeft + x) / s.zoom
}

// pixelOf converts a timeline coordinate into a viewport X pixel.
func (s *Surface) pixelOf(t float64) float64 {
	return finiteOr(t, 0)*s.zoom - s.scrollLeft
}

// layoutDuration is the duration the canvas is laid out against: the
// collapsed virtual duration in fragmented mode, the original duration in
// continuous (overlay) mode.
func (s *Surface) layoutDuration() float64 {
	if s.model.Mode() == timeline.ModeFragmented {
		stats := s.model.Stats()
		return stats.CurrentBase
	}
	return s.model.OriginalDuration()
}

// finiteOr guards numeric inputs crossing the boundary: non-finite values
// collapse to the fallback instead of reaching zoom or pixel arithmetic.
func finiteOr(v, fallback float64) float64 {
	if !isFinite(v) {
		return fallback
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampFloat(v, lo, hi float64) float64 {
	if !isFinite(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
