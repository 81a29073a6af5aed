package surface

import "github.com/ripplecut/ripplecut/internal/timeline"

// Wheel applies an anchored zoom: the time instant under the pointer stays
// at the same screen pixel before and after. Non-finite deltas are treated
// as identity so a bad event can never corrupt the layout.
func (s *Surface) Wheel(delta, pointerX float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta = finiteOr(delta, 0)
	pointerX = finiteOr(pointerX, 0)

	s.refreshZoomBounds()
	newZoom := clampFloat(s.zoom*(1+WheelZoomRate*delta), s.minZoom*0.5, MaxZoom)
	if newZoom == s.zoom {
		return
	}

	// Anchor: keep the instant under the pointer fixed on screen.
	anchor := (s.scrollLeft + pointerX) / s.zoom
	s.zoom = newZoom
	s.scrollLeft = anchor*newZoom - pointerX
	if s.scrollLeft < 0 {
		s.scrollLeft = 0
	}
	s.dirty = true
}

// SetViewport updates the viewport size, recomputing the zoom bounds and
// clamping the zoom up if the new minimum exceeds it.
func (s *Surface) SetViewport(width, height float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout.ViewportWidth = finiteOr(width, s.layout.ViewportWidth)
	s.layout.ViewportHeight = finiteOr(height, s.layout.ViewportHeight)
	s.refreshZoomBounds()
	s.clampZoomUp()
	s.dirty = true
}

// SetMode switches the presentation mode, re-deriving the layout duration
// and immediately clamping the zoom if the mode switch left it below the
// new minimum.
func (s *Surface) SetMode(mode timeline.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model.SetMode(mode)
	s.refreshZoomBounds()
	s.clampZoomUp()
	s.dirty = true
}

// ZoomToFit sets the zoom so the whole layout duration fills the viewport.
func (s *Surface) ZoomToFit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshZoomBounds()
	s.zoom = s.fitZoom()
	s.scrollLeft = 0
	s.dirty = true
}

// refreshZoomBounds recomputes minZoom from the viewport width and the
// active layout duration. Callers must hold s.mu.
func (s *Surface) refreshZoomBounds() {
	duration := s.layoutDuration()
	if duration <= 0 || s.layout.ViewportWidth <= 0 {
		s.minZoom = 0
		return
	}
	s.minZoom = s.layout.ViewportWidth / duration
}

// fitZoom returns the zoom that shows the whole layout duration.
func (s *Surface) fitZoom() float64 {
	if s.minZoom <= 0 {
		return 1
	}
	return clampFloat(s.minZoom, s.minZoom*0.5, MaxZoom)
}

func (s *Surface) clampZoomUp() {
	if s.minZoom > 0 && s.zoom < s.minZoom {
		s.zoom = s.minZoom
	}
}
