package surface

import (
	"context"
	"time"
)

// DefaultRenderTick is the fixed render-loop interval (~60fps).
const DefaultRenderTick = 16 * time.Millisecond

// Invalidate marks the surface dirty so the next render tick redraws it.
func (s *Surface) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// ConsumeDirty reports whether a redraw is needed and clears the flag.
func (s *Surface) ConsumeDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return false
	}
	s.dirty = false
	return true
}

// RunRenderLoop runs a fixed-tick loop that invokes render only when the
// surface is dirty. It is decoupled from any particular scheduling
// primitive: state mutations set the flag, the ticker drains it. The loop
// exits when ctx is cancelled.
func (s *Surface) RunRenderLoop(ctx context.Context, tick time.Duration, render func()) {
	if tick <= 0 {
		tick = DefaultRenderTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.ConsumeDirty() {
				render()
			}
		}
	}
}
