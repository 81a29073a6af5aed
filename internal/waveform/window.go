package waveform

import "math"

// FollowTolerancePx is how close (in pixels) the viewport's right edge must
// have been to the previous buffer end for the view to keep auto-following
// the growing tail. Outside that band a user-chosen scroll position wins.
const FollowTolerancePx = 150

// Window is the slice of the peak buffer covering the currently visible
// pixel range. The renderer draws only this slice and never re-scans the
// whole buffer.
type Window struct {
	// Peaks are the visible samples, FirstIndex-aligned.
	Peaks []float32
	// FirstIndex is the buffer index of Peaks[0].
	FirstIndex int
	// SamplesPerPixel is the horizontal density of the window.
	SamplesPerPixel float64
}

// VisibleWindow computes the peak slice covering [scrollLeft,
// scrollLeft+viewportWidth) pixels at the given zoom (pixels per second).
// Degenerate inputs (non-finite or non-positive zoom/width) yield an empty
// window rather than corrupting index arithmetic.
func (b *Buffer) VisibleWindow(scrollLeft, viewportWidth, zoom float64) Window {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !isFinite(scrollLeft) || scrollLeft < 0 {
		scrollLeft = 0
	}
	if !isFinite(viewportWidth) || viewportWidth <= 0 || !isFinite(zoom) || zoom <= 0 {
		return Window{Peaks: []float32{}}
	}

	rate := b.sampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	samplesPerPixel := rate / zoom

	first := int(math.Floor(scrollLeft / zoom * rate))
	last := int(math.Ceil((scrollLeft + viewportWidth) / zoom * rate))
	if first < 0 {
		first = 0
	}
	if last > len(b.peaks) {
		last = len(b.peaks)
	}
	if first >= last {
		return Window{Peaks: []float32{}, FirstIndex: first, SamplesPerPixel: samplesPerPixel}
	}

	out := make([]float32, last-first)
	copy(out, b.peaks[first:last])
	return Window{Peaks: out, FirstIndex: first, SamplesPerPixel: samplesPerPixel}
}

// ShouldFollowTail decides whether the viewport auto-follows the growing
// buffer end. It follows only when the previous end was already within
// FollowTolerancePx of the viewport's right edge.
func ShouldFollowTail(scrollLeft, viewportWidth, prevEndPx float64) bool {
	if !isFinite(scrollLeft) || !isFinite(viewportWidth) || !isFinite(prevEndPx) {
		return false
	}
	rightEdge := scrollLeft + viewportWidth
	return prevEndPx <= rightEdge+FollowTolerancePx && prevEndPx >= scrollLeft
}
