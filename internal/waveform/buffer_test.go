package waveform

import (
	"math"
	"testing"
)

func TestBuffer_StepAppends(t *testing.T) {
	b := NewBuffer()
	b.Step([]float32{0.1, 0.2}, 0.25)
	b.Step([]float32{0.3}, 0.5)

	if b.Len() != 3 {
		t.Errorf("expected 3 peaks, got %d", b.Len())
	}
	if b.Progress() != 0.5 {
		t.Errorf("expected progress 0.5, got %v", b.Progress())
	}
	if b.Finalized() {
		t.Error("buffer should not be finalized after steps")
	}
}

func TestBuffer_DoneKeepsAccumulatedWhenNoFinalPeaks(t *testing.T) {
	b := NewBuffer()
	b.Step([]float32{0.1, 0.2, 0.3}, 0.9)
	b.Done(nil, "cache-1", 10, 0)

	if b.Len() != 3 {
		t.Errorf("expected accumulated peaks kept, got %d", b.Len())
	}
	if !b.Finalized() || b.Progress() != 1 {
		t.Error("expected finalized buffer with progress 1")
	}
	if b.CacheID() != "cache-1" {
		t.Errorf("expected cache ID recorded, got %q", b.CacheID())
	}
}

func TestBuffer_DoneReplacesWithFinalPeaks(t *testing.T) {
	b := NewBuffer()
	b.Step([]float32{0.1, 0.2}, 0.4)
	b.Done([]float32{0.9, 0.8, 0.7, 0.6}, "cache-2", 2, 100)

	if b.Len() != 4 {
		t.Errorf("expected replacement buffer of 4 peaks, got %d", b.Len())
	}
	if b.SampleRate() != 50 {
		t.Errorf("expected derived sample rate 100/2=50, got %v", b.SampleRate())
	}
}

func TestBuffer_SampleRateFallback(t *testing.T) {
	b := NewBuffer()
	b.Done(nil, "cache-3", 0, 0)
	if b.SampleRate() != DefaultSampleRate {
		t.Errorf("expected fallback sample rate %v, got %v", float64(DefaultSampleRate), b.SampleRate())
	}
}

func TestBuffer_StepAfterDoneIgnored(t *testing.T) {
	b := NewBuffer()
	b.Done([]float32{0.5}, "cache-4", 1, 50)
	b.Step([]float32{0.9, 0.9}, 0.1)

	if b.Len() != 1 {
		t.Errorf("expected late step to be ignored, got %d peaks", b.Len())
	}
	if b.Progress() != 1 {
		t.Errorf("expected progress pinned at 1, got %v", b.Progress())
	}
}

func TestBuffer_NonFiniteInputsGuarded(t *testing.T) {
	b := NewBuffer()
	b.Step([]float32{float32(math.NaN()), float32(math.Inf(1))}, math.NaN())
	if b.Progress() != 0 {
		t.Errorf("expected NaN progress ignored, got %v", b.Progress())
	}
	w := b.VisibleWindow(0, 100, 10)
	for _, p := range w.Peaks {
		if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
			t.Error("non-finite peak leaked into window")
		}
	}
	b.Done(nil, "c", math.Inf(1), 10)
	if b.Duration() != 0 {
		t.Errorf("expected non-finite duration defaulted to 0, got %v", b.Duration())
	}
}

func TestVisibleWindow_CoversPixelRange(t *testing.T) {
	b := NewBuffer()
	peaks := make([]float32, 500)
	for i := range peaks {
		peaks[i] = float32(i) / 500
	}
	b.Step(peaks, 0.5)
	b.Done(nil, "cache-5", 10, 500) // 50 peaks/sec

	// Viewport 100px at zoom 10px/s shows 10s .. but scrolled 20px = 2s in.
	w := b.VisibleWindow(20, 100, 10)
	if w.FirstIndex != 100 {
		t.Errorf("expected window starting at peak 100, got %d", w.FirstIndex)
	}
	if len(w.Peaks) == 0 || len(w.Peaks) > 401 {
		t.Errorf("unexpected window size %d", len(w.Peaks))
	}
	if w.SamplesPerPixel != 5 {
		t.Errorf("expected 5 samples/pixel, got %v", w.SamplesPerPixel)
	}
}

func TestVisibleWindow_DegenerateZoom(t *testing.T) {
	b := NewBuffer()
	b.Step([]float32{0.1, 0.2}, 0.1)
	for _, zoom := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if got := b.VisibleWindow(0, 100, zoom); len(got.Peaks) != 0 {
			t.Errorf("expected empty window for zoom %v", zoom)
		}
	}
}

func TestShouldFollowTail(t *testing.T) {
	// End right at the viewport edge: follow.
	if !ShouldFollowTail(0, 800, 810) {
		t.Error("expected follow within tolerance")
	}
	// End far beyond the viewport: user scrolled back, do not follow.
	if ShouldFollowTail(0, 800, 2000) {
		t.Error("expected no follow outside tolerance")
	}
	// End behind the viewport start: stale geometry, do not follow.
	if ShouldFollowTail(500, 800, 100) {
		t.Error("expected no follow when end precedes viewport")
	}
	if ShouldFollowTail(math.NaN(), 800, 100) {
		t.Error("expected no follow on non-finite input")
	}
}

func TestStream_SubscribeAndCancel(t *testing.T) {
	s := NewStream(NewBuffer())

	var events int
	sub := s.Subscribe(func(Event) { events++ })

	s.Publish(Event{Kind: EventStep, Peaks: []float32{0.1}, Progress: 0.2})
	if events != 1 {
		t.Fatalf("expected 1 event, got %d", events)
	}

	sub.Cancel()
	sub.Cancel() // idempotent
	s.Publish(Event{Kind: EventStep, Peaks: []float32{0.2}, Progress: 0.4})
	if events != 1 {
		t.Errorf("expected no events after cancel, got %d", events)
	}
	if s.Buffer().Len() != 2 {
		t.Errorf("expected buffer still fed, got %d", s.Buffer().Len())
	}
}

func TestStream_CloseStopsStaleAppends(t *testing.T) {
	s := NewStream(NewBuffer())
	s.Publish(Event{Kind: EventStep, Peaks: []float32{0.1}, Progress: 0.1})
	s.Close()
	s.Publish(Event{Kind: EventStep, Peaks: []float32{0.2}, Progress: 0.2})

	if s.Buffer().Len() != 1 {
		t.Errorf("expected no appends after close, got %d", s.Buffer().Len())
	}
}
