// Package waveform accumulates progressively-arriving peak samples from the
// audio analyzer and serves the renderer the visible window of the buffer.
// The buffer is append-only while streaming and atomically replaced by the
// finalized peak set when analysis completes.
package waveform

import (
	"math"
	"sync"
)

// DefaultSampleRate is the fallback peak rate (peaks per second of media)
// used when the finalize event does not carry enough data to derive one.
const DefaultSampleRate = 50

// Buffer holds the streamed peak samples for one media file.
type Buffer struct {
	mu sync.RWMutex

	peaks      []float32
	progress   float64
	finalized  bool
	sampleRate float64
	duration   float64
	cacheID    string
}

// NewBuffer creates an empty streaming buffer.
func NewBuffer() *Buffer {
	return &Buffer{sampleRate: DefaultSampleRate}
}

// Step appends a batch of peaks and updates the analysis progress (0..1).
// Steps arriving after finalization are ignored; the finalized buffer is
// authoritative. Non-finite peak values are coerced to 0 so they can never
// reach pixel arithmetic.
func (b *Buffer) Step(peaks []float32, progress float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finalized {
		return
	}
	for _, p := range peaks {
		b.peaks = append(b.peaks, finite32(p))
	}
	if isFinite(progress) {
		b.progress = clamp01(progress)
	}
}

// Done finalizes the buffer. When finalPeaks is non-empty it replaces the
// accumulated buffer outright; otherwise the accumulated peaks become final.
// The sample rate is derived from totalSamples/duration when both are known,
// else DefaultSampleRate.
func (b *Buffer) Done(finalPeaks []float32, cacheID string, duration float64, totalSamples int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(finalPeaks) > 0 {
		replacement := make([]float32, len(finalPeaks))
		for i, p := range finalPeaks {
			replacement[i] = finite32(p)
		}
		b.peaks = replacement
	}

	if !isFinite(duration) || duration < 0 {
		duration = 0
	}
	b.duration = duration
	b.cacheID = cacheID
	if duration > 0 && totalSamples > 0 {
		b.sampleRate = float64(totalSamples) / duration
	} else {
		b.sampleRate = DefaultSampleRate
	}
	b.progress = 1
	b.finalized = true
}

// Len returns the current number of peaks.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peaks)
}

// Progress returns the analysis progress in 0..1.
func (b *Buffer) Progress() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.progress
}

// Finalized reports whether the buffer has been finalized.
func (b *Buffer) Finalized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.finalized
}

// SampleRate returns peaks per second of media.
func (b *Buffer) SampleRate() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sampleRate
}

// Duration returns the finalized media duration in seconds, 0 before Done.
func (b *Buffer) Duration() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.duration
}

// CacheID returns the analyzer's cache reference for this buffer.
func (b *Buffer) CacheID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cacheID
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finite32(v float32) float32 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return v
}
