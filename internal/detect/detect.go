// Package detect provides silence detection for media files: a detector port
// with an ffmpeg silencedetect adapter, the post-processing that turns raw
// candidates into pending cut segments, and a debounced runner that guards
// against stale completions.
package detect

import (
	"context"

	"github.com/ripplecut/ripplecut/internal/segment"
)

// closeGapSeconds is the maximum gap between two detected silences that still
// merges them into one region.
const closeGapSeconds = 0.1

// Params configures one detection pass.
type Params struct {
	// ThresholdDb is the level below which audio counts as silence.
	ThresholdDb float64
	// MinSilenceDuration is the minimum silence length in seconds the
	// detector reports.
	MinSilenceDuration float64
	// Padding shrinks every detected region symmetrically: the region's
	// start moves later and its end earlier by this many seconds, keeping a
	// natural breath around cuts.
	Padding float64
	// SampleRate is the analysis rate hint in samples per second.
	SampleRate int
	// CacheID identifies the analyzed media revision.
	CacheID string
}

// Result is one raw silence candidate reported by a detector.
type Result struct {
	// StartTime is the region start in seconds.
	StartTime float64 `json:"startTime"`
	// EndTime is the region end in seconds.
	EndTime float64 `json:"endTime"`
	// AverageDb is the mean level of the region.
	AverageDb float64 `json:"averageDb"`
}

// Detector finds silence regions in a media file.
type Detector interface {
	Detect(ctx context.Context, inputPath string, p Params) ([]Result, error)
}

// PostProcess turns raw detector candidates into pending segments: each
// region is shrunk by the symmetric padding, regions narrower than the
// detector minimum are dropped, and any overlap with the confirmed baseline
// is removed so a pending segment never proposes re-cutting committed
// material.
func PostProcess(results []Result, p Params, baseline []segment.Interval) []segment.Pending {
	padded := make([]segment.Interval, 0, len(results))
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		iv := segment.Interval{Start: r.StartTime + p.Padding, End: r.EndTime - p.Padding}
		if !iv.IsValid() || iv.Width() <= segment.MinDetectedWidth {
			continue
		}
		padded = append(padded, iv)
		kept = append(kept, r)
	}

	remaining := segment.Subtract(padded, baseline)

	pending := make([]segment.Pending, 0, len(remaining))
	for _, iv := range remaining {
		pending = append(pending, segment.NewPending(iv.Start, iv.End, levelFor(kept, iv, p.ThresholdDb)))
	}
	return pending
}

// levelFor finds the measured level of the source candidate an interval came
// from. Subtraction can split or trim a region but never moves it outside its
// source, so the first overlapping candidate is the origin.
func levelFor(results []Result, iv segment.Interval, fallback float64) float64 {
	for _, r := range results {
		if iv.Start < r.EndTime && iv.End > r.StartTime {
			return r.AverageDb
		}
	}
	return fallback
}

// MergeClose coalesces silences separated by less than closeGapSeconds into
// one region whose level is the duration-weighted mean of the parts. The
// input must be ordered by start time.
func MergeClose(results []Result) []Result {
	if len(results) < 2 {
		return results
	}

	merged := make([]Result, 0, len(results))
	current := results[0]
	for _, next := range results[1:] {
		if next.StartTime-current.EndTime <= closeGapSeconds {
			total := (current.EndTime - current.StartTime) + (next.EndTime - next.StartTime)
			if total > 0 {
				wCur := (current.EndTime - current.StartTime) / total
				wNext := (next.EndTime - next.StartTime) / total
				current.AverageDb = current.AverageDb*wCur + next.AverageDb*wNext
			}
			current.EndTime = next.EndTime
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
