// Package segment provides the interval-set algebra the timeline engine is
// built on: cut regions as [start, end) spans of real-time seconds, merge and
// subtract operations, and the confirmed/pending segment types that carry
// stable identifiers.
package segment

import (
	"math"

	"github.com/google/uuid"
)

const (
	// MinWidth is the minimum meaningful interval width in seconds for
	// user-initiated edits. Narrower results are discarded.
	MinWidth = 0.01

	// MinDetectedWidth is the minimum width in seconds for detector output
	// after padding has been applied.
	MinDetectedWidth = 0.05
)

// Interval is a span of real-time seconds with Start < End.
type Interval struct {
	// Start is the beginning of the span in seconds.
	Start float64 `json:"start"`
	// End is the end of the span in seconds.
	End float64 `json:"end"`
}

// Width returns the duration of the interval in seconds.
func (iv Interval) Width() float64 {
	return iv.End - iv.Start
}

// IsValid reports whether the interval is well formed: finite bounds and
// Start strictly before End.
func (iv Interval) IsValid() bool {
	return isFinite(iv.Start) && isFinite(iv.End) && iv.Start < iv.End
}

// Contains reports whether t falls inside the interval.
func (iv Interval) Contains(t float64) bool {
	return t > iv.Start && t < iv.End
}

// Confirmed is a cut interval permanently accepted into the baseline.
// The ID is assigned at creation and survives merges and drags, so gestures
// can address a segment without relying on its list position.
type Confirmed struct {
	// ID is the stable identifier for this segment.
	ID string `json:"id"`
	Interval
}

// Pending is a speculative cut interval proposed by the latest detection
// pass. Pending segments never enter history and are wholly replaced on
// every detector re-run.
type Pending struct {
	// ID is the stable identifier for this segment.
	ID string `json:"id"`
	Interval
	// AverageLevel is the mean level of the detected region in dB.
	AverageLevel float64 `json:"averageLevel"`
}

// NewConfirmed creates a confirmed segment with a fresh ID.
func NewConfirmed(start, end float64) Confirmed {
	return Confirmed{ID: uuid.NewString(), Interval: Interval{Start: start, End: end}}
}

// NewPending creates a pending segment with a fresh ID.
func NewPending(start, end, averageLevel float64) Pending {
	return Pending{
		ID:           uuid.NewString(),
		Interval:     Interval{Start: start, End: end},
		AverageLevel: averageLevel,
	}
}

// Intervals extracts the bare intervals from a confirmed segment list.
func Intervals(segs []Confirmed) []Interval {
	out := make([]Interval, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.Interval)
	}
	return out
}

// PendingIntervals extracts the bare intervals from a pending segment list.
func PendingIntervals(segs []Pending) []Interval {
	out := make([]Interval, 0, len(segs))
	for _, s := range segs {
		out = append(out, s.Interval)
	}
	return out
}

// Total returns the summed width of the intervals. The input is not assumed
// to be merged; callers that need set-measure semantics merge first.
func Total(intervals []Interval) float64 {
	var sum float64
	for _, iv := range intervals {
		sum += iv.Width()
	}
	return sum
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
