// Package export renders the kept material of an edited timeline into a new
// media file: the merged cut segments are inverted into speech spans, each
// span is extracted and the parts are concatenated.
package export

import (
	"context"
	"errors"

	"github.com/ripplecut/ripplecut/internal/segment"
)

// Static errors for export operations.
var (
	// ErrCancelled is returned when the user cancels a running export. It is
	// deliberately distinct from any failure error so callers can tell the
	// two outcomes apart.
	ErrCancelled = errors.New("export cancelled")
	// ErrNothingToExport is returned when the cuts cover the whole media.
	ErrNothingToExport = errors.New("no material remains after cuts")
	// ErrInvalidRequest is returned when the request misses required fields.
	ErrInvalidRequest = errors.New("invalid export request")
)

// guardBandSeconds pads each kept span's boundaries away from zero-width
// artifacts; spans at or below it are dropped.
const guardBandSeconds = 0.01

// Segment is one merged cut region carried by an export request.
type Segment struct {
	// StartTime is the cut start in seconds.
	StartTime float64 `json:"startTime"`
	// EndTime is the cut end in seconds.
	EndTime float64 `json:"endTime"`
	// Duration is EndTime minus StartTime.
	Duration float64 `json:"duration"`
	// AverageDb is the mean level of the region.
	AverageDb float64 `json:"averageDb"`
}

// Request describes one export run.
type Request struct {
	// InputPath is the source media file.
	InputPath string
	// OutputPath is the destination file.
	OutputPath string
	// Duration is the source media duration in seconds.
	Duration float64
	// ThresholdDb is the detection threshold the cuts were produced with.
	ThresholdDb float64
	// MinSilenceDuration is the detection minimum the cuts were produced with.
	MinSilenceDuration float64
	// Segments are the merged cut regions to remove.
	Segments []Segment
}

// Summary reports what the export removed.
type Summary struct {
	// OriginalDuration is the source duration in seconds.
	OriginalDuration float64 `json:"originalDuration"`
	// ProcessedDuration is the output duration in seconds.
	ProcessedDuration float64 `json:"processedDuration"`
	// RemovedDuration is the total removed time in seconds.
	RemovedDuration float64 `json:"removedDuration"`
	// CompressionRatio is ProcessedDuration over OriginalDuration.
	CompressionRatio float64 `json:"compressionRatio"`
	// SegmentCount is the number of kept spans in the output.
	SegmentCount int `json:"segmentCount"`
}

// Result is the outcome of a successful export.
type Result struct {
	// Success reports that the output file was produced.
	Success bool `json:"success"`
	// OutputPath is the rendered file.
	OutputPath string `json:"outputPath"`
	// Summary describes the removal totals.
	Summary Summary `json:"summary"`
}

// Progress receives the export completion fraction in [0, 1].
type Progress func(fraction float64)

// Exporter renders an edited timeline into a new media file.
type Exporter interface {
	// Export produces the output file. A cancelled context surfaces as
	// ErrCancelled; any other error is a failure.
	Export(ctx context.Context, req Request, progress Progress) (Result, error)
}

// speechSpans inverts the merged cut segments over the media duration into
// the ordered kept spans, dropping slivers at or below the guard band.
func speechSpans(duration float64, cuts []Segment) []segment.Interval {
	intervals := make([]segment.Interval, 0, len(cuts))
	for _, c := range cuts {
		intervals = append(intervals, segment.Interval{Start: c.StartTime, End: c.EndTime})
	}
	merged := segment.Merge(intervals)

	spans := make([]segment.Interval, 0, len(merged)+1)
	var cursor float64
	for _, cut := range merged {
		if cut.Start-cursor > guardBandSeconds {
			spans = append(spans, segment.Interval{Start: cursor, End: cut.Start})
		}
		if cut.End > cursor {
			cursor = cut.End
		}
	}
	if duration-cursor > guardBandSeconds {
		spans = append(spans, segment.Interval{Start: cursor, End: duration})
	}
	return spans
}

// buildSummary computes the removal totals for the kept spans.
func buildSummary(duration float64, spans []segment.Interval) Summary {
	var processed float64
	for _, s := range spans {
		processed += s.Width()
	}
	summary := Summary{
		OriginalDuration:  duration,
		ProcessedDuration: processed,
		RemovedDuration:   duration - processed,
		SegmentCount:      len(spans),
	}
	if duration > 0 {
		summary.CompressionRatio = processed / duration
	}
	return summary
}
