package export

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ripplecut/ripplecut/internal/segment"
)

func TestSpeechSpans_InvertsCuts(t *testing.T) {
	cuts := []Segment{
		{StartTime: 10, EndTime: 20},
		{StartTime: 30, EndTime: 35},
	}
	spans := speechSpans(100, cuts)

	want := []segment.Interval{
		{Start: 0, End: 10},
		{Start: 20, End: 30},
		{Start: 35, End: 100},
	}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %v", len(want), spans)
	}
	for i, s := range spans {
		if s != want[i] {
			t.Errorf("span %d: expected %+v, got %+v", i, want[i], s)
		}
	}
}

func TestSpeechSpans_OverlappingCutsMerged(t *testing.T) {
	cuts := []Segment{
		{StartTime: 5, EndTime: 15},
		{StartTime: 10, EndTime: 25},
	}
	spans := speechSpans(60, cuts)

	want := []segment.Interval{
		{Start: 0, End: 5},
		{Start: 25, End: 60},
	}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %v", len(want), spans)
	}
	for i, s := range spans {
		if s != want[i] {
			t.Errorf("span %d: expected %+v, got %+v", i, want[i], s)
		}
	}
}

func TestSpeechSpans_GuardBandDropsSlivers(t *testing.T) {
	// Cut from 0.005: the head span [0, 0.005] is inside the guard band.
	// Cut ending at 99.995: the tail span is inside it too.
	cuts := []Segment{
		{StartTime: 0.005, EndTime: 50},
		{StartTime: 60, EndTime: 99.995},
	}
	spans := speechSpans(100, cuts)

	want := []segment.Interval{{Start: 50, End: 60}}
	if len(spans) != 1 || spans[0] != want[0] {
		t.Errorf("expected only the middle span, got %v", spans)
	}
}

func TestSpeechSpans_NoCutsKeepsWholeMedia(t *testing.T) {
	spans := speechSpans(42, nil)
	if len(spans) != 1 || spans[0].Start != 0 || spans[0].End != 42 {
		t.Errorf("expected single full span, got %v", spans)
	}
}

func TestSpeechSpans_EverythingCut(t *testing.T) {
	spans := speechSpans(10, []Segment{{StartTime: 0, EndTime: 10}})
	if len(spans) != 0 {
		t.Errorf("expected no spans, got %v", spans)
	}
}

func TestBuildSummary(t *testing.T) {
	spans := []segment.Interval{
		{Start: 0, End: 10},
		{Start: 20, End: 30},
	}
	summary := buildSummary(100, spans)

	if summary.OriginalDuration != 100 {
		t.Errorf("expected original 100, got %v", summary.OriginalDuration)
	}
	if summary.ProcessedDuration != 20 {
		t.Errorf("expected processed 20, got %v", summary.ProcessedDuration)
	}
	if summary.RemovedDuration != 80 {
		t.Errorf("expected removed 80, got %v", summary.RemovedDuration)
	}
	if math.Abs(summary.CompressionRatio-0.2) > 1e-9 {
		t.Errorf("expected ratio 0.2, got %v", summary.CompressionRatio)
	}
	if summary.SegmentCount != 2 {
		t.Errorf("expected 2 segments, got %d", summary.SegmentCount)
	}
}

func TestExport_InvalidRequest(t *testing.T) {
	e := NewFFmpegExporter("", "")
	_, err := e.Export(context.Background(), Request{}, nil)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestExport_NothingToExport(t *testing.T) {
	e := NewFFmpegExporter("", "")
	req := Request{
		InputPath:  "in.mp4",
		OutputPath: "out.mp4",
		Duration:   10,
		Segments:   []Segment{{StartTime: 0, EndTime: 10}},
	}
	_, err := e.Export(context.Background(), req, nil)
	if !errors.Is(err, ErrNothingToExport) {
		t.Errorf("expected ErrNothingToExport, got %v", err)
	}
}

func TestExport_CancelledContextIsSentinel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewFFmpegExporter("", t.TempDir())
	req := Request{
		InputPath:  "in.mp4",
		OutputPath: "out.mp4",
		Duration:   10,
	}
	_, err := e.Export(ctx, req, nil)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	if errors.Is(err, ErrNothingToExport) || errors.Is(err, ErrInvalidRequest) {
		t.Error("cancellation must not alias a failure sentinel")
	}
}
