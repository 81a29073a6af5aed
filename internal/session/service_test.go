package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ripplecut/ripplecut/internal/detect"
	"github.com/ripplecut/ripplecut/internal/export"
	"github.com/ripplecut/ripplecut/internal/media"
	"github.com/ripplecut/ripplecut/internal/segment"
	"github.com/ripplecut/ripplecut/internal/storage"
	"github.com/ripplecut/ripplecut/internal/waveform"
)

type fakeProber struct {
	info media.Info
	err  error
}

func (f *fakeProber) Probe(ctx context.Context, path string) (media.Info, error) {
	return f.info, f.err
}

type fakeDetector struct {
	mu      sync.Mutex
	results []detect.Result
	err     error
	calls   int
}

func (f *fakeDetector) Detect(ctx context.Context, inputPath string, p detect.Params) ([]detect.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.results, f.err
}

type fakeExporter struct {
	mu     sync.Mutex
	err    error
	block  chan struct{}
	gotReq export.Request
}

func (f *fakeExporter) Export(ctx context.Context, req export.Request, progress export.Progress) (export.Result, error) {
	f.mu.Lock()
	f.gotReq = req
	block := f.block
	err := f.err
	f.mu.Unlock()

	if progress != nil {
		progress(0.5)
	}
	if block != nil {
		select {
		case <-ctx.Done():
			return export.Result{}, export.ErrCancelled
		case <-block:
		}
	}
	if err != nil {
		return export.Result{}, err
	}
	return export.Result{Success: true, OutputPath: req.OutputPath}, nil
}

func (f *fakeExporter) request() export.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gotReq
}

type fakeStore struct {
	mu        sync.Mutex
	outDir    string
	published []string
	discarded []string
	pubErr    error
}

func (f *fakeStore) OutputPath(sessionID, ext string) string {
	return f.outDir + "/" + sessionID + "_export" + ext
}

func (f *fakeStore) Discard(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, sessionID)
	return nil
}

func (f *fakeStore) Publish(ctx context.Context, sessionID, renderPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return "", f.pubErr
	}
	f.published = append(f.published, renderPath)
	return "https://renders.example.com/" + sessionID, nil
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, path string, duration float64, stream *waveform.Stream) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	stream.Publish(waveform.Event{Kind: waveform.EventDone, CacheID: "cache", Duration: duration, TotalSamples: 0})
	return nil
}

func newTestService(t *testing.T, det detect.Detector, exp export.Exporter) (*Service, *fakeAnalyzer) {
	t.Helper()
	an := &fakeAnalyzer{}
	svc := NewService(ServiceConfig{
		Repository: NewMemoryRepository(),
		Prober:     &fakeProber{info: media.Info{Duration: 100, HasVideo: true, HasAudio: true}},
		Detector:   det,
		Analyzer:   an,
		Exporter:   exp,
		Debounce:   time.Millisecond,
		OutDir:     t.TempDir(),
	})
	return svc, an
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestService_OpenProbesAndStartsAnalysis(t *testing.T) {
	svc, an := newTestService(t, &fakeDetector{}, &fakeExporter{})
	ctx := context.Background()

	sess, err := svc.Open(ctx, "/media/talk.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Timeline.OriginalDuration() != 100 {
		t.Errorf("expected duration 100, got %v", sess.Timeline.OriginalDuration())
	}

	found, err := svc.Get(ctx, sess.ID)
	if err != nil || found.ID != sess.ID {
		t.Errorf("expected session retrievable, got %v %v", found, err)
	}

	waitFor(t, func() bool {
		an.mu.Lock()
		defer an.mu.Unlock()
		return an.calls == 1
	})
	waitFor(t, func() bool { return sess.Waveform.Buffer().Finalized() })
}

func TestService_OpenProbeFailure(t *testing.T) {
	svc := NewService(ServiceConfig{
		Repository: NewMemoryRepository(),
		Prober:     &fakeProber{err: errors.New("no such file")},
	})
	if _, err := svc.Open(context.Background(), "/missing.mp4"); err == nil {
		t.Error("expected probe failure to propagate")
	}
}

func TestService_SetDetectionPopulatesPending(t *testing.T) {
	det := &fakeDetector{results: []detect.Result{
		{StartTime: 10, EndTime: 20, AverageDb: -50},
	}}
	svc, _ := newTestService(t, det, &fakeExporter{})
	ctx := context.Background()

	sess, _ := svc.Open(ctx, "a.mp4")
	if err := svc.SetDetection(ctx, sess.ID, detect.Params{ThresholdDb: -40, MinSilenceDuration: 0.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	waitFor(t, func() bool { return len(sess.Timeline.Pending()) == 1 })
	pending := sess.Timeline.Pending()
	if pending[0].Start != 10 || pending[0].End != 20 {
		t.Errorf("expected pending [10, 20], got %+v", pending[0])
	}
	if sess.DetectError() != "" {
		t.Errorf("expected no detect error, got %q", sess.DetectError())
	}
}

func TestService_SetDetectionSubtractsConfirmed(t *testing.T) {
	det := &fakeDetector{results: []detect.Result{
		{StartTime: 10, EndTime: 30, AverageDb: -50},
	}}
	svc, _ := newTestService(t, det, &fakeExporter{})
	ctx := context.Background()

	sess, _ := svc.Open(ctx, "a.mp4")
	_ = svc.UpdateSegments(ctx, sess.ID, []segment.Confirmed{segment.NewConfirmed(15, 25)}, false)

	_ = svc.SetDetection(ctx, sess.ID, detect.Params{ThresholdDb: -40})
	waitFor(t, func() bool { return len(sess.Timeline.Pending()) == 2 })

	pending := sess.Timeline.Pending()
	if pending[0].End != 15 || pending[1].Start != 25 {
		t.Errorf("expected pending split around the confirmed cut, got %+v", pending)
	}
}

func TestService_DetectorFailureLeavesPendingEmpty(t *testing.T) {
	det := &fakeDetector{err: errors.New("decoder exploded")}
	svc, _ := newTestService(t, det, &fakeExporter{})
	ctx := context.Background()

	sess, _ := svc.Open(ctx, "a.mp4")
	_ = svc.SetDetection(ctx, sess.ID, detect.Params{ThresholdDb: -40})

	waitFor(t, func() bool { return sess.DetectError() != "" })
	if len(sess.Timeline.Pending()) != 0 {
		t.Errorf("expected pending left empty on failure, got %v", sess.Timeline.Pending())
	}
}

func TestService_CommitPromotesPending(t *testing.T) {
	det := &fakeDetector{results: []detect.Result{
		{StartTime: 10, EndTime: 20, AverageDb: -50},
	}}
	svc, _ := newTestService(t, det, &fakeExporter{})
	ctx := context.Background()

	sess, _ := svc.Open(ctx, "a.mp4")
	_ = svc.SetDetection(ctx, sess.ID, detect.Params{ThresholdDb: -40})
	waitFor(t, func() bool { return len(sess.Timeline.Pending()) == 1 })

	if err := svc.Commit(ctx, sess.ID, 0.7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sess.Timeline.Pending()) != 0 {
		t.Error("expected pending cleared on commit")
	}
	if len(sess.Timeline.Confirmed()) != 1 {
		t.Error("expected pending promoted to confirmed")
	}
	if sess.Timeline.Sensitivity() != 0.7 {
		t.Errorf("expected sensitivity 0.7, got %v", sess.Timeline.Sensitivity())
	}
}

func TestService_UpdateSegmentsEphemeralSkipsHistory(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{}, &fakeExporter{})
	ctx := context.Background()
	sess, _ := svc.Open(ctx, "a.mp4")

	_ = svc.UpdateSegments(ctx, sess.ID, []segment.Confirmed{segment.NewConfirmed(5, 10)}, true)
	if sess.Timeline.HistoryLen() != 0 {
		t.Error("expected ephemeral update to skip history")
	}

	_ = svc.UpdateSegments(ctx, sess.ID, []segment.Confirmed{segment.NewConfirmed(5, 12)}, false)
	if sess.Timeline.HistoryLen() != 1 {
		t.Errorf("expected one history entry, got %d", sess.Timeline.HistoryLen())
	}
}

func TestService_UndoEmptyIsReportedNoOp(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{}, &fakeExporter{})
	ctx := context.Background()
	sess, _ := svc.Open(ctx, "a.mp4")

	undone, err := svc.Undo(ctx, sess.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if undone {
		t.Error("expected undo on empty history to report false")
	}
}

func TestService_ExportLifecycle(t *testing.T) {
	exp := &fakeExporter{}
	svc, _ := newTestService(t, &fakeDetector{}, exp)
	ctx := context.Background()

	sess, _ := svc.Open(ctx, "a.mp4")
	_ = svc.UpdateSegments(ctx, sess.ID, []segment.Confirmed{segment.NewConfirmed(10, 20)}, false)

	if err := svc.StartExport(ctx, sess.ID, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, func() bool { return sess.Export().State == ExportCompleted })

	req := exp.request()
	if req.Duration != 100 || len(req.Segments) != 1 {
		t.Errorf("unexpected export request: %+v", req)
	}
	if req.Segments[0].StartTime != 10 || req.Segments[0].EndTime != 20 {
		t.Errorf("expected merged confirmed cut in request, got %+v", req.Segments[0])
	}
	if sess.Export().OutputPath == "" {
		t.Error("expected output path recorded")
	}
}

func TestService_SecondExportWhileRunningRejected(t *testing.T) {
	exp := &fakeExporter{block: make(chan struct{})}
	svc, _ := newTestService(t, &fakeDetector{}, exp)
	ctx := context.Background()
	sess, _ := svc.Open(ctx, "a.mp4")

	if err := svc.StartExport(ctx, sess.ID, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.StartExport(ctx, sess.ID, false); !errors.Is(err, ErrExportActive) {
		t.Errorf("expected ErrExportActive, got %v", err)
	}
	close(exp.block)
	waitFor(t, func() bool { return sess.Export().State == ExportCompleted })
}

func TestService_CancelExportIsOptimistic(t *testing.T) {
	exp := &fakeExporter{block: make(chan struct{})}
	svc, _ := newTestService(t, &fakeDetector{}, exp)
	ctx := context.Background()
	sess, _ := svc.Open(ctx, "a.mp4")

	_ = svc.StartExport(ctx, sess.ID, false)
	if err := svc.CancelExport(ctx, sess.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Cancelled immediately, before the exporter acknowledges.
	if got := sess.Export().State; got != ExportCancelled {
		t.Errorf("expected cancelled state right away, got %s", got)
	}
	waitFor(t, func() bool { return sess.Export().State == ExportCancelled })
}

func TestService_ExportFailureDistinctFromCancel(t *testing.T) {
	exp := &fakeExporter{err: errors.New("muxer exploded")}
	svc, _ := newTestService(t, &fakeDetector{}, exp)
	ctx := context.Background()
	sess, _ := svc.Open(ctx, "a.mp4")

	_ = svc.StartExport(ctx, sess.ID, false)
	waitFor(t, func() bool { return sess.Export().State == ExportFailed })
	if sess.Export().Error == "" {
		t.Error("expected failure message surfaced")
	}
}

func TestService_ExportPublishesThroughStore(t *testing.T) {
	exp := &fakeExporter{}
	store := &fakeStore{outDir: t.TempDir()}
	an := &fakeAnalyzer{}
	svc := NewService(ServiceConfig{
		Repository: NewMemoryRepository(),
		Prober:     &fakeProber{info: media.Info{Duration: 100, HasAudio: true}},
		Detector:   &fakeDetector{},
		Analyzer:   an,
		Exporter:   exp,
		Storage:    store,
		Debounce:   time.Millisecond,
	})
	ctx := context.Background()
	sess, _ := svc.Open(ctx, "a.mp4")

	if err := svc.StartExport(ctx, sess.ID, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitFor(t, func() bool { return sess.Export().State == ExportCompleted })

	if got := exp.request().OutputPath; got != store.OutputPath(sess.ID, ".mp4") {
		t.Errorf("expected store-allocated output path, got %s", got)
	}
	if sess.Export().URL != "https://renders.example.com/"+sess.ID {
		t.Errorf("expected publish URL on the session, got %q", sess.Export().URL)
	}

	store.mu.Lock()
	published := len(store.published)
	store.mu.Unlock()
	if published != 1 {
		t.Errorf("expected one publish, got %d", published)
	}
}

func TestService_ExportPublishNotConfiguredTolerated(t *testing.T) {
	exp := &fakeExporter{}
	store := &fakeStore{outDir: t.TempDir(), pubErr: storage.ErrPublishNotConfigured}
	svc := NewService(ServiceConfig{
		Repository: NewMemoryRepository(),
		Prober:     &fakeProber{info: media.Info{Duration: 100}},
		Detector:   &fakeDetector{},
		Exporter:   exp,
		Storage:    store,
		Debounce:   time.Millisecond,
	})
	ctx := context.Background()
	sess, _ := svc.Open(ctx, "a.mp4")

	_ = svc.StartExport(ctx, sess.ID, true)
	waitFor(t, func() bool { return sess.Export().State == ExportCompleted })
	if sess.Export().URL != "" {
		t.Errorf("expected no URL without a publish target, got %q", sess.Export().URL)
	}
}

func TestService_CloseDiscardsRenders(t *testing.T) {
	store := &fakeStore{outDir: t.TempDir()}
	svc := NewService(ServiceConfig{
		Repository: NewMemoryRepository(),
		Prober:     &fakeProber{info: media.Info{Duration: 100}},
		Detector:   &fakeDetector{},
		Exporter:   &fakeExporter{},
		Storage:    store,
		Debounce:   time.Millisecond,
	})
	ctx := context.Background()
	sess, _ := svc.Open(ctx, "a.mp4")

	if err := svc.Close(ctx, sess.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.discarded) != 1 || store.discarded[0] != sess.ID {
		t.Errorf("expected session renders discarded, got %v", store.discarded)
	}
}

func TestService_CloseTearsDown(t *testing.T) {
	svc, _ := newTestService(t, &fakeDetector{}, &fakeExporter{})
	ctx := context.Background()
	sess, _ := svc.Open(ctx, "a.mp4")

	if err := svc.Close(ctx, sess.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected session removed, got %v", err)
	}

	// The closed stream ignores stale events.
	before := sess.Waveform.Buffer().Len()
	sess.Waveform.Publish(waveform.Event{Kind: waveform.EventStep, Peaks: []float32{0.5}})
	if sess.Waveform.Buffer().Len() != before {
		t.Error("expected closed stream to drop stale appends")
	}
}
