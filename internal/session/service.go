package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/ripplecut/ripplecut/internal/detect"
	"github.com/ripplecut/ripplecut/internal/export"
	"github.com/ripplecut/ripplecut/internal/media"
	"github.com/ripplecut/ripplecut/internal/segment"
	"github.com/ripplecut/ripplecut/internal/storage"
	"github.com/ripplecut/ripplecut/internal/timeline"
	"github.com/ripplecut/ripplecut/internal/waveform"
)

// Analyzer produces waveform peaks for an opened media file, publishing
// step/done events into the session's stream until done or cancelled.
type Analyzer interface {
	Analyze(ctx context.Context, path string, duration float64, stream *waveform.Stream) error
}

// Service orchestrates editing sessions: opening media, running debounced
// silence detection, committing and editing cut segments, and exporting.
// It owns the per-session background resources (detection runner, waveform
// analysis, export run) and releases them on teardown.
type Service struct {
	repo     Repository
	prober   media.Prober
	detector detect.Detector
	analyzer Analyzer
	exporter export.Exporter
	store    storage.RenderStore
	logger   *slog.Logger

	debounce     time.Duration
	outDir       string
	historyLimit int

	mu       sync.Mutex
	runners  map[string]*detect.Runner
	analyses map[string]context.CancelFunc
	exports  map[string]context.CancelFunc
}

// ServiceConfig carries the service dependencies.
type ServiceConfig struct {
	Repository Repository
	Prober     media.Prober
	Detector   detect.Detector
	Analyzer   Analyzer
	Exporter   export.Exporter
	Storage    storage.RenderStore
	Logger     *slog.Logger
	// Debounce is the detection debounce window; zero means the default.
	Debounce time.Duration
	// OutDir is where rendered exports are written.
	OutDir string
	// HistoryLimit caps each session's undo stack; zero means the default.
	HistoryLimit int
}

// NewService creates a session service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         cfg.Repository,
		prober:       cfg.Prober,
		detector:     cfg.Detector,
		analyzer:     cfg.Analyzer,
		exporter:     cfg.Exporter,
		store:        cfg.Storage,
		logger:       logger,
		debounce:     cfg.Debounce,
		outDir:       cfg.OutDir,
		historyLimit: cfg.HistoryLimit,
	}
}

// Open probes a media file, creates a session over it and starts the
// waveform analysis in the background.
func (s *Service) Open(ctx context.Context, mediaPath string) (*Session, error) {
	info, err := s.prober.Probe(ctx, mediaPath)
	if err != nil {
		s.logger.Error("probe failed",
			slog.String("media_path", mediaPath),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("probe media: %w", err)
	}

	sess := New(mediaPath, info, timeline.WithHistoryLimit(s.historyLimit))

	s.logger.Info("session opened",
		slog.String("session_id", sess.ID),
		slog.String("media_path", mediaPath),
		slog.Float64("duration", info.Duration),
		slog.Bool("has_video", info.HasVideo),
		slog.Bool("has_audio", info.HasAudio),
	)

	if err := s.repo.Save(ctx, sess); err != nil {
		return nil, err
	}

	if s.analyzer != nil && info.HasAudio {
		s.startAnalysis(sess)
	}
	return sess, nil
}

// startAnalysis launches the waveform analyzer for a session, keeping its
// cancel func for teardown.
func (s *Service) startAnalysis(sess *Session) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.analyses == nil {
		s.analyses = make(map[string]context.CancelFunc)
	}
	s.analyses[sess.ID] = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		if err := s.analyzer.Analyze(ctx, sess.MediaPath, sess.Info.Duration, sess.Waveform); err != nil && ctx.Err() == nil {
			s.logger.Warn("waveform analysis failed",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Get retrieves a session by ID.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.repo.FindByID(ctx, id)
}

// SetDetection records new detection parameters and schedules a debounced
// detector pass. The pass subtracts the confirmed baseline; its result
// replaces the pending list wholesale. On detector failure the pending list
// is cleared and the error is surfaced on the session.
func (s *Service) SetDetection(ctx context.Context, id string, p detect.Params) error {
	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	sess.SetDetectParams(p)

	runner := s.runnerFor(id)
	baseline := sess.Timeline.Silences()

	runner.Request(context.Background(), sess.MediaPath, p, baseline, func(pending []segment.Pending, derr error) {
		if derr != nil {
			s.logger.Warn("detection failed",
				slog.String("session_id", id),
				slog.String("error", derr.Error()),
			)
			sess.SetDetectError(derr.Error())
			_ = sess.Timeline.Apply(timeline.Mutation{Track: timeline.TrackPending})
			return
		}
		_ = sess.Timeline.Apply(timeline.Mutation{Track: timeline.TrackPending, Pending: pending})
	})
	return nil
}

// runnerFor returns the session's detection runner, creating it on first use.
func (s *Service) runnerFor(id string) *detect.Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runners == nil {
		s.runners = make(map[string]*detect.Runner)
	}
	r, ok := s.runners[id]
	if !ok {
		r = detect.NewRunner(s.detector, s.debounce)
		s.runners[id] = r
	}
	return r
}

// Commit promotes the session's pending cuts into the confirmed list.
func (s *Service) Commit(ctx context.Context, id string, sensitivity float64) error {
	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return sess.Timeline.Commit(sensitivity)
}

// UpdateSegments replaces the confirmed list. Ephemeral updates (live drag
// previews) skip history; the final update of a gesture commits one entry.
func (s *Service) UpdateSegments(ctx context.Context, id string, segs []segment.Confirmed, ephemeral bool) error {
	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return sess.Timeline.Apply(timeline.Mutation{
		Track:       timeline.TrackConfirmed,
		Confirmed:   segs,
		SkipHistory: ephemeral,
	})
}

// Undo pops the session's history. It reports false, without error, when the
// stack is empty.
func (s *Service) Undo(ctx context.Context, id string) (bool, error) {
	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return sess.Timeline.Undo(), nil
}

// StartExport begins rendering the session's kept material in the
// background. Returns ErrExportActive if an export is already running.
// When publish is set and storage is configured, the rendered file is
// uploaded and the session carries its URL.
func (s *Service) StartExport(ctx context.Context, id string, publish bool) error {
	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.BeginExport(); err != nil {
		return err
	}

	req := s.buildExportRequest(sess)

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.exports == nil {
		s.exports = make(map[string]context.CancelFunc)
	}
	s.exports[id] = cancel
	s.mu.Unlock()

	s.logger.Info("export started",
		slog.String("session_id", id),
		slog.String("output_path", req.OutputPath),
		slog.Int("cut_count", len(req.Segments)),
	)

	go s.runExport(runCtx, sess, req, publish)
	return nil
}

// buildExportRequest assembles the export contract from the session: the
// merged confirmed cuts with the detection parameters that produced them.
func (s *Service) buildExportRequest(sess *Session) export.Request {
	silences := sess.Timeline.Silences()
	params := sess.DetectParams()

	cuts := make([]export.Segment, 0, len(silences))
	for _, iv := range silences {
		cuts = append(cuts, export.Segment{
			StartTime: iv.Start,
			EndTime:   iv.End,
			Duration:  iv.Width(),
			AverageDb: params.ThresholdDb,
		})
	}

	ext := filepath.Ext(sess.MediaPath)
	if ext == "" {
		ext = ".mp4"
	}
	outputPath := filepath.Join(s.outDir, sess.ID+"_export"+ext)
	if s.store != nil {
		outputPath = s.store.OutputPath(sess.ID, ext)
	}
	return export.Request{
		InputPath:          sess.MediaPath,
		OutputPath:         outputPath,
		Duration:           sess.Info.Duration,
		ThresholdDb:        params.ThresholdDb,
		MinSilenceDuration: params.MinSilenceDuration,
		Segments:           cuts,
	}
}

// runExport drives one export run to a terminal state.
func (s *Service) runExport(ctx context.Context, sess *Session, req export.Request, publish bool) {
	defer func() {
		s.mu.Lock()
		delete(s.exports, sess.ID)
		s.mu.Unlock()
	}()

	result, err := s.exporter.Export(ctx, req, sess.SetExportProgress)
	switch {
	case errors.Is(err, export.ErrCancelled):
		// The session was already marked cancelled optimistically.
		sess.CancelExport()
		return
	case err != nil:
		s.logger.Error("export failed",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		sess.FailExport(err.Error())
		return
	}

	url := ""
	if publish && s.store != nil {
		url, err = s.store.Publish(ctx, sess.ID, result.OutputPath)
		if err != nil && !errors.Is(err, storage.ErrPublishNotConfigured) {
			s.logger.Error("export upload failed",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
			sess.FailExport(err.Error())
			return
		}
	}

	s.logger.Info("export completed",
		slog.String("session_id", sess.ID),
		slog.String("output_path", result.OutputPath),
		slog.Float64("processed_duration", result.Summary.ProcessedDuration),
		slog.Float64("removed_duration", result.Summary.RemovedDuration),
	)
	sess.CompleteExport(result.OutputPath, url)
}

// CancelExport cancels a running export. The cancellation is optimistic: the
// session leaves the running state immediately, before the external process
// acknowledges.
func (s *Service) CancelExport(ctx context.Context, id string) error {
	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	sess.CancelExport()

	s.mu.Lock()
	cancel := s.exports[id]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Close tears a session down: the detection runner, waveform analysis and
// any running export are cancelled, the waveform stream is closed so stale
// events stop appending, and the session is removed.
func (s *Service) Close(ctx context.Context, id string) error {
	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if r, ok := s.runners[id]; ok {
		r.Close()
		delete(s.runners, id)
	}
	if cancel, ok := s.analyses[id]; ok {
		cancel()
		delete(s.analyses, id)
	}
	if cancel, ok := s.exports[id]; ok {
		cancel()
		delete(s.exports, id)
	}
	s.mu.Unlock()

	sess.Waveform.Close()

	if s.store != nil {
		if err := s.store.Discard(ctx, id); err != nil {
			s.logger.Warn("render cleanup failed",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("session closed", slog.String("session_id", id))
	return s.repo.Delete(ctx, id)
}
