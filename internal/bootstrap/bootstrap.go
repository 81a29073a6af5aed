// Package bootstrap provides dependency initialization for the RippleCut API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ripplecut/ripplecut/internal/config"
	"github.com/ripplecut/ripplecut/internal/detect"
	"github.com/ripplecut/ripplecut/internal/export"
	"github.com/ripplecut/ripplecut/internal/media"
	"github.com/ripplecut/ripplecut/internal/session"
	"github.com/ripplecut/ripplecut/internal/storage"
	"github.com/ripplecut/ripplecut/internal/waveform"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	SessionService *session.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	prober := media.NewFFprobeProber(cfg.FFprobePath)
	detector := detect.NewFFmpegDetector(cfg.FFmpegPath)
	analyzer := waveform.NewFFmpegAnalyzer(cfg.FFmpegPath, cfg.PeaksPerSecond)
	exporter := export.NewFFmpegExporter(cfg.FFmpegPath, cfg.TempDir)

	repo := session.NewMemoryRepository()

	svc := session.NewService(session.ServiceConfig{
		Repository:   repo,
		Prober:       prober,
		Detector:     detector,
		Analyzer:     analyzer,
		Exporter:     exporter,
		Storage:      store,
		Logger:       logger,
		Debounce:     time.Duration(cfg.DetectDebounceMs) * time.Millisecond,
		OutDir:       cfg.OutDir,
		HistoryLimit: cfg.HistoryLimit,
	})

	return &Dependencies{
		SessionService: svc,
	}, nil
}

// initStorage creates the appropriate render store based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.RenderStore, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.OutDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 render store: %w", err)
		}
		logger.Info("S3 render publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.OutDir)
	if err != nil {
		return nil, fmt.Errorf("create render store: %w", err)
	}
	logger.Info("local render store configured",
		slog.String("out_dir", localStore.OutDir()),
	)
	return localStore, nil
}
