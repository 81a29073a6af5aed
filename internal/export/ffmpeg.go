package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ripplecut/ripplecut/internal/segment"
)

// FFmpegExporter implements Exporter using the ffmpeg CLI: every kept span is
// extracted with stream copy and the parts are joined with the concat
// demuxer, re-encoding only if the fast path fails.
type FFmpegExporter struct {
	ffmpegPath string
	tempDir    string
}

// NewFFmpegExporter creates a new FFmpegExporter. An empty ffmpegPath
// defaults to "ffmpeg"; an empty tempDir defaults to the system temp dir.
func NewFFmpegExporter(ffmpegPath, tempDir string) *FFmpegExporter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &FFmpegExporter{ffmpegPath: ffmpegPath, tempDir: tempDir}
}

// Export implements Exporter.Export.
func (e *FFmpegExporter) Export(ctx context.Context, req Request, progress Progress) (Result, error) {
	if req.InputPath == "" || req.OutputPath == "" || req.Duration <= 0 {
		return Result{}, fmt.Errorf("%w: input=%q output=%q duration=%v",
			ErrInvalidRequest, req.InputPath, req.OutputPath, req.Duration)
	}
	if progress == nil {
		progress = func(float64) {}
	}

	spans := speechSpans(req.Duration, req.Segments)
	if len(spans) == 0 {
		return Result{}, ErrNothingToExport
	}

	workDir, err := os.MkdirTemp(e.tempDir, "ripplecut-export-*")
	if err != nil {
		return Result{}, fmt.Errorf("create work directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	// Extract each kept span; extraction dominates the runtime so progress is
	// reported per span, reserving the final fraction for the join.
	parts := make([]string, 0, len(spans))
	for i, span := range spans {
		if ctx.Err() != nil {
			return Result{}, ErrCancelled
		}
		partPath := filepath.Join(workDir, fmt.Sprintf("part_%03d%s", i, filepath.Ext(req.OutputPath)))
		if err := e.extractSpan(ctx, req.InputPath, partPath, span); err != nil {
			if ctx.Err() != nil {
				return Result{}, ErrCancelled
			}
			return Result{}, fmt.Errorf("extract span %d: %w", i, err)
		}
		parts = append(parts, partPath)
		progress(float64(i+1) / float64(len(spans)+1))
	}

	if err := e.join(ctx, parts, req.OutputPath); err != nil {
		if ctx.Err() != nil {
			return Result{}, ErrCancelled
		}
		return Result{}, fmt.Errorf("join spans: %w", err)
	}
	progress(1)

	return Result{
		Success:    true,
		OutputPath: req.OutputPath,
		Summary:    buildSummary(req.Duration, spans),
	}, nil
}

// extractSpan cuts one kept span out of the input with stream copy.
func (e *FFmpegExporter) extractSpan(ctx context.Context, inputPath, outputPath string, span segment.Interval) error {
	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", span.Start),
		"-t", fmt.Sprintf("%.3f", span.Width()),
		"-i", inputPath,
		"-c", "copy",
		outputPath,
	}
	return e.runFFmpeg(ctx, args)
}

// join concatenates the extracted parts. A single part is copied directly;
// multiple parts go through the concat demuxer with stream copy first and a
// re-encode fallback.
func (e *FFmpegExporter) join(ctx context.Context, parts []string, outputPath string) error {
	if len(parts) == 1 {
		data, err := os.ReadFile(parts[0]) // #nosec G304 - paths created by this process
		if err != nil {
			return fmt.Errorf("read part: %w", err)
		}
		if err := os.WriteFile(outputPath, data, 0600); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}

	listFile, err := e.createConcatList(parts)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	copyArgs := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outputPath,
	}
	if err := e.runFFmpeg(ctx, copyArgs); err == nil {
		return nil
	} else if ctx.Err() != nil {
		return err
	}

	reencodeArgs := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		outputPath,
	}
	return e.runFFmpeg(ctx, reencodeArgs)
}

// createConcatList writes the part list in the concat demuxer's format.
func (e *FFmpegExporter) createConcatList(parts []string) (string, error) {
	f, err := os.CreateTemp(e.tempDir, "ripplecut-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range parts {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// runFFmpeg executes ffmpeg and returns an error carrying stderr on failure.
func (e *FFmpegExporter) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}
	return nil
}

// Verify interface implementation at compile time.
var _ Exporter = (*FFmpegExporter)(nil)
