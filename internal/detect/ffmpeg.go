package detect

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FFmpegDetector implements Detector using the ffmpeg silencedetect filter.
type FFmpegDetector struct {
	ffmpegPath string
}

// NewFFmpegDetector creates a new FFmpegDetector.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegDetector(ffmpegPath string) *FFmpegDetector {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegDetector{ffmpegPath: ffmpegPath}
}

// Detect runs silencedetect over the input and returns the merged silence
// regions ordered by start time. silencedetect classifies against the
// threshold rather than measuring each region, so AverageDb carries the
// configured threshold.
func (d *FFmpegDetector) Detect(ctx context.Context, inputPath string, p Params) ([]Result, error) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file does not exist: %s", inputPath)
	}

	filter := fmt.Sprintf("silencedetect=noise=%.1fdB:d=%.3f", p.ThresholdDb, p.MinSilenceDuration)

	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-i", inputPath,
		"-af", filter,
		"-f", "null",
		"-hide_banner",
		"-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg writes silencedetect output to stderr and exits non-zero with a
	// null muxer; only treat it as failure when nothing was produced.
	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	output := stderr.String()
	if runErr != nil && !strings.Contains(output, "silencedetect") {
		return nil, fmt.Errorf("ffmpeg silencedetect: %w, stderr: %s", runErr, output)
	}

	results, err := parseSilenceOutput(output, p.ThresholdDb)
	if err != nil {
		return nil, fmt.Errorf("parse silencedetect output: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].StartTime < results[j].StartTime })
	return MergeClose(results), nil
}

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*([\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*([\d.]+)`)
)

// parseSilenceOutput pairs silence_start/silence_end lines from ffmpeg
// stderr. An unterminated trailing start (silence running into end of file)
// is dropped; the caller cannot know the media duration here.
func parseSilenceOutput(output string, levelDb float64) ([]Result, error) {
	var results []Result

	var currentStart float64
	hasStart := false

	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); len(m) > 1 {
			val, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			currentStart = val
			hasStart = true
		}

		if m := silenceEndRe.FindStringSubmatch(line); len(m) > 1 && hasStart {
			val, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			results = append(results, Result{
				StartTime: currentStart,
				EndTime:   val,
				AverageDb: levelDb,
			})
			hasStart = false
		}
	}

	return results, nil
}

// Verify interface implementation at compile time.
var _ Detector = (*FFmpegDetector)(nil)
