package waveform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"

	"github.com/google/uuid"
)

const (
	// analysisSampleRate is the PCM rate the analyzer decodes at. Peaks are
	// reduced from it, so a low mono rate is enough.
	analysisSampleRate = 8000

	// stepBatchSize is how many peaks accumulate before a step event is
	// published.
	stepBatchSize = 10
)

// FFmpegAnalyzer extracts normalized waveform peaks from a media file by
// decoding mono PCM through the ffmpeg CLI and reducing it to
// DefaultSampleRate peaks per second.
type FFmpegAnalyzer struct {
	ffmpegPath     string
	peaksPerSecond int
}

// NewFFmpegAnalyzer creates a new FFmpegAnalyzer. An empty ffmpegPath
// defaults to "ffmpeg"; a non-positive peaksPerSecond falls back to
// DefaultSampleRate.
func NewFFmpegAnalyzer(ffmpegPath string, peaksPerSecond int) *FFmpegAnalyzer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if peaksPerSecond <= 0 {
		peaksPerSecond = DefaultSampleRate
	}
	return &FFmpegAnalyzer{ffmpegPath: ffmpegPath, peaksPerSecond: peaksPerSecond}
}

// Analyze decodes the file and publishes step events in small batches,
// finishing with a done event carrying the totals. It blocks until the
// stream ends or ctx is cancelled.
func (a *FFmpegAnalyzer) Analyze(ctx context.Context, path string, duration float64, stream *Stream) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, a.ffmpegPath,
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", analysisSampleRate),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-hide_banner",
		"-loglevel", "error",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	total, err := reducePeaks(stdout, a.peaksPerSecond, duration, stream.Publish)
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("reduce peaks: %w", err)
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg decode: %w, stderr: %s", waitErr, stderr.String())
	}

	stream.Publish(Event{
		Kind:         EventDone,
		CacheID:      uuid.NewString(),
		Duration:     duration,
		TotalSamples: total,
	})
	return nil
}

// reducePeaks folds s16le PCM into one normalized peak per window and emits
// step events every stepBatchSize peaks. It returns the total peak count.
func reducePeaks(r io.Reader, peaksPerSecond int, duration float64, publish func(Event)) (int, error) {
	window := analysisSampleRate / peaksPerSecond
	if window < 1 {
		window = 1
	}
	expectedPeaks := duration * float64(peaksPerSecond)

	br := bufio.NewReaderSize(r, 64*1024)
	raw := make([]byte, 2)

	var (
		batch    []float32
		peak     float32
		inWindow int
		total    int
	)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		progress := 0.0
		if expectedPeaks > 0 {
			progress = float64(total) / expectedPeaks
			if progress > 1 {
				progress = 1
			}
		}
		publish(Event{Kind: EventStep, Peaks: batch, Progress: progress})
		batch = nil
	}

	for {
		if _, err := io.ReadFull(br, raw); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return total, err
		}
		sample := int16(binary.LittleEndian.Uint16(raw))
		amp := float32(sample) / 32768
		if amp < 0 {
			amp = -amp
		}
		if amp > peak {
			peak = amp
		}
		inWindow++
		if inWindow == window {
			batch = append(batch, peak)
			total++
			peak = 0
			inWindow = 0
			if len(batch) == stepBatchSize {
				flush()
			}
		}
	}
	// A final partial window still yields a peak.
	if inWindow > 0 {
		batch = append(batch, peak)
		total++
	}
	flush()
	return total, nil
}
