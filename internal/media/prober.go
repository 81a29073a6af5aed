// Package media provides media file metadata probing.
package media

import (
	"context"
	"errors"
)

// Static errors for media operations.
var (
	// ErrFFprobeExecution is returned when the ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoDuration is returned when the probed file carries no duration.
	ErrNoDuration = errors.New("media has no duration")
)

// Info is the probed metadata of a media file.
type Info struct {
	// Duration is the media duration in seconds.
	Duration float64 `json:"duration"`
	// HasVideo reports whether the file contains a video stream.
	HasVideo bool `json:"hasVideo"`
	// HasAudio reports whether the file contains an audio stream.
	HasAudio bool `json:"hasAudio"`
}

// Prober defines the interface for reading media file metadata.
type Prober interface {
	// Probe returns the duration and stream layout of a media file.
	Probe(ctx context.Context, path string) (Info, error)
}
