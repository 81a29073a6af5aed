// Package storage persists rendered exports. It defines the RenderStore
// interface (port) for hexagonal architecture and implementations for a
// local output directory and S3-published renders.
package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrPublishNotConfigured is returned when publishing is attempted without
// an upload target configured.
var ErrPublishNotConfigured = errors.New("render publishing is not configured")

// RenderStore manages the lifecycle of rendered export files: where a
// session's render is written, how it is published, and when it is removed.
type RenderStore interface {
	// OutputPath allocates the file path a session's render is written to.
	// The extension includes the leading dot.
	OutputPath(sessionID, ext string) string

	// Discard removes a session's rendered files. Missing files are not an
	// error; a session may never have exported.
	Discard(ctx context.Context, sessionID string) error

	// Publish uploads a session's rendered file and returns its public URL.
	// Returns ErrPublishNotConfigured when no upload target exists.
	Publish(ctx context.Context, sessionID, renderPath string) (url string, err error)
}

// renderContentTypes maps render file extensions to upload content types.
// Exports carry the source container's extension, so only media types that
// ffmpeg stream-copies into appear here.
var renderContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

// contentTypeFor returns the upload content type for a rendered file.
func contentTypeFor(path string) string {
	if ct, ok := renderContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}
