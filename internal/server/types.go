// Package server provides the HTTP server for the RippleCut API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// OpenSessionRequest is the HTTP request body for opening an editing session.
type OpenSessionRequest struct {
	// MediaPath is the media file to open.
	MediaPath string `json:"mediaPath" validate:"required"`
}

// SegmentDTO is one cut interval on the wire.
type SegmentDTO struct {
	// ID is the stable segment identifier. Empty on input means a new segment.
	ID string `json:"id,omitempty"`
	// Start is the cut start in seconds.
	Start float64 `json:"start" validate:"gte=0"`
	// End is the cut end in seconds.
	End float64 `json:"end" validate:"gtfield=Start"`
	// AverageLevel is the detected mean level in dB (pending segments only).
	AverageLevel float64 `json:"averageLevel,omitempty"`
}

// ClipDTO is one derived speech clip on the wire.
type ClipDTO struct {
	// Start is the clip's real-time start in seconds.
	Start float64 `json:"start"`
	// End is the clip's real-time end in seconds.
	End float64 `json:"end"`
	// Duration is End minus Start.
	Duration float64 `json:"duration"`
	// VirtualStart is the clip's offset on the collapsed timeline.
	VirtualStart float64 `json:"virtualStart"`
}

// StatsDTO is the derived timeline statistics on the wire.
type StatsDTO struct {
	// OriginalDuration is the media duration in seconds.
	OriginalDuration float64 `json:"originalDuration"`
	// CurrentBase is OriginalDuration minus the merged confirmed cuts.
	CurrentBase float64 `json:"currentBase"`
	// Remaining is the duration an export would produce right now.
	Remaining float64 `json:"remaining"`
	// TotalCutDuration is the total time removed by all cuts.
	TotalCutDuration float64 `json:"totalCutDuration"`
	// CutCount is the number of merged cut regions.
	CutCount int `json:"cutCount"`
}

// WaveformStatusDTO is the streaming analysis state on the wire.
type WaveformStatusDTO struct {
	// Progress is the analysis progress 0..1.
	Progress float64 `json:"progress"`
	// Finalized reports whether the analysis completed.
	Finalized bool `json:"finalized"`
	// SampleRate is the peak rate in samples per second.
	SampleRate float64 `json:"sampleRate"`
	// TotalPeaks is the number of peaks buffered so far.
	TotalPeaks int `json:"totalPeaks"`
	// CacheID identifies the analyzed media revision (set when finalized).
	CacheID string `json:"cacheId,omitempty"`
}

// ExportStatusDTO is the export lifecycle state on the wire.
type ExportStatusDTO struct {
	// State is idle, running, completed, failed or cancelled.
	State string `json:"state"`
	// Progress is the completion fraction 0..1 while running.
	Progress float64 `json:"progress"`
	// OutputPath is the rendered file once completed.
	OutputPath string `json:"outputPath,omitempty"`
	// URL is the uploaded location when publishing is configured.
	URL string `json:"url,omitempty"`
	// Error is the failure message when the state is failed.
	Error string `json:"error,omitempty"`
}

// SessionResponse is the HTTP response carrying a full session snapshot.
type SessionResponse struct {
	// ID is the unique session identifier.
	ID string `json:"id"`
	// MediaPath is the opened source file.
	MediaPath string `json:"mediaPath"`
	// Duration is the probed media duration in seconds.
	Duration float64 `json:"duration"`
	// HasVideo reports whether the file contains a video stream.
	HasVideo bool `json:"hasVideo"`
	// HasAudio reports whether the file contains an audio stream.
	HasAudio bool `json:"hasAudio"`
	// Mode is the presentation mode (fragmented or continuous).
	Mode string `json:"mode"`
	// Stats are the derived timeline statistics.
	Stats StatsDTO `json:"stats"`
	// Confirmed is the confirmed cut list.
	Confirmed []SegmentDTO `json:"confirmed"`
	// Pending is the pending cut list.
	Pending []SegmentDTO `json:"pending"`
	// Clips are the derived speech clips.
	Clips []ClipDTO `json:"clips"`
	// HistoryLen is the undo stack depth.
	HistoryLen int `json:"historyLen"`
	// Sensitivity is the committed detection sensitivity.
	Sensitivity float64 `json:"sensitivity"`
	// DetectError is the last detector failure message, if any.
	DetectError string `json:"detectError,omitempty"`
	// Waveform is the streaming analysis state.
	Waveform WaveformStatusDTO `json:"waveform"`
	// Export is the export lifecycle state.
	Export ExportStatusDTO `json:"export"`
}

// SetDetectionRequest is the HTTP request body for detection parameters.
type SetDetectionRequest struct {
	// ThresholdDb is the silence threshold; silence sits at or below it.
	ThresholdDb float64 `json:"thresholdDb" validate:"lte=0,gte=-100"`
	// MinSilenceDuration is the minimum silence length in seconds.
	MinSilenceDuration float64 `json:"minSilenceDuration" validate:"gt=0"`
	// Padding shrinks detected regions symmetrically, in seconds.
	Padding float64 `json:"padding" validate:"gte=0"`
}

// CommitRequest is the HTTP request body for committing pending cuts.
type CommitRequest struct {
	// Sensitivity is the slider value that produced the pending set.
	Sensitivity float64 `json:"sensitivity" validate:"gte=0,lte=1"`
}

// UpdateSegmentsRequest is the HTTP request body for replacing the confirmed
// cut list.
type UpdateSegmentsRequest struct {
	// Segments is the full replacement confirmed list.
	Segments []SegmentDTO `json:"segments" validate:"dive"`
	// Ephemeral marks a live drag preview that must not enter history.
	Ephemeral bool `json:"ephemeral"`
}

// UndoResponse is the HTTP response for an undo request.
type UndoResponse struct {
	// Undone reports whether a history entry was restored. False means the
	// stack was empty and nothing changed.
	Undone bool `json:"undone"`
}

// StartExportRequest is the HTTP request body for starting an export.
type StartExportRequest struct {
	// Publish uploads the rendered file through the configured storage.
	Publish bool `json:"publish"`
}

// WaveformWindowResponse is the HTTP response carrying the visible peak
// window for the requested viewport.
type WaveformWindowResponse struct {
	// Peaks are the visible normalized amplitudes.
	Peaks []float32 `json:"peaks"`
	// FirstIndex is the buffer index of the first returned peak.
	FirstIndex int `json:"firstIndex"`
	// SamplesPerPixel is the reduction ratio for the requested zoom.
	SamplesPerPixel float64 `json:"samplesPerPixel"`
	// EndPx is the buffer's current end in pixels at the requested zoom.
	// Clients echo it back as prevEndPx on the next poll.
	EndPx float64 `json:"endPx"`
	// FollowTail reports whether the viewport should keep following the
	// growing buffer end, given the prevEndPx the client sent.
	FollowTail bool `json:"followTail"`
	// Status is the streaming analysis state.
	Status WaveformStatusDTO `json:"status"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
