// Package session provides the editing session aggregate: one open media
// file with its timeline model, waveform stream, detection parameters and
// export state, plus the repository port and the service orchestrating the
// editing operations.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ripplecut/ripplecut/internal/detect"
	"github.com/ripplecut/ripplecut/internal/media"
	"github.com/ripplecut/ripplecut/internal/timeline"
	"github.com/ripplecut/ripplecut/internal/waveform"
)

// ExportState is the session's export lifecycle state.
type ExportState string

const (
	// ExportIdle means no export has been requested.
	ExportIdle ExportState = "idle"
	// ExportRunning means an export is in flight.
	ExportRunning ExportState = "running"
	// ExportCompleted means the last export produced an output file.
	ExportCompleted ExportState = "completed"
	// ExportFailed means the last export failed.
	ExportFailed ExportState = "failed"
	// ExportCancelled means the user cancelled the last export.
	ExportCancelled ExportState = "cancelled"
)

// ErrExportActive is returned when an export is requested while one is
// already running.
var ErrExportActive = errors.New("session: export already running")

// validExportTransitions defines the allowed export state transitions.
// Terminal states allow a new run; a running export only ends through its
// three outcomes.
var validExportTransitions = map[ExportState][]ExportState{
	ExportIdle:      {ExportRunning},
	ExportRunning:   {ExportCompleted, ExportFailed, ExportCancelled},
	ExportCompleted: {ExportRunning},
	ExportFailed:    {ExportRunning},
	ExportCancelled: {ExportRunning},
}

func canTransition(from, to ExportState) bool {
	for _, s := range validExportTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ExportInfo is the export-related snapshot of a session.
type ExportInfo struct {
	// State is the export lifecycle state.
	State ExportState `json:"state"`
	// Progress is the completion fraction 0..1 while running.
	Progress float64 `json:"progress"`
	// OutputPath is the rendered file once completed.
	OutputPath string `json:"outputPath,omitempty"`
	// URL is the uploaded location when storage publishing is configured.
	URL string `json:"url,omitempty"`
	// Error is the failure message when the state is failed.
	Error string `json:"error,omitempty"`
}

// Session is the aggregate for one open media file. The timeline model and
// waveform stream are internally synchronized engines shared by reference;
// the scalar state here is guarded by the session's own mutex.
type Session struct {
	mu sync.RWMutex

	// ID is the unique identifier for this session.
	ID string
	// MediaPath is the opened source file.
	MediaPath string
	// Info is the probed media metadata.
	Info media.Info
	// Timeline owns the confirmed/pending cut lists and their derivations.
	Timeline *timeline.Model
	// Waveform routes analyzer events into the session's peak buffer.
	Waveform *waveform.Stream

	detectParams detect.Params
	detectError  string

	export ExportInfo

	// CreatedAt is when the session was opened.
	CreatedAt time.Time
	// UpdatedAt is when the session state last changed.
	UpdatedAt time.Time
}

// New opens a session over probed media: a fresh timeline model at the
// probed duration and an empty waveform stream.
func New(mediaPath string, info media.Info, opts ...timeline.Option) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		MediaPath: mediaPath,
		Info:      info,
		Timeline:  timeline.NewModel(info.Duration, opts...),
		Waveform:  waveform.NewStream(waveform.NewBuffer()),
		export:    ExportInfo{State: ExportIdle},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DetectParams returns the last requested detection parameters.
func (s *Session) DetectParams() detect.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detectParams
}

// SetDetectParams records the requested detection parameters and clears any
// previous detector error.
func (s *Session) SetDetectParams(p detect.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectParams = p
	s.detectError = ""
	s.UpdatedAt = time.Now()
}

// DetectError returns the last detector failure message, empty when the last
// pass succeeded.
func (s *Session) DetectError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detectError
}

// SetDetectError records a detector failure surfaced to the caller.
func (s *Session) SetDetectError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectError = msg
	s.UpdatedAt = time.Now()
}

// Export returns the export snapshot.
func (s *Session) Export() ExportInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.export
}

// BeginExport moves the export state to running. Returns ErrExportActive if
// an export is already in flight.
func (s *Session) BeginExport() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.export.State, ExportRunning) {
		return ErrExportActive
	}
	s.export = ExportInfo{State: ExportRunning}
	s.UpdatedAt = time.Now()
	return nil
}

// SetExportProgress updates the running export's completion fraction.
// Updates arriving after the export left the running state are dropped.
func (s *Session) SetExportProgress(fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.export.State != ExportRunning {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	s.export.Progress = fraction
	s.UpdatedAt = time.Now()
}

// CompleteExport records a successful export. A stale completion after the
// user already cancelled is ignored.
func (s *Session) CompleteExport(outputPath, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.export.State, ExportCompleted) {
		return
	}
	s.export = ExportInfo{State: ExportCompleted, Progress: 1, OutputPath: outputPath, URL: url}
	s.UpdatedAt = time.Now()
}

// FailExport records an export failure. Ignored after cancellation.
func (s *Session) FailExport(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.export.State, ExportFailed) {
		return
	}
	s.export = ExportInfo{State: ExportFailed, Error: msg}
	s.UpdatedAt = time.Now()
}

// CancelExport marks the export cancelled. The transition is optimistic: it
// applies immediately on the user's request without waiting for the external
// process to acknowledge.
func (s *Session) CancelExport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.export.State, ExportCancelled) {
		return
	}
	s.export = ExportInfo{State: ExportCancelled}
	s.UpdatedAt = time.Now()
}
