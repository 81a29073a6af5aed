package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/ripplecut/ripplecut/internal/detect"
	"github.com/ripplecut/ripplecut/internal/segment"
	"github.com/ripplecut/ripplecut/internal/session"
	"github.com/ripplecut/ripplecut/internal/waveform"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *session.Service
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *session.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// OpenSession handles POST /sessions requests.
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	sess, err := h.service.Open(r.Context(), req.MediaPath)
	if err != nil {
		h.logger.Error("failed to open session",
			slog.String("media_path", req.MediaPath),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusUnprocessableEntity, "failed to open media", "OPEN_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

// GetSession handles GET /sessions/{id} requests.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// GetWaveform handles GET /sessions/{id}/waveform requests. The scrollLeft,
// viewportWidth and zoom query parameters select the visible pixel window.
// Clients polling a growing buffer pass prevEndPx (the EndPx of the last
// response) to learn whether the viewport should keep following the tail.
func (h *Handlers) GetWaveform(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}

	scrollLeft := queryFloat(r, "scrollLeft", 0)
	viewportWidth := queryFloat(r, "viewportWidth", 0)
	zoom := queryFloat(r, "zoom", 0)
	prevEndPx := queryFloat(r, "prevEndPx", math.NaN())

	buffer := sess.Waveform.Buffer()
	window := buffer.VisibleWindow(scrollLeft, viewportWidth, zoom)

	writeJSON(w, http.StatusOK, WaveformWindowResponse{
		Peaks:           window.Peaks,
		FirstIndex:      window.FirstIndex,
		SamplesPerPixel: window.SamplesPerPixel,
		EndPx:           bufferEndPx(buffer, zoom),
		FollowTail:      waveform.ShouldFollowTail(scrollLeft, viewportWidth, prevEndPx),
		Status:          waveformStatus(buffer),
	})
}

// bufferEndPx converts the buffer's current length into a pixel position at
// the requested zoom, for the client to echo back as prevEndPx on its next
// poll.
func bufferEndPx(buffer *waveform.Buffer, zoom float64) float64 {
	rate := buffer.SampleRate()
	if rate <= 0 || zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return 0
	}
	return float64(buffer.Len()) / rate * zoom
}

// SetDetection handles PUT /sessions/{id}/detection requests.
func (h *Handlers) SetDetection(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}

	var req SetDetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	params := detect.Params{
		ThresholdDb:        req.ThresholdDb,
		MinSilenceDuration: req.MinSilenceDuration,
		Padding:            req.Padding,
	}
	if err := h.service.SetDetection(r.Context(), sess.ID, params); err != nil {
		h.logger.Error("failed to schedule detection",
			slog.String("session_id", sess.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to schedule detection", "DETECTION_FAILED")
		return
	}
	writeJSON(w, http.StatusAccepted, sessionResponse(sess))
}

// Commit handles POST /sessions/{id}/commit requests.
func (h *Handlers) Commit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}

	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	if err := h.service.Commit(r.Context(), sess.ID, req.Sensitivity); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to commit", "COMMIT_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// UpdateSegments handles PUT /sessions/{id}/segments requests.
func (h *Handlers) UpdateSegments(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}

	var req UpdateSegmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	segs := make([]segment.Confirmed, 0, len(req.Segments))
	for _, dto := range req.Segments {
		if dto.ID != "" {
			segs = append(segs, segment.Confirmed{
				ID:       dto.ID,
				Interval: segment.Interval{Start: dto.Start, End: dto.End},
			})
			continue
		}
		segs = append(segs, segment.NewConfirmed(dto.Start, dto.End))
	}

	if err := h.service.UpdateSegments(r.Context(), sess.ID, segs, req.Ephemeral); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update segments", "UPDATE_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// Undo handles POST /sessions/{id}/undo requests. An empty history is a
// reported no-op, not an error.
func (h *Handlers) Undo(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}

	undone, err := h.service.Undo(r.Context(), sess.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to undo", "UNDO_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, UndoResponse{Undone: undone})
}

// StartExport handles POST /sessions/{id}/export requests.
func (h *Handlers) StartExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}

	var req StartExportRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
			return
		}
	}

	if err := h.service.StartExport(r.Context(), sess.ID, req.Publish); err != nil {
		if errors.Is(err, session.ErrExportActive) {
			writeError(w, http.StatusConflict, "export already running", "EXPORT_ACTIVE")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start export", "EXPORT_FAILED")
		return
	}
	writeJSON(w, http.StatusAccepted, sessionResponse(sess))
}

// CancelExport handles DELETE /sessions/{id}/export requests. The cancel is
// optimistic: the session leaves the running state immediately.
func (h *Handlers) CancelExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelExport(r.Context(), sess.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel export", "CANCEL_FAILED")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// CloseSession handles DELETE /sessions/{id} requests.
func (h *Handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.findSession(w, r)
	if !ok {
		return
	}

	if err := h.service.Close(r.Context(), sess.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to close session", "CLOSE_FAILED")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// findSession resolves the {id} path value into a session, writing the error
// response itself when the lookup fails.
func (h *Handlers) findSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session ID is required", "MISSING_SESSION_ID")
		return nil, false
	}

	sess, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get session",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get session", "SESSION_FETCH_FAILED")
		return nil, false
	}
	return sess, true
}

// sessionResponse builds the full snapshot DTO for a session.
func sessionResponse(sess *session.Session) SessionResponse {
	model := sess.Timeline
	stats := model.Stats()
	exp := sess.Export()

	confirmed := make([]SegmentDTO, 0, len(model.Confirmed()))
	for _, s := range model.Confirmed() {
		confirmed = append(confirmed, SegmentDTO{ID: s.ID, Start: s.Start, End: s.End})
	}
	pending := make([]SegmentDTO, 0, len(model.Pending()))
	for _, s := range model.Pending() {
		pending = append(pending, SegmentDTO{ID: s.ID, Start: s.Start, End: s.End, AverageLevel: s.AverageLevel})
	}
	clips := make([]ClipDTO, 0, len(model.SpeechClips()))
	for _, c := range model.SpeechClips() {
		clips = append(clips, ClipDTO{Start: c.Start, End: c.End, Duration: c.Duration, VirtualStart: c.VirtualStart})
	}

	return SessionResponse{
		ID:          sess.ID,
		MediaPath:   sess.MediaPath,
		Duration:    sess.Info.Duration,
		HasVideo:    sess.Info.HasVideo,
		HasAudio:    sess.Info.HasAudio,
		Mode:        string(model.Mode()),
		Stats: StatsDTO{
			OriginalDuration: stats.OriginalDuration,
			CurrentBase:      stats.CurrentBase,
			Remaining:        stats.Remaining,
			TotalCutDuration: stats.TotalCutDuration,
			CutCount:         stats.CutCount,
		},
		Confirmed:   confirmed,
		Pending:     pending,
		Clips:       clips,
		HistoryLen:  model.HistoryLen(),
		Sensitivity: model.Sensitivity(),
		DetectError: sess.DetectError(),
		Waveform:    waveformStatus(sess.Waveform.Buffer()),
		Export: ExportStatusDTO{
			State:      string(exp.State),
			Progress:   exp.Progress,
			OutputPath: exp.OutputPath,
			URL:        exp.URL,
			Error:      exp.Error,
		},
	}
}

// waveformStatus builds the streaming-state DTO from a peak buffer.
func waveformStatus(b *waveform.Buffer) WaveformStatusDTO {
	return WaveformStatusDTO{
		Progress:   b.Progress(),
		Finalized:  b.Finalized(),
		SampleRate: b.SampleRate(),
		TotalPeaks: b.Len(),
		CacheID:    b.CacheID(),
	}
}

// queryFloat parses a float query parameter with a finite-number guard; a
// missing or non-finite value falls back to the default.
func queryFloat(r *http.Request, name string, fallback float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
