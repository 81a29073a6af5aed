package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /sessions", h.OpenSession)
	mux.HandleFunc("GET /sessions/{id}", h.GetSession)
	mux.HandleFunc("DELETE /sessions/{id}", h.CloseSession)

	mux.HandleFunc("GET /sessions/{id}/waveform", h.GetWaveform)
	mux.HandleFunc("PUT /sessions/{id}/detection", h.SetDetection)
	mux.HandleFunc("POST /sessions/{id}/commit", h.Commit)
	mux.HandleFunc("PUT /sessions/{id}/segments", h.UpdateSegments)
	mux.HandleFunc("POST /sessions/{id}/undo", h.Undo)

	mux.HandleFunc("POST /sessions/{id}/export", h.StartExport)
	mux.HandleFunc("DELETE /sessions/{id}/export", h.CancelExport)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
