package server

import (
	"log/slog"
	"net/http"

	"github.com/lifestream/core/internal/metrics"
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
// It uses Go 1.22+ ServeMux with method-based routing. A nil metrics
// registry skips the /metrics endpoint and the metrics middleware,
// which callers may prefer in tests.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config, reg *metrics.Registry) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /api/v1/upload/presigned-url", h.PresignUpload)
	mux.HandleFunc("POST /api/v1/upload/confirm", h.ConfirmUpload)
	mux.HandleFunc("GET /api/v1/status/{job_id}", h.GetStatus)
	mux.HandleFunc("GET /api/v1/summary/{job_id}", h.GetSummary)
	mux.HandleFunc("POST /api/v1/query", h.Query)
	if reg != nil {
		mux.Handle("GET /metrics", reg.Handler())
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	handler := chain(mux)
	if reg != nil {
		handler = reg.Middleware(handler)
	}
	return handler
}
