package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// AdminSecret guards every /api/admin route.
	AdminSecret string
	// Verifier checks session tokens on account routes. When nil only the
	// presence of the session cookie is required.
	Verifier TokenVerifier
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
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Public catalog
	mux.HandleFunc("GET /api/movies", h.ListMovies)
	mux.HandleFunc("GET /api/movies/{id}", h.GetMovie)

	// Accounts
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/verify", h.Verify)
	mux.HandleFunc("POST /api/auth/resend-code", h.ResendCode)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", h.Logout)

	session := SessionMiddleware(cfg.Verifier, logger)
	mux.Handle("GET /api/account", session(http.HandlerFunc(h.Account)))
	mux.Handle("POST /api/account/profile", session(http.HandlerFunc(h.UpdateProfile)))

	// Admin console
	admin := AdminMiddleware(cfg.AdminSecret, logger)
	mux.Handle("GET /api/admin/content", admin(http.HandlerFunc(h.ListContent)))
	mux.Handle("POST /api/admin/content", admin(http.HandlerFunc(h.CreateContent)))
	mux.Handle("GET /api/admin/content/{id}", admin(http.HandlerFunc(h.GetContent)))
	mux.Handle("PUT /api/admin/content/{id}", admin(http.HandlerFunc(h.UpdateContent)))
	mux.Handle("DELETE /api/admin/content/{id}", admin(http.HandlerFunc(h.DeleteContent)))
	mux.Handle("POST /api/admin/content/{id}/archive", admin(http.HandlerFunc(h.ArchiveContent)))
	mux.Handle("POST /api/admin/content/{id}/abandon", admin(http.HandlerFunc(h.AbandonContent)))
	mux.Handle("GET /api/admin/uploads", admin(http.HandlerFunc(h.ListUploads)))
	mux.Handle("POST /api/admin/uploads/{taskId}/retry", admin(http.HandlerFunc(h.RetryUpload)))

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		MetricsMiddleware(),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
