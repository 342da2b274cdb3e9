// Package api exposes the prediction engine over HTTP: pass prediction,
// current satellite location, element-set metadata, forced refresh, and
// the live tracking WebSocket.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nickng9/zenith/internal/auth"
	"github.com/nickng9/zenith/internal/config"
	"github.com/nickng9/zenith/internal/health"
	"github.com/nickng9/zenith/internal/httputil"
	"github.com/nickng9/zenith/internal/metrics"
	"github.com/nickng9/zenith/internal/predict"
	"github.com/nickng9/zenith/internal/ws"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	engine     *predict.Engine
	cfg        config.Config
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. hub may be nil when the live
// stream is disabled.
func NewServer(cfg config.Config, authCfg auth.Config, engine *predict.Engine, hub *ws.Hub, logger *slog.Logger) *Server {
	s := &Server{engine: engine, cfg: cfg, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(s.ready))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/passes", s.handlePasses)
	mux.HandleFunc("GET /api/v1/passes/all", s.handlePassesAll)
	mux.HandleFunc("GET /api/v1/location/{satellite_id}", s.handleLocation)
	mux.HandleFunc("GET /api/v1/tle/{satellite_id}", s.handleElements)
	mux.HandleFunc("POST /api/v1/tle/refresh", s.handleRefresh)
	if hub != nil {
		mux.Handle("GET /api/v1/live", hub.Handler())
	}

	// Middleware chain: metrics -> logging -> cors -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = corsMiddleware(cfg.Server.CORSAllowedOrigin)(handler)
	handler = loggingMiddleware(logger, cfg.Server.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Bind,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control
// (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// ready reports whether at least one configured satellite has elements
// loaded, so the first prediction will not stall behind a cold fetch.
func (s *Server) ready() bool {
	for _, src := range s.engine.Satellites() {
		if s.engine.ElementSet(src.SatelliteID) != nil {
			return true
		}
	}
	return false
}

// probePath returns true for probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}

func corsMiddleware(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
