package webhook

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bourkey/revalidate-webhook/pkg/auth"
	"github.com/bourkey/revalidate-webhook/pkg/config"
	"github.com/bourkey/revalidate-webhook/pkg/dispatch"
	"github.com/bourkey/revalidate-webhook/pkg/logging"
	"github.com/bourkey/revalidate-webhook/pkg/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HeaderRequestID carries the request id in both directions
const HeaderRequestID = "X-Request-ID"

// AliasPath is always routed in addition to the configured path
const AliasPath = "/api/revalidate"

type contextKey string

const requestIDKey contextKey = "request_id"

// Server represents the HTTP webhook server
type Server struct {
	config        *config.Config
	router        *mux.Router
	httpServer    *http.Server
	logger        *logrus.Logger
	authenticator auth.Authenticator
	dispatcher    *dispatch.Dispatcher
	ready         atomic.Bool
	now           func() time.Time
}

// NewServer creates a new webhook server instance
func NewServer(cfg *config.Config, authenticator auth.Authenticator, dispatcher *dispatch.Dispatcher, logger *logrus.Logger) *Server {
	s := &Server{
		config:        cfg,
		router:        mux.NewRouter(),
		logger:        logger,
		authenticator: authenticator,
		dispatcher:    dispatcher,
		now:           time.Now,
	}

	// Setup routes
	s.setupRoutes()

	// Durations were validated when the config was loaded
	readTimeout, _ := cfg.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := cfg.ParseDuration(cfg.Server.WriteTimeout)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        s.router,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s
}

// setupRoutes configures HTTP routes and middleware
func (s *Server) setupRoutes() {
	// Apply global middleware
	// Logging wraps recovery so a recovered panic is still logged and counted
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.requestSizeLimitMiddleware)

	// Revalidation endpoint
	for _, path := range s.webhookPaths() {
		s.router.HandleFunc(path, s.handleRevalidate).Methods(http.MethodPost)
		s.router.HandleFunc(path, s.handleProbe).Methods(http.MethodGet)
	}

	// Health endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Readiness endpoint
	s.router.HandleFunc("/ready", s.handleReadiness).Methods(http.MethodGet)

	// Prometheus metrics
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) webhookPaths() []string {
	if s.config.Server.Path == AliasPath {
		return []string{AliasPath}
	}
	return []string{s.config.Server.Path, AliasPath}
}

// Handler returns the routed handler, for use without a listener
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port":      s.config.Server.Port,
		"paths":     s.webhookPaths(),
		"auth_mode": s.authenticator.Mode(),
		"strict":    s.dispatcher.Strict(),
	}).Info("Starting HTTP server")

	s.ready.Store(true)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	s.ready.Store(false)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// SetReady sets the readiness status
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// handleHealth returns the health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReadiness returns the readiness status
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// requestIDMiddleware assigns every request an id, reusing the caller's
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoveryMiddleware turns a panic into a generic 500
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.LogError(s.logger, fmt.Errorf("panic: %v", rec), "request_handler", map[string]interface{}{
					"request_id": requestIDFrom(r.Context()),
					"path":       r.URL.Path,
				})
				writeJSON(w, http.StatusInternalServerError, errorResponse{
					Message: msgErrorRevalidating,
					Error:   "internal error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs all HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		// The query string is omitted: it may carry the shared secret
		logging.LogWithRequestID(s.logger, requestIDFrom(r.Context())).WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"status_code": rw.statusCode,
			"duration_ms": duration.Milliseconds(),
		}).Info("HTTP request")

		if r.URL.Path != "/metrics" {
			metrics.RecordWebhookRequest(r.Method, rw.statusCode)
		}
	})
}

// requestSizeLimitMiddleware enforces maximum request size
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
