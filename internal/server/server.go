package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fieldsync/internal/config"
	"fieldsync/internal/handlers"
	"fieldsync/internal/logger"
	"fieldsync/internal/middleware"
)

// Server represents the HTTP server
type Server struct {
	config          *config.Config
	logger          *logger.Logger
	router          *mux.Router
	httpServer      *http.Server
	registry        *prometheus.Registry
	landingHandler  *handlers.LandingHandler
	healthHandler   *handlers.HealthHandler
	fieldAPIHandler *handlers.FieldAPIHandler
	pushHandler     *handlers.PushHandler
	uiHandler       *handlers.UIHandler
	authHandler     *handlers.AuthHandler
	authMiddleware  *middleware.AuthenticationMiddleware
}

// NewServer creates a new HTTP server
func NewServer(
	config *config.Config,
	logger *logger.Logger,
	registry *prometheus.Registry,
	landingHandler *handlers.LandingHandler,
	healthHandler *handlers.HealthHandler,
	fieldAPIHandler *handlers.FieldAPIHandler,
	pushHandler *handlers.PushHandler,
	uiHandler *handlers.UIHandler,
	authHandler *handlers.AuthHandler,
	authMiddleware *middleware.AuthenticationMiddleware,
) *Server {
	router := mux.NewRouter()

	server := &Server{
		config:          config,
		logger:          logger,
		router:          router,
		registry:        registry,
		landingHandler:  landingHandler,
		healthHandler:   healthHandler,
		fieldAPIHandler: fieldAPIHandler,
		pushHandler:     pushHandler,
		uiHandler:       uiHandler,
		authHandler:     authHandler,
		authMiddleware:  authMiddleware,
	}

	server.setupRoutes()
	server.setupHTTPServer()

	return server
}

// Handler returns the fully wrapped root handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Landing page (no auth required)
	s.router.HandleFunc("/", s.landingHandler.HandleLandingPage).Methods("GET")

	// Health check endpoints (no auth required)
	s.router.HandleFunc("/health", s.healthHandler.HandleHealthCheck).Methods("GET")
	s.router.HandleFunc("/health/ready", s.healthHandler.HandleReadinessProbe).Methods("GET")
	s.router.HandleFunc("/health/live", s.healthHandler.HandleLivenessProbe).Methods("GET")

	// Metrics endpoint (no auth required for monitoring systems).
	// Compression is left to CompressionMiddleware.
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		DisableCompression: true,
	})).Methods("GET")

	api := s.router
	if prefix := s.config.API.Prefix(); prefix != "" {
		api = s.router.PathPrefix(prefix).Subrouter()
	}
	if s.config.API.RateLimit > 0 {
		api.Use(middleware.NewRateLimiter(s.config.API.RateLimit, time.Minute).Middleware)
	}

	// Push streams first, the field routes would otherwise shadow short sse paths
	s.pushHandler.RegisterRoutes(api)

	var guard func(http.Handler) http.Handler
	if s.config.Auth.Enabled {
		guard = s.authMiddleware.RequireFieldAccess
		s.authHandler.RegisterRoutes(s.router)
	}
	s.fieldAPIHandler.RegisterRoutes(api, guard)

	if s.config.UI.Enabled {
		s.uiHandler.RegisterRoutes(s.router)
	}

	s.router.Use(middleware.CompressionMiddleware)
	s.router.Use(s.loggingMiddleware)
}

// setupHTTPServer configures the HTTP server
func (s *Server) setupHTTPServer() {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   s.config.API.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      corsHandler(s.router),
		ReadTimeout:  time.Duration(s.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(s.config.Server.IdleTimeout) * time.Second,
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")

	// Start server - this will block until the server is shut down
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.WithError(err).Error("HTTP server error")
		return err
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		s.logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": duration.Milliseconds(),
			"remote_addr": r.RemoteAddr,
			"user_agent":  r.UserAgent(),
		}).Info("HTTP request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
// Streams and websocket upgrades reach the underlying writer through
// Flush, Hijack and Unwrap.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
