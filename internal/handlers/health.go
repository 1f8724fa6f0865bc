package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"fieldsync/internal/logger"
)

// HealthCheckFunc reports whether one component is usable
type HealthCheckFunc func(ctx context.Context) error

// ComponentHealth is the outcome of one component check
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                      `json:"status"`
	Timestamp  time.Time                   `json:"timestamp"`
	Components map[string]*ComponentHealth `json:"components"`
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	logger  *logger.Logger
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]HealthCheckFunc
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		timeout: 5 * time.Second,
		checks:  make(map[string]HealthCheckFunc),
	}
}

// RegisterHealthCheck adds or replaces the check of a component
func (h *HealthHandler) RegisterHealthCheck(component string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[component] = check
}

// Check runs every registered check and reports whether all passed
func (h *HealthHandler) Check(ctx context.Context) (map[string]*ComponentHealth, bool) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	healthy := true
	components := make(map[string]*ComponentHealth, len(names))
	for _, name := range names {
		h.mu.RLock()
		check := h.checks[name]
		h.mu.RUnlock()

		start := time.Now()
		err := check(ctx)
		result := &ComponentHealth{Status: "healthy", Latency: time.Since(start).String()}
		if err != nil {
			healthy = false
			result.Status = "unhealthy"
			result.Message = err.Error()
			h.logger.WithError(err).WithField("component", name).Warn("Health check failed")
		}
		components[name] = result
	}

	return components, healthy
}

// HandleHealthCheck handles the main health check endpoint
func (h *HealthHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	components, healthy := h.Check(r.Context())

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now(),
		Components: components,
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		response.Status = "unhealthy"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}

// HandleLivenessProbe returns 200 while the process is serving
func (h *HealthHandler) HandleLivenessProbe(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleReadinessProbe returns 200 only when every component is healthy
func (h *HealthHandler) HandleReadinessProbe(w http.ResponseWriter, r *http.Request) {
	if _, healthy := h.Check(r.Context()); !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Service Unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
