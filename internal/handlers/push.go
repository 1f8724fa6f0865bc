package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fieldsync/internal/config"
	"fieldsync/internal/logger"
	"fieldsync/internal/push"
)

// PushHandler streams field changes as server-sent events
type PushHandler struct {
	logger    *logger.Logger
	broker    push.Broker
	heartbeat time.Duration

	subscribers prometheus.Gauge
	delivered   prometheus.Counter
}

// NewPushHandler creates a new push handler.
// Metrics are registered with registry, or a private registry when nil.
func NewPushHandler(
	cfg *config.Config,
	logger *logger.Logger,
	broker push.Broker,
	registry prometheus.Registerer,
) *PushHandler {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	heartbeat := time.Duration(cfg.Push.HeartbeatInterval) * time.Second
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}

	return &PushHandler{
		logger:    logger,
		broker:    broker,
		heartbeat: heartbeat,
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fieldsync_push_subscribers",
			Help: "Number of open push channel streams",
		}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "fieldsync_push_events_total",
			Help: "Total number of field change events written to streams",
		}),
	}
}

// RegisterRoutes registers the stream route with and without a trailing slash
func (h *PushHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sse/{collection}/{recordType}/{id}/{field}/", h.Subscribe).Methods("GET")
	router.HandleFunc("/sse/{collection}/{recordType}/{id}/{field}", h.Subscribe).Methods("GET")
}

// Subscribe handles GET {api}/sse/{collection}/{recordType}/{id}/{field}/.
// The stream stays open until the client goes away.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc, field := locatorFromRequest(r)
	log := h.logger.WithRecord(loc.Collection, loc.RecordType, loc.RecordID).WithField("field", field)

	sub, err := h.broker.Subscribe(ctx, push.TopicFor(loc, field))
	if err != nil {
		log.WithError(err).Error("Failed to subscribe to field changes")
		http.Error(w, "Push channel unavailable", http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.WithError(err).Warn("Failed to clear write deadline")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	events := push.NewEventWriter(w, rc.Flush)
	if err := events.WriteComment("subscribed"); err != nil {
		log.WithError(err).Debug("Push stream closed before first write")
		return
	}

	h.subscribers.Inc()
	defer h.subscribers.Dec()
	log.Debug("Push stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Push stream closed by client")
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := events.WriteEvent(push.Event{ID: msg.ID, Data: msg.Value}); err != nil {
				log.WithError(err).Debug("Push stream write failed")
				return
			}
			h.delivered.Inc()
		case <-ticker.C:
			if err := events.WriteComment("keepalive"); err != nil {
				return
			}
		}
	}
}
