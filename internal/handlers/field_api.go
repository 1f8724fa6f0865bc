package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fieldsync/internal/logger"
	"fieldsync/internal/models"
	"fieldsync/internal/services"
)

// Error bodies of the field API
const (
	msgObjectNotFound    = "Object not found"
	msgUnknownRecordType = "Unknown record type"
	msgInvalidJSON       = "Invalid JSON"
	msgEmptyValue        = "Field value cannot be empty"
	msgInvalidField      = "Field not found or invalid data"
	msgInternalError     = "Internal Server Error"
)

// FieldAPIHandler reads and writes single record fields over HTTP
type FieldAPIHandler struct {
	logger   *logger.Logger
	fieldSvc services.FieldService

	requestCounter *prometheus.CounterVec
}

// NewFieldAPIHandler creates a new field API handler.
// Metrics are registered with registry, or a private registry when nil.
func NewFieldAPIHandler(
	logger *logger.Logger,
	fieldSvc services.FieldService,
	registry prometheus.Registerer,
) *FieldAPIHandler {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &FieldAPIHandler{
		logger:   logger,
		fieldSvc: fieldSvc,
		requestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fieldsync_field_requests_total",
			Help: "Total number of field API requests",
		}, []string{"method", "status"}),
	}
}

// RegisterRoutes registers the read and write routes, with and without a
// trailing slash. guard wraps every route when not nil.
func (h *FieldAPIHandler) RegisterRoutes(router *mux.Router, guard func(http.Handler) http.Handler) {
	get := http.Handler(http.HandlerFunc(h.GetField))
	set := http.Handler(http.HandlerFunc(h.SetField))
	if guard != nil {
		get = guard(get)
		set = guard(set)
	}

	for _, path := range []string{"/{collection}/{recordType}/{id}/{field}", "/{collection}/{recordType}/{id}/{field}/"} {
		router.Handle(path, get).Methods("GET")
		router.Handle(path, set).Methods("POST")
	}
}

// GetField handles GET {api}/{collection}/{recordType}/{id}/{field}
func (h *FieldAPIHandler) GetField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc, field := locatorFromRequest(r)

	ref, err := h.fieldSvc.LoadRecord(ctx, loc)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownRecordType):
			h.writeErrorResponse(w, r, http.StatusNotFound, msgUnknownRecordType, nil)
		case errors.Is(err, services.ErrRecordNotFound):
			h.writeErrorResponse(w, r, http.StatusNotFound, msgObjectNotFound, nil)
		default:
			h.writeErrorResponse(w, r, http.StatusInternalServerError, msgInternalError, err)
		}
		return
	}

	value, err := h.fieldSvc.ReadField(ctx, ref, field)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusInternalServerError, msgInternalError, err)
		return
	}

	h.writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{field: value})
}

// SetField handles POST {api}/{collection}/{recordType}/{id}/{field}/
// with a body of {field: value}
func (h *FieldAPIHandler) SetField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc, field := locatorFromRequest(r)

	// A missing record is not a client error on the write path
	ref, err := h.fieldSvc.LoadRecord(ctx, loc)
	if err != nil {
		if errors.Is(err, services.ErrUnknownRecordType) {
			h.writeErrorResponse(w, r, http.StatusNotFound, msgUnknownRecordType, nil)
			return
		}
		h.writeErrorResponse(w, r, http.StatusInternalServerError, msgInternalError, err)
		return
	}

	var payload map[string]interface{}
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil || payload == nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, msgInvalidJSON, nil)
		return
	}

	value := payload[field]
	if value == nil || value == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, msgEmptyValue, nil)
		return
	}

	current, err := h.fieldSvc.WriteField(ctx, loc, ref, field, value)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyValue):
			h.writeErrorResponse(w, r, http.StatusBadRequest, msgEmptyValue, nil)
		case errors.Is(err, services.ErrUnknownField), errors.Is(err, services.ErrInvalidValue):
			h.logger.WithRecord(loc.Collection, loc.RecordType, loc.RecordID).
				WithField("field", field).WithError(err).Debug("Rejected field write")
			h.writeErrorResponse(w, r, http.StatusBadRequest, msgInvalidField, nil)
		default:
			h.writeErrorResponse(w, r, http.StatusInternalServerError, msgInternalError, err)
		}
		return
	}

	h.writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{field: current})
}

func locatorFromRequest(r *http.Request) (models.Locator, string) {
	vars := mux.Vars(r)
	return models.Locator{
		Collection: vars["collection"],
		RecordType: vars["recordType"],
		RecordID:   vars["id"],
	}, vars["field"]
}

func (h *FieldAPIHandler) writeJSONResponse(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	h.requestCounter.WithLabelValues(r.Method, strconv.Itoa(statusCode)).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (h *FieldAPIHandler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	if err != nil {
		loc, field := locatorFromRequest(r)
		h.logger.WithRecord(loc.Collection, loc.RecordType, loc.RecordID).
			WithField("field", field).WithError(err).Error(message)
	}
	h.writeJSONResponse(w, r, statusCode, map[string]string{"error": message})
}
