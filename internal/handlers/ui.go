package handlers

import (
	"bytes"
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"fieldsync/internal/binder"
	"fieldsync/internal/config"
	"fieldsync/internal/logger"
	"fieldsync/internal/ui"
)

// UIHandler serves the configured pages of bound elements and their
// websocket event channel
type UIHandler struct {
	logger *logger.Logger
	binder *binder.Binder
	hub    *ui.Hub
	pages  []config.PageConfig
}

// NewUIHandler creates a new UI handler
func NewUIHandler(
	cfg *config.Config,
	logger *logger.Logger,
	binder *binder.Binder,
	hub *ui.Hub,
) *UIHandler {
	return &UIHandler{
		logger: logger,
		binder: binder,
		hub:    hub,
		pages:  cfg.UI.Pages,
	}
}

// RegisterRoutes registers one route per configured page plus the websocket route
func (h *UIHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ui/ws/{pageID}", h.ServeWS).Methods("GET")
	for _, page := range h.pages {
		router.Handle(page.Path, h.pageHandler(page)).Methods("GET")
	}
}

// ServeWS handles GET /ui/ws/{pageID}
func (h *UIHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, mux.Vars(r)["pageID"])
}

func (h *UIHandler) pageHandler(pageCfg config.PageConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := h.BuildPage(r.Context(), pageCfg)

		var buf bytes.Buffer
		if err := page.Render(&buf); err != nil {
			h.logger.WithPage(page.ID).WithError(err).Error("Failed to render page")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		h.hub.Register(page)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	})
}

// BuildPage creates a fresh page and binds every configured element on it.
// A failed binding is logged and leaves its element unbound.
func (h *UIHandler) BuildPage(ctx context.Context, pageCfg config.PageConfig) *ui.Page {
	page := ui.NewPage(pageCfg.Title)
	log := h.logger.WithPage(page.ID)

	for _, b := range pageCfg.Bindings {
		el := page.Add(ui.ParseKind(b.Element), b.Label)

		binding, err := h.binder.Bind(ctx, el, b.Collection, b.RecordType, binder.Options{
			RecordID:        b.RecordID,
			Fields:          b.Fields,
			ElementID:       b.ElementID,
			DisplayProperty: b.DisplayProperty,
			DynamicQuery:    b.DynamicQuery,
			Token:           b.Token,
		})
		if err != nil {
			log.WithFields(logrus.Fields{
				"element":     el.ID(),
				"collection":  b.Collection,
				"record_type": b.RecordType,
			}).WithError(err).Error("Failed to bind element")
			continue
		}
		if binding == nil {
			log.WithField("element", el.ID()).Debug("Nothing to bind")
		}
	}

	return page
}
