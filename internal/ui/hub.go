package ui

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fieldsync/internal/logger"
)

var (
	ErrPageNotFound    = errors.New("page not found")
	ErrElementNotFound = errors.New("element not found")
)

// Hub tracks served pages and relays browser events to their elements
type Hub struct {
	logger   *logger.Logger
	upgrader websocket.Upgrader
	timeout  time.Duration

	mu    sync.Mutex
	pages map[string]*Page
}

// NewHub creates a hub. Pages that never connect are dropped after timeout.
func NewHub(logger *logger.Logger, timeout time.Duration) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		timeout: timeout,
		pages:   make(map[string]*Page),
	}
}

// Register makes a page reachable over its websocket
func (h *Hub) Register(p *Page) {
	p.setLogger(h.logger)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages[p.ID] = p
}

// Page looks up a registered page
func (h *Hub) Page(id string) (*Page, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pages[id]
	return p, ok
}

// Len returns the number of registered pages
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pages)
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pages, id)
}

// ServeWS upgrades the request and relays events for the page until the
// browser goes away, then forgets the page
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, pageID string) {
	log := h.logger.WithPage(pageID)

	page, ok := h.Page(pageID)
	if !ok {
		http.Error(w, ErrPageNotFound.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade page connection")
		return
	}
	defer conn.Close()
	// the server read timeout must not end a long lived page
	conn.SetReadDeadline(time.Time{})

	if err := page.attach(conn); err != nil {
		log.WithError(err).Warn("Rejected second page connection")
		return
	}
	defer func() {
		page.detach()
		h.remove(pageID)
		log.Debug("Page disconnected")
	}()

	log.Debug("Page connected")

	ctx := r.Context()
	for {
		var msg EventMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("Page connection read failed")
			}
			return
		}

		if err := h.Dispatch(ctx, pageID, msg); err != nil {
			log.WithError(err).WithField("element", msg.Element).Warn("Dropped page event")
		}
	}
}

// Dispatch delivers one browser event to the element listeners
func (h *Hub) Dispatch(ctx context.Context, pageID string, msg EventMessage) error {
	page, ok := h.Page(pageID)
	if !ok {
		return ErrPageNotFound
	}

	el, ok := page.Element(msg.Element)
	if !ok {
		return ErrElementNotFound
	}

	el.Emit(ctx, msg.Event, msg.Args)
	return nil
}

// Prune drops pages that were rendered but never connected within the
// timeout and returns how many were dropped
func (h *Hub) Prune(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	pruned := 0
	for id, p := range h.pages {
		if !p.everConnected() && now.Sub(p.created) > h.timeout {
			delete(h.pages, id)
			pruned++
		}
	}
	return pruned
}

// Run prunes stale pages until ctx ends
func (h *Hub) Run(ctx context.Context) {
	interval := h.timeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := h.Prune(now); n > 0 {
				h.logger.WithField("pages", n).Debug("Pruned stale pages")
			}
		}
	}
}
