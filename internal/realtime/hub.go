// Package realtime pushes match and lobby events to WebSocket clients.
package realtime

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/merev/ds-match-api/internal/events"
	"github.com/merev/ds-match-api/internal/logging"
)

// Subscriber is the part of the event bus the hub needs.
type Subscriber interface {
	Subscribe(filter events.Filter) (<-chan events.Event, func())
}

// ConnTracker counts open connections.
type ConnTracker interface {
	ConnectionOpened()
	ConnectionClosed()
}

type noopTracker struct{}

func (noopTracker) ConnectionOpened() {}
func (noopTracker) ConnectionClosed() {}

type Options struct {
	// AllowedOrigins restricts browser upgrades. Empty allows any origin.
	AllowedOrigins []string
	Logger         *slog.Logger
	Tracker        ConnTracker
}

// Hub upgrades HTTP requests and streams bus events to each connection.
// Streams are read-only: anything a client sends is discarded.
type Hub struct {
	bus      Subscriber
	upgrader websocket.Upgrader
	logger   *slog.Logger
	tracker  ConnTracker

	mu    sync.Mutex
	conns map[*Connection]struct{}
}

func NewHub(bus Subscriber, opts Options) *Hub {
	h := &Hub{
		bus:     bus,
		logger:  opts.Logger,
		tracker: opts.Tracker,
		conns:   make(map[*Connection]struct{}),
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.tracker == nil {
		h.tracker = noopTracker{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Not a browser.
			return true
		}
		return slices.ContainsFunc(allowed, func(a string) bool {
			return strings.EqualFold(a, origin)
		})
	}
}

// ServeMatch streams events for the match named by the {id} route param.
func (h *Hub) ServeMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "id")
	if matchID == "" {
		http.Error(w, "missing match id", http.StatusBadRequest)
		return
	}
	h.serve(w, r, events.Filter{MatchID: matchID})
}

// ServeLobby streams lobby created/cancelled/started events.
func (h *Hub) ServeLobby(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, events.Filter{Lobby: true})
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, filter events.Filter) {
	logger := logging.FromContext(r.Context(), h.logger)

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	feed, cancel := h.bus.Subscribe(filter)
	c := newConnection(wsConn, feed, cancel, logger.With(logging.FieldMatchID, filter.MatchID, "lobby", filter.Lobby))
	c.onClose = func() { h.unregister(c) }
	h.register(c)

	logger.Debug("websocket connected", logging.FieldRemoteAddr, wsConn.RemoteAddr().String())
	go c.readPump()
	go c.writePump()
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.tracker.ConnectionOpened()
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if ok {
		h.tracker.ConnectionClosed()
	}
}

// Connections reports the number of open streams.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close drops every open stream. http.Server.Shutdown does not touch
// hijacked connections, so the server calls this on the way out.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}
