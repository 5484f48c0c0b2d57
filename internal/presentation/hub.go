package presentation

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/benmeehan/rendezvous-agent/internal/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	clientBuffer = 16
	writeWait    = 10 * time.Second
)

// Hub broadcasts peer updates to connected WebSocket clients.
// A client connecting late receives the most recent update first.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu       sync.RWMutex
	clients  map[*hubClient]struct{}
	last     []byte
	closed   bool
	handlers sync.WaitGroup
}

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
	}
}

// Notify broadcasts update to every client. Slow clients drop messages.
func (h *Hub) Notify(update models.PeerUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to serialize peer update")
		return
	}

	h.mu.Lock()
	h.last = payload
	clients := make([]*hubClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn().Msg("Dropping update for slow WebSocket client")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams updates until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "hub is closed", http.StatusServiceUnavailable)
		return
	}
	h.handlers.Add(1)
	h.mu.Unlock()
	defer h.handlers.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	client, ok := h.register(conn)
	if !ok {
		return
	}
	defer h.unregister(client)

	// the read side only detects disconnects
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		case <-gone:
			return
		}
	}
}

// Close disconnects every client, refuses new ones and waits for their
// handlers to return.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		_ = c.conn.Close()
	}
	h.mu.Unlock()

	h.handlers.Wait()
	return nil
}

func (h *Hub) register(conn *websocket.Conn) (*hubClient, bool) {
	client := &hubClient{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	if h.last != nil {
		client.send <- h.last
	}
	h.clients[client] = struct{}{}
	return client, true
}

func (h *Hub) unregister(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}
