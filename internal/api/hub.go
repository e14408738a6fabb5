package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bdt-io/bdt/internal/metrics"
	"github.com/bdt-io/bdt/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 32
)

// Event is a frame pushed to ticket subscribers.
type Event struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"data"`
}

type wsClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	ticketID int64
}

// Hub fans new ticket messages out to websocket subscribers, one room per
// ticket.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu     sync.RWMutex
	rooms  map[int64]map[*wsClient]struct{}
	closed bool
}

// NewHub creates a hub. origins lists the browser origins allowed to
// connect; "*" allows any, and an empty list only allows same-host pages
// and clients that send no Origin header.
func NewHub(origins []string, m *metrics.Metrics, log zerolog.Logger) *Hub {
	h := &Hub{
		metrics: m,
		log:     log.With().Str("component", "websocket").Logger(),
		rooms:   make(map[int64]map[*wsClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(origins) > 0 {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[strings.TrimRight(o, "/")] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		}
	}
	return h
}

// Publish sends msg to every subscriber of ticketID. Subscribers that do
// not keep up are dropped.
func (h *Hub) Publish(ticketID int64, msg *models.Message) {
	payload, err := json.Marshal(Event{Type: "message", Message: msg})
	if err != nil {
		h.log.Error().Err(err).Int64("ticket_id", ticketID).Msg("failed to encode message event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[ticketID] {
		select {
		case client.send <- payload:
		default:
			h.removeLocked(client)
		}
	}
}

// Serve upgrades the request and subscribes the connection to ticketID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, ticketID int64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer), ticketID: ticketID}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	room, found := h.rooms[ticketID]
	if !found {
		room = make(map[*wsClient]struct{})
		h.rooms[ticketID] = room
	}
	room[client] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WebsocketClients.Inc()
	}
	h.log.Debug().Int64("ticket_id", ticketID).Msg("subscriber connected")

	go client.writePump()
	go client.readPump()
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, room := range h.rooms {
		for client := range room {
			h.removeLocked(client)
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes the client's send channel once. Callers hold h.mu.
func (h *Hub) removeLocked(c *wsClient) {
	room := h.rooms[c.ticketID]
	if _, found := room[c]; !found {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.ticketID)
	}
	close(c.send)
	if h.metrics != nil {
		h.metrics.WebsocketClients.Dec()
	}
}

// readPump only serves control frames; subscribers never send messages.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug().Err(err).Int64("ticket_id", c.ticketID).Msg("websocket read error")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, open := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
