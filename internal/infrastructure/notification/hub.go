package notification

import (
	"context"
	"net/http"
	"sync"
	"time"

	appinvoicing "github.com/erp/ledger/internal/application/invoicing"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer      = 64
	broadcastBuffer = 256
)

// Message is the frame written to live feed subscribers
type Message struct {
	Type string                    `json:"type"`
	Data appinvoicing.LedgerUpdate `json:"data"`
}

type outbound struct {
	companyID uuid.UUID
	message   *Message
}

// Hub fans ledger updates out to websocket connections grouped by company.
// Run must be started before connections are accepted.
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan outbound
	done       chan struct{}

	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu sync.RWMutex
}

// Connection is one subscriber socket
type Connection struct {
	ws        *websocket.Conn
	companyID uuid.UUID
	send      chan *Message
	hub       *Hub
}

// NewHub creates a hub. allowedOrigins empty accepts any origin.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan outbound, broadcastBuffer),
		done:        make(chan struct{}),
		logger:      logger,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then closes every socket.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.RLock()
			var conns []*Connection
			for _, m := range h.connections {
				for c := range m {
					conns = append(conns, c)
				}
			}
			h.mu.RUnlock()

			for _, c := range conns {
				_ = c.ws.Close()
			}
			h.logger.Info("Live feed hub stopped", zap.Int("connections", len(conns)))
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.companyID] == nil {
				h.connections[conn.companyID] = make(map[*Connection]bool)
			}
			h.connections[conn.companyID][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			h.remove(conn)
			h.mu.Unlock()

		case out := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.connections[out.companyID] {
				select {
				case conn.send <- out.message:
				default:
					h.logger.Warn("Live feed subscriber too slow, dropping connection",
						zap.String("company_id", out.companyID.String()))
					h.remove(conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(conn *Connection) {
	conns, ok := h.connections[conn.companyID]
	if !ok {
		return
	}
	if _, exists := conns[conn]; !exists {
		return
	}
	delete(conns, conn)
	close(conn.send)
	if len(conns) == 0 {
		delete(h.connections, conn.companyID)
	}
}

// Broadcast queues update for every subscriber of companyID. It never
// blocks; updates are dropped when the hub is saturated.
func (h *Hub) Broadcast(companyID uuid.UUID, update appinvoicing.LedgerUpdate) {
	out := outbound{companyID: companyID, message: &Message{Type: "ledger_update", Data: update}}
	select {
	case h.broadcast <- out:
	default:
		h.logger.Warn("Live feed broadcast channel is full, dropping update",
			zap.String("company_id", companyID.String()),
			zap.String("invoice_id", update.InvoiceID.String()))
	}
}

// Subscribers returns the number of open connections for companyID
func (h *Hub) Subscribers(companyID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[companyID])
}

// HandleWebSocket upgrades the request and subscribes it to companyID
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, companyID uuid.UUID) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	conn := &Connection{
		ws:        ws,
		companyID: companyID,
		send:      make(chan *Message, sendBuffer),
		hub:       h,
	}

	select {
	case h.register <- conn:
	case <-h.done:
		_ = ws.Close()
		return
	}

	go conn.writePump()
	go conn.readPump()
}

func (c *Connection) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(message); err != nil {
				c.hub.logger.Debug("WebSocket write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Ensure Hub implements LiveFeed
var _ appinvoicing.LiveFeed = (*Hub)(nil)
