package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/AllanBico/atlas/internal/domain"
	"github.com/AllanBico/atlas/internal/ports"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	defaultBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The live view is served to local dashboards on other ports
	CheckOrigin: func(r *http.Request) bool { return true },
}

type subscriber struct {
	send chan []byte
}

// Hub fans messages out to connected WebSocket clients.
// Delivery is at-most-once in broadcast order; a client whose buffer is full is disconnected.
type Hub struct {
	logger  ports.Logger
	bufSize int
	now     func() time.Time

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

var _ ports.EventPublisher = (*Hub)(nil)

// NewHub creates a hub. bufSize is the per-client queue length; zero means the default.
func NewHub(logger ports.Logger, bufSize int) *Hub {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	return &Hub{
		logger:  logger,
		bufSize: bufSize,
		now:     time.Now,
		subs:    make(map[*subscriber]struct{}),
	}
}

// Broadcast queues msg for every connected client.
func (h *Hub) Broadcast(msg Message) {
	data, err := Encode(msg)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to encode stream message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- data:
		default:
			h.dropLocked(s)
			h.logger.Warn(context.Background(), "Dropped slow stream consumer", map[string]interface{}{"type": msg.Type()})
		}
	}
}

// PublishLog implements ports.EventPublisher.
func (h *Hub) PublishLog(level, message string) {
	h.Broadcast(LogMessage{Timestamp: h.now().UTC(), Level: level, Message: message})
}

// PublishPortfolio implements ports.EventPublisher.
func (h *Hub) PublishPortfolio(cash, totalValue decimal.Decimal, positions map[string]domain.Position) {
	open := make(map[string]domain.Position, len(positions))
	for k, v := range positions {
		open[k] = v
	}
	h.Broadcast(PortfolioUpdate{Cash: cash, TotalValue: totalValue, OpenPositions: open})
}

// PublishExecution implements ports.EventPublisher.
func (h *Hub) PublishExecution(exec domain.Execution) {
	h.Broadcast(TradeExecuted{Execution: exec})
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		h.dropLocked(s)
	}
}

func (h *Hub) subscribe() *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	s := &subscriber{send: make(chan []byte, h.bufSize)}
	h.subs[s] = struct{}{}
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(s)
}

func (h *Hub) dropLocked(s *subscriber) {
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

// ServeHTTP upgrades the request and streams messages until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s := h.subscribe()
	if s == nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.logger.Debug(r.Context(), "Stream client connected", map[string]interface{}{"remote": r.RemoteAddr})

	go h.writePump(conn, s)
	h.readPump(conn, s)
}

// readPump only services control frames; clients never send data.
func (h *Hub) readPump(conn *websocket.Conn, s *subscriber) {
	defer func() {
		h.unsubscribe(s)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Dropped by the hub
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
