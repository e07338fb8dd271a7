package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"Gavel/internal/domain/models"
	xlogger "Gavel/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	clientBuffer   = 64
	maxMessageSize = 512
)

type client struct {
	auctionID string
	conn      *websocket.Conn
	send      chan []byte
}

// Hub streams auction lifecycle events to websocket subscribers. One
// client watches one auction; slow clients are disconnected rather than
// allowed to back-pressure the engine.
type Hub struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub(logger *xlogger.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/auctions/:id", h.Serve)
}

// Serve upgrades the connection and streams events for one auction until
// the client goes away.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{
		auctionID: c.Param("id"),
		conn:      conn,
		send:      make(chan []byte, clientBuffer),
	}
	h.add(cl)
	h.logger.Info("ws subscriber connected", xlogger.String("auction_id", cl.auctionID))

	go h.writeLoop(cl)
	h.readLoop(cl)
	return nil
}

// Broadcast fans one event out to the auction's subscribers. Drops the
// frame for clients whose buffer is full.
func (h *Hub) Broadcast(ev *models.Event, frame []byte) {
	if ev.AuctionID == "" {
		return
	}
	h.mu.RLock()
	subs := h.clients[ev.AuctionID]
	for cl := range subs {
		select {
		case cl.send <- frame:
		default:
			h.logger.Warn("ws subscriber too slow, dropping frame",
				xlogger.String("auction_id", cl.auctionID))
		}
	}
	h.mu.RUnlock()
}

// Close disconnects every subscriber.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.clients {
		for cl := range subs {
			close(cl.send)
		}
	}
	h.clients = make(map[string]map[*client]struct{})
	return nil
}

func (h *Hub) add(cl *client) {
	h.mu.Lock()
	subs, ok := h.clients[cl.auctionID]
	if !ok {
		subs = make(map[*client]struct{})
		h.clients[cl.auctionID] = subs
	}
	subs[cl] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if subs, ok := h.clients[cl.auctionID]; ok {
		if _, present := subs[cl]; present {
			delete(subs, cl)
			close(cl.send)
		}
		if len(subs) == 0 {
			delete(h.clients, cl.auctionID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) writeLoop(cl *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop only consumes control frames; subscribers never send data.
func (h *Hub) readLoop(cl *client) {
	defer h.remove(cl)
	cl.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
