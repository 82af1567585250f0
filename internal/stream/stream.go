// Package stream fans delivered notifications out to websocket
// subscribers on /events, a read-only ops surface for watching what
// the bot relays.
package stream

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"devrelay/internal/logger"
)

type Hub struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*websocket.Conn)}
}

func (h *Hub) Register(app *fiber.App) {
	app.Get("/events", websocket.New(h.serve))
}

// serve parks a subscriber until it disconnects. Subscribers only
// listen; anything they send is discarded.
func (h *Hub) serve(c *websocket.Conn) {
	id := uuid.New().String()
	h.add(id, c)
	logger.Log.Debug("event stream subscriber connected", zap.String("subscriber", id))
	defer func() {
		h.remove(id)
		_ = c.Close()
		logger.Log.Debug("event stream subscriber disconnected", zap.String("subscriber", id))
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends v as JSON to every subscriber. Write failures drop
// the subscriber; its read loop will notice the closed connection.
func (h *Hub) Broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Log.Error("failed to marshal stream event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			logger.Log.Warn("event stream write failed, dropping subscriber",
				zap.String("subscriber", id), zap.Error(err))
			delete(h.conns, id)
			_ = conn.Close()
		}
	}
}

func (h *Hub) add(id string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}
