// Package websocket pushes store change notifications to connected
// browsers so they can re-read the affected collection.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/metrics"
)

// Message tells clients that a document in Collection changed. It carries
// no document body.
type Message struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	Action     string `json:"action"`
	ID         string `json:"id,omitempty"`
}

// NewMessage builds a message whose Type is "<collection>_<action>".
func NewMessage(collection, action, id string) Message {
	return Message{
		Type:       collection + "_" + action,
		Collection: collection,
		Action:     action,
		ID:         id,
	}
}

func FromChange(c events.Change) Message {
	return NewMessage(c.Collection, c.Action, c.ID)
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
		metrics: m,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetClients(n)
}

// Unregister removes c and closes its send channel. Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetClients(n)
}

// Broadcast queues msg for every client. A client whose buffer is full
// misses it.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("client buffer full, message dropped", "type", msg.Type)
		}
	}
}

// Forward broadcasts every change published on bus until ctx is done.
func (h *Hub) Forward(ctx context.Context, bus *events.Bus) {
	changes, cancel := bus.Subscribe("")
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			h.Broadcast(FromChange(c))
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
