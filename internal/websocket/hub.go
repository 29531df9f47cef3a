// Package websocket pushes container change events to connected UI clients.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dukerupert/larder/internal/state"
)

// Message is one change notification. Type is "<entity>_<action>".
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Phase  string `json:"phase,omitempty"`
	Online *bool  `json:"online,omitempty"`
}

// EventMessage converts a container event.
func EventMessage(e state.Event) Message {
	return Message{
		Type:   e.Entity + "_" + e.Action,
		Entity: e.Entity,
		Action: e.Action,
		ID:     e.ID,
		Phase:  string(e.Phase),
	}
}

// ConnectivityMessage announces a connectivity change.
func ConnectivityMessage(online bool) Message {
	action := "offline"
	if online {
		action = "online"
	}
	return Message{Type: "connectivity_" + action, Entity: "connectivity", Action: action, Online: &online}
}

// Hub tracks the connected clients and fans messages out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
	dropped atomic.Int64
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends msg to every client without blocking; clients with a full
// buffer miss it.
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
			h.dropped.Add(1)
			h.logger.Debug("client buffer full, message dropped", "type", msg.Type)
		}
	}
}

// Publish broadcasts a container event. Optimistic events are skipped:
// clients only care about outcomes.
func (h *Hub) Publish(e state.Event) {
	if e.Phase == state.PhaseOptimistic {
		return
	}
	h.Broadcast(EventMessage(e))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were dropped for slow clients.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
