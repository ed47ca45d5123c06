// Package sync carries the WebSocket command surface and pushes full state
// snapshots to subscribed clients after every committed mutation.
package sync

import (
	"encoding/json"
	"log/slog"
	gosync "sync"

	"github.com/calebmorris/choreboard/internal/model"
)

// Hub maintains the set of connected clients and fans snapshots out to the
// subscribed ones.
type Hub struct {
	mu      gosync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// BroadcastSnapshot pushes a snapshot to every subscribed client. Each
// client's send channel preserves commit order; a client whose buffer is
// full skips this push and catches up on the next one, since every push
// carries the complete state.
func (h *Hub) BroadcastSnapshot(snap *model.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("marshal snapshot", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		subID := c.subscriptionID.Load()
		if subID == 0 {
			continue
		}
		msg, err := json.Marshal(eventEnvelope{
			ID:   subID,
			Type: "event",
			Event: eventBody{
				Data: json.RawMessage(data),
			},
		})
		if err != nil {
			h.logger.Error("marshal event", "error", err)
			continue
		}
		select {
		case c.send <- msg:
		default:
			// Buffer full; the next snapshot supersedes this one anyway.
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
