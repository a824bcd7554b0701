package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/renex/internal/subscription"
)

const TypeSubscriberCount = "subscriber_count"

// Message is pushed to every open page when the subscriber count changes.
type Message struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Label string `json:"label,omitempty"`
}

// NewCountMessage builds the counter update for n subscribers.
func NewCountMessage(n int) Message {
	return Message{
		Type:  TypeSubscriberCount,
		Count: n,
		Label: subscription.CountLabel(n),
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
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

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.queue(data) {
			h.logger.Debug("dropped broadcast for slow client")
		}
	}
}

// OnSubscriberChange is a subscription.Listener broadcasting the new count.
func (h *Hub) OnSubscriberChange(_ context.Context, e subscription.Event) {
	h.Broadcast(NewCountMessage(e.Count))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
