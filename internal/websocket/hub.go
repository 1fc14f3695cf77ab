package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/labbo/internal/notify"
)

// Message types
const (
	TypeToast = "toast"
)

// Message is one event pushed to browsers.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity,omitempty"`
	Action string         `json:"action,omitempty"`
	ID     string         `json:"id,omitempty"`
	Toast  *ToastPayload  `json:"toast,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// ToastPayload is the wire form of a notify.Toast.
type ToastPayload struct {
	Variant     string `json:"variant"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DurationMS  int64  `json:"duration_ms"`
	ActionLabel string `json:"action_label,omitempty"`
	ActionURL   string `json:"action_url,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	onCmd   func(userID string, cmd Command)
	logger  *slog.Logger
}

// NewHub creates a new Hub.
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

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	h.send(msg, func(*Client) bool { return true })
}

// SendToUser sends a message to every connection of one user.
func (h *Hub) SendToUser(userID string, msg Message) {
	h.send(msg, func(c *Client) bool { return c.userID == userID })
}

func (h *Hub) send(msg Message, match func(*Client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// buffer full, drop
		}
	}
}

// Show implements notify.Surface by broadcasting the toast.
func (h *Hub) Show(t notify.Type, toast notify.Toast) {
	p := &ToastPayload{
		Variant:     string(t),
		Title:       toast.Title,
		Description: toast.Description,
		DurationMS:  toast.Duration.Milliseconds(),
	}
	if toast.Action != nil {
		p.ActionLabel = toast.Action.Label
		p.ActionURL = toast.Action.URL
	}
	h.Broadcast(Message{Type: TypeToast, ID: toast.ID, Toast: p})
}

// OnCommand sets the receiver for commands browsers send. Commands that
// arrive before it is set are dropped.
func (h *Hub) OnCommand(fn func(userID string, cmd Command)) {
	h.mu.Lock()
	h.onCmd = fn
	h.mu.Unlock()
}

func (h *Hub) dispatch(userID string, cmd Command) {
	h.mu.RLock()
	fn := h.onCmd
	h.mu.RUnlock()
	if fn == nil {
		h.logger.Debug("websocket command ignored", "type", cmd.Type, "user_id", userID)
		return
	}
	fn(userID, cmd)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
