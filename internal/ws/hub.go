package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lshigami/Margays/internal/model"
	"github.com/rs/zerolog/log"
)

// Client is one websocket connection. A candidate may hold several at once
// (reconnects, multiple tabs); each joins the attempt's room independently.
type Client struct {
	ID     string
	UserID uint
	conn   *websocket.Conn
	send   chan Envelope

	mu        sync.Mutex
	attemptID uint
	closed    bool
}

func (c *Client) joinedAttempt() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attemptID
}

func (c *Client) setAttempt(attemptID uint) {
	c.mu.Lock()
	c.attemptID = attemptID
	c.mu.Unlock()
}

// Enqueue hands a message to the connection's writer, dropping it when the
// client's queue is full rather than blocking the caller. After Close it is a
// no-op: a broadcast racing a disconnect must never hit the closed channel.
func (c *Client) Enqueue(env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- env:
	default:
		log.Warn().Str("clientID", c.ID).Str("type", env.Type).Msg("Client send queue full, message dropped")
	}
}

// Close releases the connection's writer goroutine. Only the read side calls
// it, after leaving the room; the flag keeps late broadcasts harmless.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub tracks which connections are subscribed to which attempt. It is
// push-only: it implements the services' Notifier port and knows nothing
// about inbound message handling.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uint]map[*Client]struct{})}
}

func (h *Hub) Join(attemptID uint, client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[attemptID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[attemptID] = room
	}
	room[client] = struct{}{}
	h.mu.Unlock()

	client.setAttempt(attemptID)
	log.Info().Str("clientID", client.ID).Uint("attemptID", attemptID).Msg("Client joined attempt room")
}

// Leave removes the client from its room. The attempt's countdown task keeps
// running: other subscribers, or a later reconnect, may still need it.
func (h *Hub) Leave(client *Client) {
	attemptID := client.joinedAttempt()
	if attemptID == 0 {
		return
	}
	h.mu.Lock()
	if room, ok := h.rooms[attemptID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, attemptID)
		}
	}
	h.mu.Unlock()
	client.setAttempt(0)
}

func (h *Hub) Broadcast(attemptID uint, env Envelope) {
	h.mu.RLock()
	room := h.rooms[attemptID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Enqueue(env)
	}
}

// Subscribers reports how many connections watch an attempt.
func (h *Hub) Subscribers(attemptID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[attemptID])
}

// TimerSync, ForcedSubmission and Enforcement make the hub the engine's
// Notifier.

func (h *Hub) TimerSync(attemptID uint, remainingSeconds int, serverTime time.Time) {
	h.Broadcast(attemptID, NewEnvelope(MsgTimerSync, TimerSyncData{
		AttemptID:            attemptID,
		TimeRemainingSeconds: remainingSeconds,
		ServerTime:           serverTime,
	}))
}

func (h *Hub) ForcedSubmission(attemptID uint, reason string) {
	h.Broadcast(attemptID, NewEnvelope(MsgForceSubmit, ForceSubmitData{
		AttemptID: attemptID,
		Reason:    reason,
		Timestamp: time.Now(),
	}))
}

func (h *Hub) Enforcement(attemptID uint, action, message string, counters model.ViolationCounters) {
	h.Broadcast(attemptID, NewEnvelope(MsgEnforcement, EnforcementData{
		AttemptID:  attemptID,
		Action:     action,
		Message:    message,
		Violations: counters,
	}))
}
