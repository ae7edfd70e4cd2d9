// Package hub keeps the registry of live subscriptions and fans task events
// out to them.
package hub

import (
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"taskhub/internal/events"
)

// Control messages sent next to the task event kinds.
const (
	MessageConnected = "connected"
	MessageJoined    = "joined"
	MessageError     = "error"
)

const userGroupPrefix = "user:"

var ErrUnknownClient = errors.New("unknown client")

// Message is the wire envelope for every server-to-client frame.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func UserGroup(userID string) string {
	return userGroupPrefix + userID
}

// Hub is the subscription registry. Register, Unregister and Join are
// connection lifecycle operations; everything else only reads the registry.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	groups  map[string]map[string]*Client
	dropped atomic.Uint64
}

var _ events.Sink = (*Hub)(nil)

func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		groups:  make(map[string]map[string]*Client),
	}
}

// Register adds the client and, for authenticated clients, joins its user group.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	if c.UserID != "" {
		h.joinLocked(c, UserGroup(c.UserID))
	}
	log.Printf("[hub] Client %s (user %q) registered", c.ID, c.UserID)
}

// Unregister removes the client from all groups and closes its outbound channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	for group := range c.groups {
		members := h.groups[group]
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	c.groups = make(map[string]struct{})
	c.close()
	log.Printf("[hub] Client %s unregistered", c.ID)
}

// Join adds a registered client to a named group. Membership lasts for the
// lifetime of the connection.
func (h *Hub) Join(clientID, group string) error {
	group = strings.TrimSpace(group)
	if group == "" {
		return errors.New("group name is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[clientID]
	if !ok {
		return ErrUnknownClient
	}
	h.joinLocked(c, group)
	return nil
}

func (h *Hub) joinLocked(c *Client, group string) {
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]*Client)
	}
	h.groups[group][c.ID] = c
	c.groups[group] = struct{}{}
}

// Broadcast sends to every registered client and returns how many accepted it.
func (h *Hub) Broadcast(kind events.Kind, payload any) int {
	frame, ok := encode(string(kind), payload)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, c := range h.clients {
		if h.offer(c, kind, frame) {
			sent++
		}
	}
	return sent
}

// NotifyUser sends only to the user's group. Nobody connected means the
// event is dropped; the next list fetch reflects the change anyway.
func (h *Hub) NotifyUser(userID string, kind events.Kind, payload any) int {
	return h.NotifyGroup(UserGroup(userID), kind, payload)
}

func (h *Hub) NotifyGroup(group string, kind events.Kind, payload any) int {
	frame, ok := encode(string(kind), payload)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, c := range h.groups[group] {
		if h.offer(c, kind, frame) {
			sent++
		}
	}
	return sent
}

// Deliver routes a queued event to Broadcast or NotifyUser.
func (h *Hub) Deliver(e events.Event) {
	if e.Targeted() {
		h.NotifyUser(e.UserID, e.Kind, e.Payload)
		return
	}
	h.Broadcast(e.Kind, e.Payload)
}

// SendTo writes a control message to a single client.
func (h *Hub) SendTo(c *Client, event string, data any) bool {
	frame, ok := encode(event, data)
	if !ok {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, registered := h.clients[c.ID]; !registered {
		return false
	}
	return h.offer(c, events.Kind(event), frame)
}

// offer must be called with the read lock held so the channel cannot be
// closed underneath it.
func (h *Hub) offer(c *Client, kind events.Kind, frame []byte) bool {
	if c.enqueue(frame) {
		return true
	}
	h.dropped.Add(1)
	log.Printf("[hub] ⚠️  Client %s buffer full, dropped %s", c.ID, kind)
	return false
}

func encode(event string, data any) ([]byte, bool) {
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		log.Printf("[hub] ❌ Failed to marshal %s: %v", event, err)
		return nil, false
	}
	return frame, true
}

// Close unregisters every client, which ends their transports.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		c.close()
	}
	h.clients = make(map[string]*Client)
	h.groups = make(map[string]map[string]*Client)
	log.Println("[hub] Closed all clients")
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GroupCount(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
