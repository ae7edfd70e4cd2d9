package hub

import (
	"sync"

	"github.com/google/uuid"
)

const defaultBuffer = 32

// Client is one live subscription. The transport owning the connection reads
// Outbound and writes every frame to the wire until Outbound is closed.
type Client struct {
	ID     string
	UserID string

	send      chan []byte
	groups    map[string]struct{}
	closeOnce sync.Once
}

// NewClient creates a subscription for userID. An empty userID is an
// anonymous subscription that only receives broadcasts.
func NewClient(userID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, buffer),
		groups: make(map[string]struct{}),
	}
}

// Outbound is closed when the hub unregisters the client.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}
