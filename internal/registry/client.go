// Package registry tracks every connected client and operator socket.
// It is transport-agnostic: the bus package supplies a Sender that
// wraps the actual websocket connection, so this package can be tested
// without opening a single socket.
package registry

import (
	"sync"
	"time"
)

// Sender abstracts the outbound half of a connection. Implementations
// must be safe for concurrent use: Client.Send is called from whichever
// goroutine is routing to the client, and several may call it at once.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Client is one connected entity: an application client or an operator
// using the same socket lifecycle. Kind distinguishes the two for
// routing and admin listings.
type Client struct {
	ID          string
	Kind        string // "client" or "operator"
	ConnectedAt time.Time

	mu       sync.RWMutex
	lastSeen time.Time
	sender   Sender
	closed   bool
}

func newClient(id, kind string, sender Sender) *Client {
	now := time.Now().UTC()
	return &Client{
		ID:          id,
		Kind:        kind,
		ConnectedAt: now,
		lastSeen:    now,
		sender:      sender,
	}
}

// Send writes a frame to the client's socket. Returns an error once the
// client has been marked closed, so callers racing a disconnect fail
// cleanly instead of writing to a dead connection.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClosed
	}
	return c.sender.Send(data)
}

// Touch records activity, resetting the staleness clock.
func (c *Client) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now().UTC()
}

func (c *Client) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
