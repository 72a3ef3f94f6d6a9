package broadcast

import "sync"

// Client represents one connected consumer of broadcast events.
//
// Send is intentionally never closed by the broadcaster, so relaying to a
// client that is concurrently disconnecting cannot panic. Done signals the
// owner's goroutines to stop; Close is idempotent.
type Client struct {
	ID   string
	Send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with a bounded send queue.
func NewClient(id string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 64
	}
	return &Client{
		ID:   id,
		Send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Done returns a channel closed when the client is shutting down.
func (c *Client) Done() <-chan struct{} {
	if c == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return c.done
}

// Close signals the client's goroutines to stop. Idempotent, and it does
// NOT close Send — see the type comment.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
