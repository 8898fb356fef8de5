package ipc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/teslashibe/go-fpvcar/pkg/protocol"
)

// Client talks to a control socket. Requests on one Client are serialized.
type Client struct {
	mu    sync.Mutex
	conn  net.Conn
	codec Codec
}

// Dial connects to the control socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial %s: %w", path, err)
	}
	return &Client{conn: conn, codec: FrameCodec{}}, nil
}

// Do sends a raw payload and returns the raw response.
func (c *Client) Do(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	if err := c.codec.WriteMessage(c.conn, payload); err != nil {
		return nil, fmt.Errorf("ipc: send: %w", err)
	}
	resp, err := c.codec.ReadMessage(c.conn)
	if err != nil {
		return nil, fmt.Errorf("ipc: receive: %w", err)
	}
	return resp, nil
}

// Send issues an action and decodes the response. A well-formed error
// response is returned as the Response, not as an error.
func (c *Client) Send(ctx context.Context, action string) (protocol.Response, error) {
	raw, err := c.Do(ctx, protocol.EncodeRequest(action))
	if err != nil {
		return protocol.Response{}, err
	}
	return protocol.ParseResponse(raw)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
