package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/FishWoWater/trellis-blender/internal/logging"
	"github.com/FishWoWater/trellis-blender/internal/protocol"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single request/response exchange when the context
// carries no deadline.
const DefaultTimeout = 30 * time.Second

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("client closed")

// Client is a connection to a bridge.
type Client struct {
	conn    net.Conn
	dec     *json.Decoder
	framing protocol.Mode
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Option configures a Client.
type Option func(*Client)

// WithFraming selects the wire framing; it must match the server's.
func WithFraming(mode protocol.Mode) Option {
	return func(c *Client) {
		if mode != "" {
			c.framing = mode
		}
	}
}

// WithTimeout sets the per-request timeout used when the context has no
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Dial connects to a bridge at addr (host:port).
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c := New(conn, opts...)
	logging.Debug("Connected to bridge", zap.String("addr", addr), zap.String("framing", string(c.framing)))
	return c, nil
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{
		conn:    conn,
		dec:     json.NewDecoder(conn),
		framing: protocol.ModeWhole,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RemoteAddr returns the bridge address.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Send writes one command and waits for its response. A response with
// status "error" is returned as a value, not as an error; errors are
// reserved for transport failures.
func (c *Client) Send(ctx context.Context, cmd protocol.Command) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	if c.framing == protocol.ModeNewline {
		data = append(data, '\n')
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}
	defer c.conn.SetDeadline(time.Time{})

	// Unblock the read if the context is cancelled before the deadline.
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := c.conn.Write(data); err != nil {
		return nil, c.wrap(ctx, "write", err)
	}

	var resp protocol.Response
	if err := c.dec.Decode(&resp); err != nil {
		return nil, c.wrap(ctx, "read", err)
	}
	logging.Debug("Received response",
		zap.String("type", cmd.Type),
		zap.String("status", resp.Status),
	)
	return &resp, nil
}

// Call is Send for callers that only care about a successful result.
func (c *Client) Call(ctx context.Context, commandType string, params map[string]any) (any, error) {
	resp, err := c.Send(ctx, protocol.Command{Type: commandType, Params: params})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &ResponseError{Type: commandType, Message: resp.Message}
	}
	return resp.Result, nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ResponseError is an error response from the bridge.
type ResponseError struct {
	Type    string
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}
