package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FishWoWater/trellis-blender/internal/logging"
	"github.com/FishWoWater/trellis-blender/internal/protocol"
	"github.com/FishWoWater/trellis-blender/internal/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultHost         = "localhost"
	DefaultPort         = 9876
	DefaultInterval     = 100 * time.Millisecond
	DefaultPollSlice    = time.Millisecond
	DefaultWriteTimeout = 5 * time.Second

	readBufferSize = 8192
)

// Config holds the server configuration
type Config struct {
	Host string
	Port int

	// Interval between ticks on the host loop.
	Interval time.Duration

	// PollSlice is how long one accept or read may wait for data.
	PollSlice time.Duration

	Framing         protocol.Mode
	MaxMessageBytes int

	// WriteTimeout bounds sending one response.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.PollSlice <= 0 {
		c.PollSlice = DefaultPollSlice
	}
	if c.Framing == "" {
		c.Framing = protocol.ModeWhole
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = protocol.DefaultMaxMessageSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Addr returns the configured host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Dispatcher turns a command into its response. It must always return a
// response.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd protocol.Command) protocol.Response
}

// Observer receives connection-level events, typically for metrics.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed(reason string)
	BytesReceived(n int)
	BytesSent(n int)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened()       {}
func (nopObserver) ConnectionClosed(string) {}
func (nopObserver) BytesReceived(int)       {}
func (nopObserver) BytesSent(int)           {}

// State is the server lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// BindError is returned by Start when the listen address is unavailable.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Close reasons reported to the Observer and the log.
const (
	reasonClientClosed = "client_closed"
	reasonReadError    = "read_error"
	reasonWriteError   = "write_error"
	reasonTooLarge     = "message_too_large"
	reasonStopped      = "server_stopped"
)

// Server is the single-client command server.
type Server struct {
	cfg        Config
	sched      scheduler.Scheduler
	dispatcher Dispatcher
	observer   Observer
	baseCtx    context.Context

	// Owned by the host loop.
	listener *net.TCPListener
	conn     *connection
	hook     scheduler.Handle
	readBuf  []byte

	state atomic.Int32
	mu    sync.Mutex
	addr  net.Addr
}

// Option configures a Server.
type Option func(*Server)

// WithObserver sets the connection event observer.
func WithObserver(o Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithBaseContext sets the context commands are dispatched with.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) {
		s.baseCtx = ctx
	}
}

// New creates a stopped server.
func New(cfg Config, sched scheduler.Scheduler, dispatcher Dispatcher, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg.withDefaults(),
		sched:      sched,
		dispatcher: dispatcher,
		observer:   nopObserver{},
		baseCtx:    context.Background(),
		readBuf:    make([]byte, readBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// State returns the lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Running reports whether the server is listening or connected.
func (s *Server) Running() bool {
	return s.State() != StateIdle
}

// Addr returns the bound listen address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds the listen socket and registers the tick on the scheduler.
// Starting a running server is a no-op. A bind failure returns a
// *BindError and leaves the server stopped.
func (s *Server) Start() error {
	if s.Running() {
		return nil
	}

	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logging.Error("Failed to start server", zap.String("addr", addr), zap.Error(err))
		return &BindError{Addr: addr, Err: err}
	}
	s.listener = ln.(*net.TCPListener)

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.state.Store(int32(StateListening))
	s.hook = s.sched.Every(s.cfg.Interval, s.tick)

	logging.Info("Bridge server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("framing", string(s.cfg.Framing)),
		zap.Duration("interval", s.cfg.Interval),
	)
	return nil
}

// Stop unregisters the tick and closes the client and listen sockets. It
// is safe to call on a stopped server.
func (s *Server) Stop() error {
	if !s.Running() {
		return nil
	}
	logging.Info("Stopping bridge server")

	if s.hook != nil {
		s.hook.Cancel()
		s.hook = nil
	}
	if s.conn != nil {
		s.drop(reasonStopped)
	}

	var err error
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil {
			logging.Error("Error closing listener", zap.Error(cerr))
			err = fmt.Errorf("failed to close listener: %w", cerr)
		}
		s.listener = nil
	}

	s.mu.Lock()
	s.addr = nil
	s.mu.Unlock()
	s.state.Store(int32(StateIdle))

	logging.Sync()
	return err
}

// tick performs one unit of socket work.
func (s *Server) tick() {
	if !s.Running() {
		return
	}
	if s.conn == nil {
		s.acceptOne()
		return
	}
	s.service(s.conn)
}

func (s *Server) acceptOne() {
	if err := s.listener.SetDeadline(time.Now().Add(s.cfg.PollSlice)); err != nil {
		logging.Warn("Failed to set accept deadline", zap.Error(err))
		return
	}
	c, err := s.listener.AcceptTCP()
	if err != nil {
		if !isTimeout(err) {
			logging.Warn("Accept failed", zap.Error(err))
		}
		return
	}
	_ = c.SetNoDelay(true)

	s.conn = newConnection(c, s.cfg.Framing, s.cfg.MaxMessageBytes)
	s.state.Store(int32(StateConnected))
	s.observer.ConnectionOpened()
	logging.LogConnection(s.conn.remote, "connection_accepted", zap.String("conn_id", s.conn.id))
}

// service performs one read on the active connection and answers every
// command it completes.
func (s *Server) service(c *connection) {
	if err := c.conn.SetReadDeadline(time.Now().Add(s.cfg.PollSlice)); err != nil {
		s.drop(reasonReadError, zap.Error(err))
		return
	}
	n, err := c.conn.Read(s.readBuf)
	if n > 0 {
		s.observer.BytesReceived(n)
		logging.LogRawBytes("recv "+c.remote, s.readBuf[:n])
		if werr := c.framer.Write(s.readBuf[:n]); werr != nil {
			s.drop(reasonTooLarge, zap.Error(werr))
			return
		}
		if !s.drain(c) {
			return
		}
	}

	switch {
	case err == nil || isTimeout(err):
	case errors.Is(err, io.EOF):
		s.drop(reasonClientClosed)
	default:
		s.drop(reasonReadError, zap.Error(err))
	}
}

// drain dispatches every complete command in the receive buffer. It
// returns false if the connection was dropped.
func (s *Server) drain(c *connection) bool {
	for s.conn == c {
		cmd, err := c.framer.Next()
		var resp protocol.Response
		switch {
		case err != nil:
			logging.Warn("Rejected message",
				zap.String("conn_id", c.id),
				zap.Error(err),
			)
			resp = protocol.Error(err.Error())
		case cmd == nil:
			return true
		default:
			resp = s.dispatcher.Dispatch(s.baseCtx, *cmd)
		}

		// A handler may have stopped the server.
		if s.conn != c {
			return false
		}
		if err := s.send(c, resp); err != nil {
			s.drop(reasonWriteError, zap.Error(err))
			return false
		}
	}
	return false
}

func (s *Server) send(c *connection, resp protocol.Response) error {
	data, err := c.framer.Encode(resp)
	if err != nil {
		// Results that cannot be serialised still owe the client a reply.
		logging.Error("Failed to encode response", zap.String("conn_id", c.id), zap.Error(err))
		if data, err = c.framer.Encode(protocol.Error(err.Error())); err != nil {
			return err
		}
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	n, err := c.conn.Write(data)
	s.observer.BytesSent(n)
	return err
}

// drop closes the active connection and returns to listening.
func (s *Server) drop(reason string, fields ...zap.Field) {
	c := s.conn
	if c == nil {
		return
	}
	s.conn = nil
	_ = c.conn.Close()
	if s.listener != nil {
		s.state.Store(int32(StateListening))
	}
	s.observer.ConnectionClosed(reason)

	fields = append(fields,
		zap.String("conn_id", c.id),
		zap.String("reason", reason),
		zap.Int("discarded_bytes", c.framer.Buffered()),
	)
	logging.LogConnection(c.remote, "connection_closed", fields...)
}

type connection struct {
	id     string
	conn   *net.TCPConn
	remote string
	framer *protocol.Framer
}

func newConnection(c *net.TCPConn, mode protocol.Mode, maxSize int) *connection {
	return &connection{
		id:     uuid.NewString(),
		conn:   c,
		remote: c.RemoteAddr().String(),
		framer: protocol.NewFramer(mode, maxSize),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
