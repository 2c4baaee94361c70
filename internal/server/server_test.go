package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/FishWoWater/trellis-blender/internal/protocol"
	"github.com/FishWoWater/trellis-blender/internal/scheduler"
)

// stubDispatcher echoes command types and fails "fail". It is only touched
// from the test goroutine, which is also the loop under scheduler.Manual.
type stubDispatcher struct {
	calls []protocol.Command
}

func (d *stubDispatcher) Dispatch(_ context.Context, cmd protocol.Command) protocol.Response {
	d.calls = append(d.calls, cmd)
	if cmd.Type == "fail" {
		return protocol.Error("object not found: Ghost")
	}
	return protocol.Success(map[string]any{"echo": cmd.Type})
}

type countingObserver struct {
	opened, closed int
	reasons        []string
	recv, sent     int
}

func (o *countingObserver) ConnectionOpened() { o.opened++ }
func (o *countingObserver) ConnectionClosed(reason string) {
	o.closed++
	o.reasons = append(o.reasons, reason)
}
func (o *countingObserver) BytesReceived(n int) { o.recv += n }
func (o *countingObserver) BytesSent(n int)     { o.sent += n }

type harness struct {
	t     *testing.T
	sched *scheduler.Manual
	srv   *Server
	disp  *stubDispatcher
	obs   *countingObserver
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	cfg.Host = "127.0.0.1"
	h := &harness{
		t:     t,
		sched: scheduler.NewManual(),
		disp:  &stubDispatcher{},
		obs:   &countingObserver{},
	}
	h.srv = New(cfg, h.sched, h.disp, WithObserver(h.obs))
	if err := h.srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = h.srv.Stop() })
	return h
}

// stepUntil drives the loop until cond holds.
func (h *harness) stepUntil(what string, cond func() bool) {
	h.t.Helper()
	for i := 0; i < 500; i++ {
		h.sched.Step()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %s", what)
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	buf  []byte
}

func (h *harness) dial() *testClient {
	h.t.Helper()
	conn, err := net.Dial("tcp", h.srv.Addr().String())
	if err != nil {
		h.t.Fatalf("Dial() error = %v", err)
	}
	h.t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: h.t, conn: conn}
}

// connect dials and waits for the server to accept.
func (h *harness) connect() *testClient {
	h.t.Helper()
	c := h.dial()
	h.stepUntil("accept", func() bool { return h.srv.State() == StateConnected })
	return c
}

func (c *testClient) send(s string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(s)); err != nil {
		c.t.Fatalf("Write() error = %v", err)
	}
}

// poll reads whatever is available and returns the next complete response.
// err is non-nil once the server has closed the connection.
func (c *testClient) poll() (*protocol.Response, error) {
	if resp := c.next(); resp != nil {
		return resp, nil
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Millisecond))
	tmp := make([]byte, 4096)
	n, err := c.conn.Read(tmp)
	c.buf = append(c.buf, tmp[:n]...)
	if resp := c.next(); resp != nil {
		return resp, nil
	}
	if err != nil && !isTimeout(err) {
		return nil, err
	}
	return nil, nil
}

func (c *testClient) next() *protocol.Response {
	if len(bytes.TrimSpace(c.buf)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(c.buf))
	var resp protocol.Response
	if err := dec.Decode(&resp); err != nil {
		return nil
	}
	c.buf = c.buf[dec.InputOffset():]
	return &resp
}

func (h *harness) expectResponse(c *testClient) *protocol.Response {
	h.t.Helper()
	var resp *protocol.Response
	h.stepUntil("response", func() bool {
		r, err := c.poll()
		if err != nil {
			h.t.Fatalf("connection closed while waiting for a response: %v", err)
		}
		resp = r
		return r != nil
	})
	return resp
}

func (h *harness) expectClosed(c *testClient) {
	h.t.Helper()
	h.stepUntil("close", func() bool {
		_, err := c.poll()
		return err != nil
	})
}

func (h *harness) expectNothing(c *testClient, steps int) {
	h.t.Helper()
	for i := 0; i < steps; i++ {
		h.sched.Step()
		resp, err := c.poll()
		if err != nil {
			h.t.Fatalf("connection closed unexpectedly: %v", err)
		}
		if resp != nil {
			h.t.Fatalf("unexpected response %+v", resp)
		}
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, Config{})

	if !h.srv.Running() || h.srv.State() != StateListening {
		t.Errorf("after Start: Running() = %v, State() = %v", h.srv.Running(), h.srv.State())
	}
	if h.srv.Addr() == nil {
		t.Fatal("Addr() = nil after Start")
	}
	if h.sched.Active() != 1 {
		t.Errorf("Active() = %d, want 1", h.sched.Active())
	}
	if err := h.srv.Start(); err != nil || h.sched.Active() != 1 {
		t.Errorf("second Start() = %v, Active() = %d", err, h.sched.Active())
	}

	for i := 0; i < 2; i++ {
		if err := h.srv.Stop(); err != nil {
			t.Errorf("Stop() #%d error = %v", i+1, err)
		}
		if h.srv.Running() || h.srv.State() != StateIdle || h.srv.Addr() != nil {
			t.Errorf("after Stop() #%d: Running() = %v, State() = %v", i+1, h.srv.Running(), h.srv.State())
		}
	}
	if h.sched.Active() != 0 {
		t.Errorf("Active() = %d after Stop, want 0", h.sched.Active())
	}
}

func TestStartBindError(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer taken.Close()

	sched := scheduler.NewManual()
	port := taken.Addr().(*net.TCPAddr).Port
	srv := New(Config{Host: "127.0.0.1", Port: port}, sched, &stubDispatcher{})

	err = srv.Start()
	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("Start() error = %v, want *BindError", err)
	}
	if srv.Running() || sched.Active() != 0 {
		t.Errorf("after bind failure: Running() = %v, Active() = %d", srv.Running(), sched.Active())
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("Stop() after bind failure error = %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.connect()

	c.send(`{"type": "get_scene_info"}`)
	resp := h.expectResponse(c)
	if !resp.OK() {
		t.Fatalf("response = %+v, want success", resp)
	}
	if got := resp.Result.(map[string]any)["echo"]; got != "get_scene_info" {
		t.Errorf("result.echo = %v", got)
	}
	if len(h.disp.calls) != 1 || h.disp.calls[0].Type != "get_scene_info" {
		t.Errorf("dispatched = %+v", h.disp.calls)
	}
	if h.obs.opened != 1 || h.obs.recv == 0 || h.obs.sent == 0 {
		t.Errorf("observer = %+v", h.obs)
	}
}

func TestChunkedMessageDispatchedOnce(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.connect()

	msg := `{"type": "create_object", "params": {"type": "CUBE", "location": [0, 0, 0]}}`
	c.send(msg[:2])
	h.expectNothing(c, 10)
	if len(h.disp.calls) != 0 {
		t.Fatalf("partial message dispatched: %+v", h.disp.calls)
	}

	c.send(msg[2:])
	resp := h.expectResponse(c)
	if !resp.OK() {
		t.Errorf("response = %+v", resp)
	}
	h.expectNothing(c, 5)
	if len(h.disp.calls) != 1 {
		t.Errorf("dispatched %d commands, want 1", len(h.disp.calls))
	}
	if loc := h.disp.calls[0].Params["location"]; loc == nil {
		t.Errorf("params lost: %+v", h.disp.calls[0])
	}
}

func TestHandlerErrorKeepsConnection(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.connect()

	c.send(`{"type": "fail"}`)
	resp := h.expectResponse(c)
	if resp.Status != protocol.StatusError || resp.Message != "object not found: Ghost" {
		t.Errorf("response = %+v", resp)
	}

	c.send(`{"type": "get_scene_info"}`)
	if resp := h.expectResponse(c); !resp.OK() {
		t.Errorf("follow-up response = %+v", resp)
	}
	if h.obs.opened != 1 || h.obs.closed != 0 {
		t.Errorf("connection was recycled: %+v", h.obs)
	}
}

func TestEnvelopeErrorKeepsConnection(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.connect()

	tests := []string{`[1, 2, 3]`, `{"params": {}}`, `{"type": 7}`}
	for _, msg := range tests {
		c.send(msg)
		resp := h.expectResponse(c)
		if resp.Status != protocol.StatusError || !strings.HasPrefix(resp.Message, "Invalid command: ") {
			t.Errorf("send(%s) response = %+v", msg, resp)
		}
	}

	c.send(`{"type": "ping"}`)
	if resp := h.expectResponse(c); !resp.OK() {
		t.Errorf("follow-up response = %+v", resp)
	}
	if len(h.disp.calls) != 1 {
		t.Errorf("dispatched %d commands, want 1", len(h.disp.calls))
	}
}

func TestSingleConnection(t *testing.T) {
	h := newHarness(t, Config{})
	first := h.connect()

	second := h.dial()
	second.send(`{"type": "from_second"}`)
	h.expectNothing(second, 10)
	if h.obs.opened != 1 {
		t.Fatalf("opened = %d, want 1", h.obs.opened)
	}

	first.send(`{"type": "from_first"}`)
	if resp := h.expectResponse(first); !resp.OK() {
		t.Errorf("first response = %+v", resp)
	}

	_ = first.conn.Close()
	resp := h.expectResponse(second)
	if got := resp.Result.(map[string]any)["echo"]; got != "from_second" {
		t.Errorf("second response = %+v", resp)
	}
	if h.obs.opened != 2 || h.obs.closed != 1 || h.obs.reasons[0] != reasonClientClosed {
		t.Errorf("observer = %+v", h.obs)
	}
}

func TestClientDisconnectReturnsToListening(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.connect()
	c.send(`{"type": "incomplete"`)
	_ = c.conn.Close()

	h.stepUntil("drop", func() bool { return h.srv.State() == StateListening })
	if len(h.disp.calls) != 0 {
		t.Errorf("partial message dispatched on close: %+v", h.disp.calls)
	}

	// The next client starts with an empty buffer.
	c2 := h.connect()
	c2.send(`{"type": "fresh"}`)
	if resp := h.expectResponse(c2); !resp.OK() {
		t.Errorf("response = %+v", resp)
	}
}

func TestOversizedMessageDropsConnection(t *testing.T) {
	h := newHarness(t, Config{MaxMessageBytes: 64})
	c := h.connect()

	c.send(`{"type": "big", "params": {"blob": "` + strings.Repeat("x", 128))
	h.expectClosed(c)
	if h.srv.State() != StateListening {
		t.Errorf("State() = %v, want listening", h.srv.State())
	}
	if len(h.obs.reasons) != 1 || h.obs.reasons[0] != reasonTooLarge {
		t.Errorf("reasons = %v", h.obs.reasons)
	}
}

func TestStopClosesClient(t *testing.T) {
	h := newHarness(t, Config{})
	c := h.connect()

	if err := h.srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := c.conn.Read(make([]byte, 1)); err == nil {
		t.Error("Read() after Stop succeeded")
	}
	if h.obs.reasons[0] != reasonStopped {
		t.Errorf("reasons = %v", h.obs.reasons)
	}
	if _, err := net.DialTimeout("tcp", c.conn.RemoteAddr().String(), 100*time.Millisecond); err == nil {
		t.Error("listener still accepting after Stop")
	}
}

func TestFramingModes(t *testing.T) {
	two := `{"type": "one"}{"type": "two"}`

	t.Run("whole stalls on concatenated messages", func(t *testing.T) {
		h := newHarness(t, Config{})
		c := h.connect()
		c.send(two)
		h.expectNothing(c, 10)
		if len(h.disp.calls) != 0 {
			t.Errorf("dispatched %+v", h.disp.calls)
		}
	})

	t.Run("stream splits concatenated messages", func(t *testing.T) {
		h := newHarness(t, Config{Framing: protocol.ModeStream})
		c := h.connect()
		c.send(two)
		first := h.expectResponse(c)
		second := h.expectResponse(c)
		if first.Result.(map[string]any)["echo"] != "one" || second.Result.(map[string]any)["echo"] != "two" {
			t.Errorf("responses = %+v, %+v", first, second)
		}
	})

	t.Run("newline terminates responses", func(t *testing.T) {
		h := newHarness(t, Config{Framing: protocol.ModeNewline})
		c := h.connect()
		c.send("{\"type\": \"one\"}\n{\"type\": \"two\"}\n")
		h.expectResponse(c)
		h.expectResponse(c)
		if len(h.disp.calls) != 2 {
			t.Errorf("dispatched %d, want 2", len(h.disp.calls))
		}
	})
}

func TestReadErrorIsNotTimeout(t *testing.T) {
	if isTimeout(io.EOF) {
		t.Error("isTimeout(EOF) = true")
	}
	if !isTimeout(&net.OpError{Op: "read", Err: errTimeout{}}) {
		t.Error("isTimeout(timeout OpError) = false")
	}
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "i/o timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }
