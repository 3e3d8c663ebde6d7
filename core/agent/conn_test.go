package agent

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwetu-lab/elimu/core"
)

func testLogger() core.Logger {
	return core.NewStdLogger(log.New(io.Discard, "", 0))
}

func testConf(short, long time.Duration) *core.Config {
	conf := new(core.Config)
	conf.Agent.ReconnectShort = short
	conf.Agent.ReconnectLong = long
	return conf
}

// fakeConn is an in-memory Conn; inbound frames are pushed on in, written
// frames collected on out.
type fakeConn struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, errors.New("fake conn closed")
	case data := <-c.in:
		return data, nil
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("fake conn closed")
	case c.out <- data:
		return nil
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// nextWrite returns the next frame written on the connection, decoded.
func (c *fakeConn) nextWrite(t *testing.T) Message {
	t.Helper()
	select {
	case data := <-c.out:
		msg, err := Decode(data)
		require.NoError(t, err)
		return msg
	case <-time.After(time.Second):
		t.Fatal("no frame written")
		return nil
	}
}

// fakeTransport hands out fakeConns, optionally failing the first failures
// dials. Each dial is signalled on dialed.
type fakeTransport struct {
	mu       sync.Mutex
	failures int
	dials    int
	conns    []*fakeConn
	dialed   chan *fakeConn
}

func newFakeTransport(failures int) *fakeTransport {
	return &fakeTransport{failures: failures, dialed: make(chan *fakeConn, 16)}
}

func (tr *fakeTransport) Dial(_ context.Context) (Conn, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.dials++
	if tr.dials <= tr.failures {
		tr.dialed <- nil
		return nil, errors.New("fake dial refused")
	}
	conn := newFakeConn()
	tr.conns = append(tr.conns, conn)
	tr.dialed <- conn
	return conn, nil
}

func (tr *fakeTransport) dialCount() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.dials
}

// waitDial blocks until the next dial attempt; returns nil for a refused one.
func (tr *fakeTransport) waitDial(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-tr.dialed:
		return conn
	case <-time.After(time.Second):
		t.Fatal("no dial attempt")
		return nil
	}
}

var testInitCtx = InitContext{SessionID: "s1", UserID: "u1", TrainingID: "t1"}

func TestManager_InitSentOncePerConnection(t *testing.T) {
	tr := newFakeTransport(0)
	m := NewManager(tr, testConf(time.Minute, time.Minute), testLogger())
	defer m.Close()

	require.NoError(t, m.EnsureConnected(context.Background(), testInitCtx))
	conn := tr.waitDial(t)
	assert.Equal(t, StateOpen, m.State())

	// first frame on a new connection is the init
	msg := requireInit(t, conn)
	assert.Equal(t, testInitCtx, msg.Context)

	// a second EnsureConnected on a live channel neither redials nor re-inits
	require.NoError(t, m.EnsureConnected(context.Background(), testInitCtx))
	assert.Equal(t, 1, tr.dialCount())
	select {
	case data := <-conn.out:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func requireInit(t *testing.T, conn *fakeConn) InitMessage {
	t.Helper()
	msg, ok := conn.nextWrite(t).(InitMessage)
	require.True(t, ok, "first frame must be init")
	return msg
}

func TestManager_SendRequiresOpenChannel(t *testing.T) {
	tr := newFakeTransport(0)
	m := NewManager(tr, testConf(time.Minute, time.Minute), testLogger())
	defer m.Close()

	// nothing connected yet: best-effort send reports failure
	assert.False(t, m.Send(UserMessage{Content: "hi"}))

	require.NoError(t, m.EnsureConnected(context.Background(), testInitCtx))
	conn := tr.waitDial(t)
	_ = requireInit(t, conn)

	assert.True(t, m.Send(UserMessage{Content: "hi"}))
	msg, ok := conn.nextWrite(t).(UserMessage)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Content)
}

func TestManager_FanOutAndBadPayloads(t *testing.T) {
	tr := newFakeTransport(0)
	m := NewManager(tr, testConf(time.Minute, time.Minute), testLogger())
	defer m.Close()

	got := make(chan Message, 16)
	m.Subscribe(func(Message) { panic("bad subscriber") })
	m.Subscribe(func(msg Message) { got <- msg })

	require.NoError(t, m.EnsureConnected(context.Background(), testInitCtx))
	conn := tr.waitDial(t)

	// a malformed payload is dropped without breaking the loop, and one
	// panicking subscriber never starves the others
	conn.in <- []byte("garbage")
	conn.in <- []byte(`{"type":"ai_response","content":"hi"}`)

	select {
	case msg := <-got:
		assert.Equal(t, AIResponseMessage{Content: "hi"}, msg)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestManager_StaleInstanceDropped(t *testing.T) {
	tr := newFakeTransport(0)
	m := NewManager(tr, testConf(time.Minute, time.Minute), testLogger())
	defer m.Close()

	got := make(chan Message, 16)
	m.Subscribe(func(msg Message) { got <- msg })

	require.NoError(t, m.EnsureConnected(context.Background(), testInitCtx))
	tr.waitDial(t)

	// a read bound to a superseded epoch must not reach subscribers
	m.dispatch(0, AIResponseMessage{Content: "stale"})
	select {
	case msg := <-got:
		t.Fatalf("stale message delivered: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	m.dispatch(1, AIResponseMessage{Content: "live"})
	select {
	case msg := <-got:
		assert.Equal(t, AIResponseMessage{Content: "live"}, msg)
	case <-time.After(time.Second):
		t.Fatal("live message not delivered")
	}
}

func TestManager_ReconnectResendsInit(t *testing.T) {
	tr := newFakeTransport(0)
	m := NewManager(tr, testConf(10*time.Millisecond, 10*time.Millisecond), testLogger())
	defer m.Close()

	require.NoError(t, m.EnsureConnected(context.Background(), testInitCtx))
	conn1 := tr.waitDial(t)
	_ = requireInit(t, conn1)

	// drop the connection; the manager redials and re-inits on its own
	_ = conn1.Close()
	conn2 := tr.waitDial(t)
	require.NotNil(t, conn2)
	msg := requireInit(t, conn2)
	assert.Equal(t, testInitCtx, msg.Context)
	assert.Equal(t, 2, tr.dialCount())
}

func TestManager_TwoTierBackoff(t *testing.T) {
	short, long := 20*time.Millisecond, 150*time.Millisecond
	tr := newFakeTransport(2)
	m := NewManager(tr, testConf(short, long), testLogger())
	defer m.Close()

	// never-opened channel retries on the short tier
	start := time.Now()
	require.Error(t, m.EnsureConnected(context.Background(), testInitCtx))
	tr.waitDial(t) // attempt 1 (refused)
	tr.waitDial(t) // attempt 2 (refused)
	tr.waitDial(t) // attempt 3 succeeds
	assert.Less(t, time.Since(start), long, "pre-open retries must use the short backoff")

	// once opened, a drop retries on the long tier
	tr.mu.Lock()
	conn := tr.conns[0]
	tr.mu.Unlock()
	dropped := time.Now()
	_ = conn.Close()
	tr.waitDial(t)
	assert.GreaterOrEqual(t, time.Since(dropped), long-10*time.Millisecond,
		"post-open retries must use the long backoff")
}

func TestManager_CloseCancelsReconnect(t *testing.T) {
	tr := newFakeTransport(100)
	m := NewManager(tr, testConf(20*time.Millisecond, 20*time.Millisecond), testLogger())

	require.Error(t, m.EnsureConnected(context.Background(), testInitCtx))
	tr.waitDial(t)
	m.Close()
	assert.Equal(t, StateClosed, m.State())

	dials := tr.dialCount()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, dials, tr.dialCount(), "no reconnect attempts after Close")

	// and a closed manager refuses to reconnect
	assert.Error(t, m.EnsureConnected(context.Background(), testInitCtx))
}
