package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kwetu-lab/elimu/core"
)

// Connection states.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateReconnectWait
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnectWait:
		return "reconnect-wait"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// TransportError is a connection-level failure. It is retried automatically
// by the Manager and never surfaced per-message.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "agent transport: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

type (
	// Conn is one underlying duplex connection instance.
	Conn interface {
		ReadMessage() ([]byte, error)
		WriteMessage(data []byte) error
		Close() error
	}

	// Transport dials the agent service. The gorilla/websocket
	// implementation lives in services/agentws.
	Transport interface {
		Dial(ctx context.Context) (Conn, error)
	}

	Handler func(Message)
)

// Manager owns at most one live duplex connection to the agent service. It
// handles connect, automatic reconnect with a two-tier backoff, one init
// send per connection instance, and fan-out of inbound messages to
// subscribers. No other component writes to the transport.
type Manager struct {
	transport Transport
	short     time.Duration // backoff before the first-ever successful open
	long      time.Duration // backoff once the channel has opened before
	log       core.Logger

	mu         sync.Mutex
	state      ConnState
	conn       Conn
	epoch      int // increments per connection instance
	everOpened bool
	initCtx    *InitContext
	subs       map[int]Handler
	nextSub    int
	timer      *time.Timer
}

func NewManager(transport Transport, conf *core.Config, log core.Logger) *Manager {
	return &Manager{
		transport: transport,
		short:     conf.Agent.ReconnectShort,
		long:      conf.Agent.ReconnectLong,
		log:       log,
		state:     StateDisconnected,
		subs:      make(map[int]Handler),
	}
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a handler for inbound messages and returns its
// unsubscribe func. One handler's panic never prevents delivery to the rest.
func (m *Manager) Subscribe(h Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = h
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// EnsureConnected dials the agent service unless a connection is already
// live or in progress. The init context is remembered and (re)sent exactly
// once per new underlying connection.
func (m *Manager) EnsureConnected(ctx context.Context, initCtx InitContext) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return &TransportError{Op: "connect", Err: fmt.Errorf("manager closed")}
	}
	m.initCtx = &initCtx
	if m.state == StateOpen || m.state == StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	conn, err := m.transport.Dial(ctx)
	if err != nil {
		m.log.Warn("agent: dial failed", err)
		m.scheduleReconnect()
		return &TransportError{Op: "dial", Err: err}
	}

	m.mu.Lock()
	if m.state == StateClosed { // closed while dialing
		m.mu.Unlock()
		_ = conn.Close()
		return &TransportError{Op: "connect", Err: fmt.Errorf("manager closed")}
	}
	m.epoch++
	epoch := m.epoch
	m.conn = conn
	m.state = StateOpen
	m.everOpened = true
	init := *m.initCtx
	m.mu.Unlock()

	// init goes out once per connection instance, before any application send
	if data, err := Encode(InitMessage{Context: init}); err == nil {
		if err := conn.WriteMessage(data); err != nil {
			m.log.Warn("agent: init send failed", err)
		}
	}

	go m.readLoop(epoch, conn)
	return nil
}

// Send delivers a message on the live connection. It reports failure when
// the channel is not open; callers must not assume delivery — this is a
// best-effort channel.
func (m *Manager) Send(msg Message) bool {
	m.mu.Lock()
	if m.state != StateOpen || m.conn == nil {
		m.mu.Unlock()
		return false
	}
	conn := m.conn
	m.mu.Unlock()

	data, err := Encode(msg)
	if err != nil {
		m.log.Error("agent: encode failed", err)
		return false
	}
	if err := conn.WriteMessage(data); err != nil {
		m.log.Warn("agent: send failed", err)
		return false
	}
	return true
}

// Close tears the manager down: the reconnect timer is cancelled so no
// orphaned attempts fire after the player is dismissed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.state = StateClosed
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// readLoop consumes one connection instance. It is bound to its epoch:
// messages read after the instance has been superseded are dropped, so a
// stale connection can never deliver after the new instance's init.
func (m *Manager) readLoop(epoch int, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.connClosed(epoch, err)
			return
		}

		msg, err := Decode(data)
		if err != nil {
			// a single bad payload must never break the loop
			m.log.Warn("agent: dropping payload", err)
			continue
		}
		m.dispatch(epoch, msg)
	}
}

func (m *Manager) dispatch(epoch int, msg Message) {
	m.mu.Lock()
	if epoch != m.epoch || m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	handlers := make([]Handler, 0, len(m.subs))
	for i := 0; i < m.nextSub; i++ {
		if h, ok := m.subs[i]; ok {
			handlers = append(handlers, h)
		}
	}
	m.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("agent: subscriber panicked", r)
				}
			}()
			h(msg)
		}()
	}
}

func (m *Manager) connClosed(epoch int, err error) {
	m.mu.Lock()
	if m.state == StateClosed || epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.mu.Unlock()

	m.log.Info("agent: connection closed, reconnecting", err)
	m.scheduleReconnect()
}

// scheduleReconnect arms the single reconnect timer. Backoff is two-tier:
// short until the channel has ever opened successfully, long afterwards.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateClosed {
		return
	}
	m.state = StateReconnectWait

	backoff := m.short
	if m.everOpened {
		backoff = m.long
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(backoff, func() {
		m.mu.Lock()
		if m.state != StateReconnectWait || m.initCtx == nil {
			m.mu.Unlock()
			return
		}
		m.state = StateDisconnected
		init := *m.initCtx
		m.mu.Unlock()
		_ = m.EnsureConnected(context.Background(), init)
	})
}
