// Package agentws provides the websocket transport to the AI agent service.
package agentws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/agent"
)

const (
	dialTimeout    = 10 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 20 // 1MB
)

type Transport struct {
	url    string
	dialer *websocket.Dialer
}

var _ agent.Transport = (*Transport)(nil)

func NewTransport(conf *core.Config) *Transport {
	return &Transport{
		url: conf.Agent.URL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
		},
	}
}

func (t *Transport) Dial(ctx context.Context) (agent.Conn, error) {
	ws, resp, err := t.dialer.DialContext(ctx, t.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)
	return &conn{ws: ws}, nil
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex // serializes writes (gorilla/websocket requirement)
}

var _ agent.Conn = (*conn)(nil)

func (c *conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) Close() error {
	return c.ws.Close()
}
