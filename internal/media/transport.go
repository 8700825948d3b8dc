package media

import (
	"context"

	"github.com/gorilla/websocket"
)

// Conn is one open duplex channel to the provider media endpoint.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Transport dials the provider media endpoint. Injected so relay logic can be
// exercised against an in-memory transport.
type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

// WSTransport dials a websocket media endpoint.
type WSTransport struct {
	URL    string
	Dialer *websocket.Dialer
}

func (t WSTransport) Dial(ctx context.Context) (Conn, error) {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	c, resp, err := dialer.DialContext(ctx, t.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return wsConn{c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c wsConn) WriteJSON(v any) error { return c.conn.WriteJSON(v) }

func (c wsConn) Close() error { return c.conn.Close() }
