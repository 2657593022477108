package session

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

// Envelope is the wire frame of the event channel. Payload stays raw
// until the session knows the type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const (
	EnvelopeDeviceUpdates = "deviceUpdates"
	EnvelopeAlert         = "alert"
	EnvelopeStatus        = "status"
)

// Transport performs a single handshake per Dial and never retries on
// its own: the session event loop is the only reconnection authority.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type Conn interface {
	ReadEnvelope() (Envelope, error)
	Close() error
}

type WebsocketTransport struct {
	Dialer *websocket.Dialer
}

func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{Dialer: websocket.DefaultDialer}
}

func (t *WebsocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := t.Dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadEnvelope() (Envelope, error) {
	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}
