package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer opens push channels over WebSocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
}

// NewWebSocketDialer creates a dialer with a 10 second handshake timeout.
func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{HandshakeTimeout: 10 * time.Second}
}

// Dial establishes a WebSocket connection to the given URL.
func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Channel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	return &wsChannel{conn: conn}, nil
}

// wsChannel adapts a [websocket.Conn] to the [Channel] interface.
type wsChannel struct {
	conn *websocket.Conn
}

// ReadMessage blocks for the next text message. Peer-initiated closures are
// translated to [*CloseError] so callers can inspect the close code.
func (c *wsChannel) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, &CloseError{Code: closeErr.Code, Reason: closeErr.Text}
		}
		return nil, err
	}
	return data, nil
}

// WriteJSON marshals v and writes it as a single text message.
func (c *wsChannel) WriteJSON(v any) error {
	return c.conn.WriteJSON(v)
}

// Close sends a normal-closure frame and tears down the connection.
func (c *wsChannel) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	return c.conn.Close()
}
