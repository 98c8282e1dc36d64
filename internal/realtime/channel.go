package realtime

import (
	"context"
	"fmt"

	"github.com/desertthunder/vidmark/internal/models"
)

// CloseNormal is the close code the backend uses for intentional shutdowns.
// Closures with this code must not trigger reconnection.
const CloseNormal = 1000

// Channel is a single established push-channel connection.
//
// ReadMessage blocks until the next message arrives and returns an error once
// the channel is closed; a [*CloseError] carries the close code when one was
// received from the peer.
type Channel interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer opens push channels. The production implementation is
// [WebSocketDialer]; tests inject scripted fakes.
type Dialer interface {
	Dial(ctx context.Context, url string) (Channel, error)
}

// CloseError reports a channel closure together with the peer's close code.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("channel closed with code %d", e.Code)
	}
	return fmt.Sprintf("channel closed with code %d: %s", e.Code, e.Reason)
}

// Intentional reports whether the closure was a normal closure that must not
// trigger reconnection.
func (e *CloseError) Intentional() bool {
	return e.Code == CloseNormal
}

// authMessage is the first client-to-server message after the channel opens.
// The credential travels in the message body, never in the connection URI.
type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// envelope is the superset of every server-to-client message. Handshake
// replies carry a type; progress events carry none and are recognized by
// their job id.
type envelope struct {
	Type          string `json:"type"`
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error"`

	models.ProgressEvent
}
