// package models defines the data model for the vidmark progress client
package models

import (
	"time"
)

// JobStatus enumerates the lifecycle states of a server-side job.
type JobStatus string

const (
	StatusPending             JobStatus = "pending"
	StatusProcessing          JobStatus = "processing"
	StatusCompleted           JobStatus = "completed"
	StatusFailed              JobStatus = "failed"
	StatusCompletedWithErrors JobStatus = "completed_with_errors"
)

// Terminal reports whether no further progress is expected for the job.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCompletedWithErrors:
		return true
	}
	return false
}

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCompletedWithErrors:
		return true
	}
	return false
}

// ProgressEvent is one observation of a job's state, received either live over
// the push channel or replayed from the history endpoint. Both use the same
// wire shape.
type ProgressEvent struct {
	JobID        string    `json:"job_id"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"` // 0-100
	CurrentVideo int       `json:"current_video"`
	TotalVideos  int       `json:"total_videos"`
	Message      string    `json:"message"`

	// ObservedAt is stamped by the client when the event is merged,
	// never trusted from the server.
	ObservedAt time.Time `json:"-"`
}

// ConnectionStatus is the state of the underlying push channel.
type ConnectionStatus string

const (
	ConnectionConnecting ConnectionStatus = "connecting"
	ConnectionOpen       ConnectionStatus = "open"
	ConnectionClosed     ConnectionStatus = "closed"
)

// AuthStatus is the state of the in-channel auth handshake. It is orthogonal
// to [ConnectionStatus]: an open channel is not trusted until the server
// confirms the auth message, and any disconnect drops back to AuthPending.
type AuthStatus string

const (
	AuthPending       AuthStatus = "pending"
	AuthAuthenticated AuthStatus = "authenticated"
	AuthFailed        AuthStatus = "failed"
)

// Update is a point-in-time view of the realtime client's state, published to
// subscribers on every change.
type Update struct {
	Connection ConnectionStatus
	Auth       AuthStatus
	Jobs       map[string]ProgressEvent
	HistoryErr error // transient gap-recovery failure, nil when recovery is healthy
}
