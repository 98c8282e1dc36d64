// Package models defines domain entities for the vidmark job-progress client.
//
// The package contains two categories of types:
//
// 1. Wire types decoded from the backend:
//   - [ProgressEvent] : One observation of a job's status and progress
//   - [JobStatus] : Job lifecycle enumeration with terminal-state predicate
//
// 2. Client-side state exposed by the realtime client:
//   - [ConnectionStatus] : State of the underlying push channel
//   - [AuthStatus] : State of the in-channel auth handshake
//   - [Update] : Point-in-time view of connection, auth, and job snapshots
//
// ProgressEvent carries a client-assigned ObservedAt timestamp; server clocks
// are not assumed to be synchronized with the history endpoint's `since`
// semantics, so the client stamps events itself on receipt.
package models
