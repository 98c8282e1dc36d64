// Package realtime implements the reliable job-progress client for the
// vidmark backend's push channel.
//
// A [Client] owns one WebSocket-style connection at a time and drives it
// through an explicit lifecycle: dial, in-channel auth handshake, live event
// stream, and exponential-backoff reconnection on unexpected closure. The
// credential is sent as the first message over the open channel rather than in
// the connection URI, so it never reaches intermediary access logs.
//
// Because the channel protocol has no resume semantics, the client performs
// gap recovery after every reconnect: for each job it has observed, it asks
// the REST history endpoint for events since the last client-stamped
// observation and merges the replies exactly like live events. One job's
// recovery failure never blocks the others.
//
// Job state lives in a [Store]: a latest-wins snapshot per job id. Terminal
// entries linger for a TTL so late corrective events still find their job,
// then a periodic sweep evicts them. Non-terminal entries are never evicted.
//
// All dependencies (transport dialer, history fetcher, clock) are injected
// through [Options], so multiple clients can coexist and tests run without
// network or shared globals.
package realtime
