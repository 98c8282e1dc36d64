package realtime

import "time"

// Default reconnect delay bounds, overridable via [Options].
const (
	DefaultInitialBackoff = 3 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Backoff computes reconnect delays from an attempt count.
//
// The delay for attempt n is min(Initial * 2^n, Max). The attempt counter is
// owned by the caller and reset only on a successful open, never by merely
// starting another attempt.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the reconnect delay for the given attempt, starting at 0.
// Negative attempts are treated as 0.
func (b Backoff) Delay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	max := b.Max
	if max <= 0 {
		max = DefaultMaxBackoff
	}
	if initial >= max {
		return max
	}

	delay := initial
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}
