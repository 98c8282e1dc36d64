package realtime

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	tc := []struct {
		name    string
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{
			name:    "first attempt uses initial delay",
			backoff: Backoff{Initial: 3 * time.Second, Max: 30 * time.Second},
			attempt: 0,
			want:    3 * time.Second,
		},
		{
			name:    "doubles per attempt",
			backoff: Backoff{Initial: 3 * time.Second, Max: 30 * time.Second},
			attempt: 2,
			want:    12 * time.Second,
		},
		{
			name:    "caps at max",
			backoff: Backoff{Initial: 3 * time.Second, Max: 30 * time.Second},
			attempt: 4,
			want:    30 * time.Second,
		},
		{
			name:    "stays capped for huge attempts",
			backoff: Backoff{Initial: 3 * time.Second, Max: 30 * time.Second},
			attempt: 1000,
			want:    30 * time.Second,
		},
		{
			name:    "negative attempt treated as zero",
			backoff: Backoff{Initial: 3 * time.Second, Max: 30 * time.Second},
			attempt: -5,
			want:    3 * time.Second,
		},
		{
			name:    "zero values use defaults",
			backoff: Backoff{},
			attempt: 0,
			want:    DefaultInitialBackoff,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.backoff.Delay(tt.attempt)
			if got != tt.want {
				t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestBackoffMonotonicAndCapped(t *testing.T) {
	b := Backoff{Initial: 3 * time.Second, Max: 30 * time.Second}

	prev := time.Duration(0)
	for attempt := 0; attempt <= 10; attempt++ {
		d := b.Delay(attempt)
		if d < prev {
			t.Errorf("delay decreased at attempt %d: %s < %s", attempt, d, prev)
		}
		if d > b.Max {
			t.Errorf("delay exceeds max at attempt %d: %s", attempt, d)
		}
		prev = d
	}
}
