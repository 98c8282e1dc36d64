package realtime

import (
	"sync"
	"time"

	"github.com/desertthunder/vidmark/internal/models"
)

// Default store tuning, overridable via [Options].
const (
	DefaultTerminalTTL   = 5 * time.Minute
	DefaultSweepInterval = 60 * time.Second
)

// Store holds the latest progress snapshot per job id.
//
// Events are merged latest-wins, never appended to a log: one entry per job.
// An entry also marks its job as watched for gap recovery; it stays watched
// until the eviction sweep removes it, so a late corrective event after a
// terminal status still finds its job.
type Store struct {
	mu   sync.RWMutex
	ttl  time.Duration
	jobs map[string]models.ProgressEvent
	now  func() time.Time
}

// NewStore creates a store evicting terminal entries after ttl. A nil clock
// defaults to [time.Now]; ttl <= 0 defaults to [DefaultTerminalTTL].
func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if ttl <= 0 {
		ttl = DefaultTerminalTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		ttl:  ttl,
		jobs: make(map[string]models.ProgressEvent),
		now:  now,
	}
}

// Merge replaces the stored snapshot for the event's job with the event,
// stamping ObservedAt with the current time when unset, and returns the
// stored value. Duplicate and regressive events simply overwrite; the server
// is the source of truth for monotonicity.
func (s *Store) Merge(ev models.ProgressEvent) models.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = s.now()
	}
	s.jobs[ev.JobID] = ev
	return ev
}

// Get returns the snapshot for a job id.
func (s *Store) Get(jobID string) (models.ProgressEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.jobs[jobID]
	return ev, ok
}

// Snapshot returns a copy of the current map, safe for callers to retain.
func (s *Store) Snapshot() map[string]models.ProgressEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.ProgressEvent, len(s.jobs))
	for id, ev := range s.jobs {
		out[id] = ev
	}
	return out
}

// Watched returns the job ids currently tracked for gap recovery.
func (s *Store) Watched() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

// LastObserved returns when an event for the job was last merged, or the zero
// time if the job is unknown. Used as the `since` low-water mark for history
// replay.
func (s *Store) LastObserved(jobID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.jobs[jobID].ObservedAt
}

// Sweep removes every entry whose status is terminal and whose ObservedAt is
// older than the TTL relative to now, returning the evicted job ids.
// Non-terminal entries are never swept regardless of age.
func (s *Store) Sweep(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, ev := range s.jobs {
		if ev.Status.Terminal() && now.Sub(ev.ObservedAt) > s.ttl {
			delete(s.jobs, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.jobs)
}
