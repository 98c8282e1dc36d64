package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/vidmark/internal/shared"
)

// recoverGaps replays missed events for every watched job after a reconnect.
//
// One history request per job, all in flight concurrently, each using the
// job's last client-stamped observation as the `since` low-water mark.
// Replayed events merge exactly like live ones. A failed request is recorded
// and skipped so it never blocks the other jobs; recovery is not retried on
// its own, the next reconnect covers it with updated low-water marks.
func (c *Client) recoverGaps(ctx context.Context) {
	if c.opts.History == nil {
		return
	}

	ids := c.store.Watched()
	if len(ids) == 0 {
		return
	}
	c.logger.Info("replaying missed progress events", "jobs", len(ids))

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, id := range ids {
		wg.Add(1)
		go func(jobID string) {
			defer wg.Done()

			since := c.store.LastObserved(jobID)
			events, err := c.opts.History.ProgressHistory(ctx, jobID, since)
			if err != nil {
				c.logger.Warn("history replay failed", "job", jobID, "err", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}

			for _, ev := range events {
				if ev.JobID == "" {
					ev.JobID = jobID
				}
				if !ev.Status.Valid() {
					continue
				}
				ev.ObservedAt = time.Time{} // stamped at merge time
				c.store.Merge(ev)
			}
		}(id)
	}
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if failed > 0 {
		c.historyErr = fmt.Errorf("%w: history replay failed for %d of %d jobs", shared.ErrAPIRequest, failed, len(ids))
	}
	c.publishLocked()
}
