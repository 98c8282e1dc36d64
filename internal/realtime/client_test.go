package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/vidmark/internal/models"
	"github.com/desertthunder/vidmark/internal/shared"
)

// fakeChannel is a scripted push channel. Tests feed incoming payloads (or an
// error terminating the read loop) and observe outbound writes.
type fakeChannel struct {
	incoming chan any
	writes   chan []byte

	mu     sync.Mutex
	closed bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		incoming: make(chan any, 16),
		writes:   make(chan []byte, 16),
	}
}

func (f *fakeChannel) ReadMessage() ([]byte, error) {
	v, ok := <-f.incoming
	if !ok {
		return nil, io.EOF
	}
	switch m := v.(type) {
	case []byte:
		return m, nil
	case error:
		return nil, m
	default:
		panic(fmt.Sprintf("unexpected scripted value %T", v))
	}
}

func (f *fakeChannel) WriteJSON(v any) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.New("write on closed channel")
	}
	f.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.writes <- data
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeDialer pops pre-scripted channels in order and counts dials.
type fakeDialer struct {
	mu    sync.Mutex
	queue []*fakeChannel
	dials int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if len(d.queue) == 0 {
		return nil, errors.New("no channel scripted")
	}
	ch := d.queue[0]
	d.queue = d.queue[1:]
	return ch, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// fakeHistory records the `since` mark per job and serves scripted replies.
type fakeHistory struct {
	mu     sync.Mutex
	events map[string][]models.ProgressEvent
	errs   map[string]error
	since  map[string]time.Time
}

func (f *fakeHistory) ProgressHistory(ctx context.Context, jobID string, since time.Time) ([]models.ProgressEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.since == nil {
		f.since = make(map[string]time.Time)
	}
	f.since[jobID] = since

	if err := f.errs[jobID]; err != nil {
		return nil, err
	}
	return f.events[jobID], nil
}

func (f *fakeHistory) sinceFor(jobID string) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.since[jobID]
}

func testClient(t *testing.T, dialer *fakeDialer, history History) *Client {
	t.Helper()
	c := NewClient(Options{
		ChannelURL: "ws://test/ws/progress",
		Credential: func() (string, error) { return "tok1", nil },
		Dialer:     dialer,
		History:    history,
		Backoff:    Backoff{Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond},
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, updates <-chan models.Update, desc string, cond func(models.Update) bool) models.Update {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				t.Fatalf("updates channel closed waiting for %s", desc)
			}
			if cond(u) {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}

// serveAuth reads the handshake message off the channel, checks its shape,
// and replies with auth_confirmed.
func serveAuth(t *testing.T, ch *fakeChannel, wantToken string) {
	t.Helper()
	select {
	case data := <-ch.writes:
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to decode handshake message: %v", err)
		}
		if msg["type"] != "auth" {
			t.Fatalf("expected auth message first, got %v", msg)
		}
		if msg["token"] != wantToken {
			t.Errorf("expected token %q in message body, got %v", wantToken, msg["token"])
		}
		ch.incoming <- []byte(`{"type":"auth_confirmed","authenticated":true}`)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auth message")
	}
}

func progressPayload(jobID string, status models.JobStatus, progress int) []byte {
	return []byte(fmt.Sprintf(
		`{"job_id":%q,"status":%q,"progress":%d,"current_video":%d,"total_videos":10,"message":"importing"}`,
		jobID, status, progress, progress/10,
	))
}

func TestClientMissingCredential(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewClient(Options{
		ChannelURL: "ws://test/ws/progress",
		Dialer:     dialer,
	})
	defer c.Close()

	err := c.Start(context.Background())
	if !errors.Is(err, shared.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if got := c.AuthStatus(); got != models.AuthFailed {
		t.Errorf("expected auth status failed, got %s", got)
	}
	if dialer.dialCount() != 0 {
		t.Errorf("expected no dial without a credential, got %d", dialer.dialCount())
	}
}

func TestClientAuthHandshake(t *testing.T) {
	ch := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch}}
	c := testClient(t, dialer, nil)

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}

	waitFor(t, updates, "open connection", func(u models.Update) bool {
		return u.Connection == models.ConnectionOpen
	})
	if got := c.AuthStatus(); got != models.AuthPending {
		t.Errorf("expected auth pending before handshake reply, got %s", got)
	}

	serveAuth(t, ch, "tok1")

	waitFor(t, updates, "authenticated", func(u models.Update) bool {
		return u.Auth == models.AuthAuthenticated
	})
}

func TestClientAuthRejected(t *testing.T) {
	ch := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch}}
	c := testClient(t, dialer, nil)

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}

	<-ch.writes // auth message
	ch.incoming <- []byte(`{"type":"auth_failed","error":"bad token"}`)

	waitFor(t, updates, "auth failed", func(u models.Update) bool {
		return u.Auth == models.AuthFailed
	})
	if got := c.ConnectionStatus(); got != models.ConnectionOpen {
		t.Errorf("client must not close the channel itself on rejection, got %s", got)
	}
}

func TestClientLiveEvents(t *testing.T) {
	ch := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch}}
	c := testClient(t, dialer, nil)

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	serveAuth(t, ch, "tok1")

	ch.incoming <- progressPayload("job-1", models.StatusProcessing, 50)

	u := waitFor(t, updates, "job-1 at 50", func(u models.Update) bool {
		return u.Jobs["job-1"].Progress == 50
	})
	if u.Jobs["job-1"].Status != models.StatusProcessing {
		t.Errorf("expected status processing, got %s", u.Jobs["job-1"].Status)
	}
	if u.Jobs["job-1"].ObservedAt.IsZero() {
		t.Error("merged event must carry a client-stamped ObservedAt")
	}
}

func TestClientMalformedMessages(t *testing.T) {
	ch := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch}}
	c := testClient(t, dialer, nil)

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	serveAuth(t, ch, "tok1")

	ch.incoming <- []byte(`{not json`)
	ch.incoming <- []byte(`{"status":"processing","progress":10}`)          // no job id
	ch.incoming <- []byte(`{"job_id":"job-1","status":"exploded"}`)         // unknown status
	ch.incoming <- progressPayload("job-1", models.StatusProcessing, 25)    // loop still alive

	u := waitFor(t, updates, "valid event after garbage", func(u models.Update) bool {
		return u.Jobs["job-1"].Progress == 25
	})
	if len(u.Jobs) != 1 {
		t.Errorf("malformed messages must not create entries, got %d", len(u.Jobs))
	}
}

func TestClientReconnectAndGapRecovery(t *testing.T) {
	ch1 := newFakeChannel()
	ch2 := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch1, ch2}}
	history := &fakeHistory{
		events: map[string][]models.ProgressEvent{
			"job-1": {{JobID: "job-1", Status: models.StatusCompleted, Progress: 100}},
		},
	}
	c := testClient(t, dialer, history)

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	serveAuth(t, ch1, "tok1")

	ch1.incoming <- progressPayload("job-1", models.StatusProcessing, 50)
	live := waitFor(t, updates, "job-1 at 50", func(u models.Update) bool {
		return u.Jobs["job-1"].Progress == 50
	})
	observedAt := live.Jobs["job-1"].ObservedAt

	// Abnormal closure: auth must reset synchronously and a reconnect follows.
	ch1.incoming <- error(&CloseError{Code: 1006, Reason: "gone"})

	waitFor(t, updates, "auth reset on disconnect", func(u models.Update) bool {
		return u.Connection == models.ConnectionClosed && u.Auth == models.AuthPending
	})

	serveAuth(t, ch2, "tok1")

	final := waitFor(t, updates, "job-1 completed via replay", func(u models.Update) bool {
		return u.Jobs["job-1"].Status == models.StatusCompleted
	})
	if final.Jobs["job-1"].Progress != 100 {
		t.Errorf("expected replayed progress 100, got %d", final.Jobs["job-1"].Progress)
	}
	if final.HistoryErr != nil {
		t.Errorf("expected no history error, got %v", final.HistoryErr)
	}
	if got := history.sinceFor("job-1"); !got.Equal(observedAt) {
		t.Errorf("expected since=%s (last observation), got %s", observedAt, got)
	}
	if dialer.dialCount() != 2 {
		t.Errorf("expected exactly two dials, got %d", dialer.dialCount())
	}
}

func TestClientPartialRecoveryFailure(t *testing.T) {
	ch1 := newFakeChannel()
	ch2 := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch1, ch2}}
	history := &fakeHistory{
		events: map[string][]models.ProgressEvent{
			"job-b": {{JobID: "job-b", Status: models.StatusCompleted, Progress: 100}},
		},
		errs: map[string]error{
			"job-a": errors.New("boom"),
		},
	}
	c := testClient(t, dialer, history)

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	serveAuth(t, ch1, "tok1")

	ch1.incoming <- progressPayload("job-a", models.StatusProcessing, 30)
	ch1.incoming <- progressPayload("job-b", models.StatusProcessing, 60)
	waitFor(t, updates, "both jobs tracked", func(u models.Update) bool {
		return len(u.Jobs) == 2
	})

	ch1.incoming <- error(&CloseError{Code: 1006, Reason: "gone"})
	serveAuth(t, ch2, "tok1")

	u := waitFor(t, updates, "partial recovery result", func(u models.Update) bool {
		return u.Jobs["job-b"].Status == models.StatusCompleted && u.HistoryErr != nil
	})

	if !errors.Is(u.HistoryErr, shared.ErrAPIRequest) {
		t.Errorf("expected history error wrapping ErrAPIRequest, got %v", u.HistoryErr)
	}
	if got := u.Jobs["job-a"]; got.Status != models.StatusProcessing || got.Progress != 30 {
		t.Errorf("job-a snapshot must be unchanged by its failed replay, got %+v", got)
	}
}

func TestClientIntentionalCloseDoesNotReconnect(t *testing.T) {
	ch := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch}}
	c := testClient(t, dialer, nil)

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	serveAuth(t, ch, "tok1")

	ch.incoming <- error(&CloseError{Code: CloseNormal, Reason: "shutting down"})

	waitFor(t, updates, "closed", func(u models.Update) bool {
		return u.Connection == models.ConnectionClosed
	})

	time.Sleep(100 * time.Millisecond)
	if dialer.dialCount() != 1 {
		t.Errorf("normal closure must not reconnect, got %d dials", dialer.dialCount())
	}
}

func TestClientTeardownCancelsReconnect(t *testing.T) {
	ch := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch}}
	c := NewClient(Options{
		ChannelURL: "ws://test/ws/progress",
		Credential: func() (string, error) { return "tok1", nil },
		Dialer:     dialer,
		Backoff:    Backoff{Initial: 100 * time.Millisecond, Max: 100 * time.Millisecond},
	})

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	serveAuth(t, ch, "tok1")

	ch.incoming <- error(&CloseError{Code: 1006, Reason: "gone"})
	waitFor(t, updates, "reconnect pending", func(u models.Update) bool {
		return u.Connection == models.ConnectionClosed
	})

	if err := c.Close(); err != nil {
		t.Fatalf("failed to close client: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if dialer.dialCount() != 1 {
		t.Errorf("teardown must cancel the pending reconnect, got %d dials", dialer.dialCount())
	}
}

func TestClientSend(t *testing.T) {
	ch := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch}}
	c := testClient(t, dialer, nil)

	if err := c.Send(map[string]string{"type": "ping"}); !errors.Is(err, shared.ErrChannelClosed) {
		t.Errorf("expected ErrChannelClosed before connect, got %v", err)
	}

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	serveAuth(t, ch, "tok1")
	waitFor(t, updates, "authenticated", func(u models.Update) bool {
		return u.Auth == models.AuthAuthenticated
	})

	if err := c.Send(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	select {
	case data := <-ch.writes:
		var msg map[string]string
		if err := json.Unmarshal(data, &msg); err != nil || msg["type"] != "ping" {
			t.Errorf("expected ping on the wire, got %s (%v)", data, err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound message")
	}

	c.Close()
	if err := c.Send(map[string]string{"type": "ping"}); !errors.Is(err, shared.ErrClientClosed) {
		t.Errorf("expected ErrClientClosed after close, got %v", err)
	}
}

func TestClientSeed(t *testing.T) {
	dialer := &fakeDialer{}
	c := testClient(t, dialer, nil)

	seen := time.Now().Add(-time.Minute)
	c.Seed([]models.ProgressEvent{
		{JobID: "job-1", Status: models.StatusProcessing, Progress: 40, ObservedAt: seen},
		{Status: models.StatusProcessing}, // no id, skipped
	})

	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one seeded job, got %d", len(snap))
	}
	if !snap["job-1"].ObservedAt.Equal(seen) {
		t.Errorf("seeding must keep the persisted observation time, got %s", snap["job-1"].ObservedAt)
	}
}

func TestClientSeedReplaysHistoryOnFirstAuth(t *testing.T) {
	ch := newFakeChannel()
	dialer := &fakeDialer{queue: []*fakeChannel{ch}}
	seen := time.Now().Add(-time.Hour)
	history := &fakeHistory{
		events: map[string][]models.ProgressEvent{
			"job-1": {{JobID: "job-1", Status: models.StatusCompleted, Progress: 100}},
		},
	}
	c := testClient(t, dialer, history)

	c.Seed([]models.ProgressEvent{
		{JobID: "job-1", Status: models.StatusProcessing, Progress: 40, ObservedAt: seen},
	})

	updates, cancel := c.Subscribe()
	defer cancel()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	serveAuth(t, ch, "tok1")

	// The first successful auth must replay history for the restored job,
	// not wait for a mid-run disconnect.
	waitFor(t, updates, "seeded job caught up from history", func(u models.Update) bool {
		return u.Jobs["job-1"].Status == models.StatusCompleted
	})

	if got := history.sinceFor("job-1"); !got.Equal(seen) {
		t.Errorf("expected persisted observation time %s as since mark, got %s", seen, got)
	}
	if snap := c.Snapshot(); snap["job-1"].Progress != 100 {
		t.Errorf("expected replayed progress 100, got %d", snap["job-1"].Progress)
	}
}
