package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidmark/internal/models"
	"github.com/desertthunder/vidmark/internal/shared"
)

// History fetches progress events for a job observed since a given time.
// The production implementation is services.JobsService.
type History interface {
	ProgressHistory(ctx context.Context, jobID string, since time.Time) ([]models.ProgressEvent, error)
}

// Options configures a [Client]. ChannelURL and Credential are required; every
// other field has a sensible default.
type Options struct {
	ChannelURL string

	// Credential returns the access token for the auth handshake.
	// An error here is a fatal local condition: no connection is attempted.
	Credential func() (string, error)

	Dialer  Dialer  // defaults to NewWebSocketDialer()
	History History // nil disables gap recovery
	Logger  *log.Logger

	Backoff       Backoff
	TerminalTTL   time.Duration
	SweepInterval time.Duration
	Clock         func() time.Time
}

// Client maintains the push-channel connection and the job snapshot map.
//
// State transitions run under a single mutex; blocking waits (dial, backoff
// timer, history requests) happen outside it. A connection generation counter
// guards against callbacks from a previous connection's reader mutating state
// after a reconnect.
type Client struct {
	opts    Options
	store   *Store
	logger  *log.Logger
	backoff Backoff
	clock   func() time.Time

	ctx context.Context // set by Start, bounds dials and history fetches

	mu             sync.Mutex
	conn           Channel
	gen            int
	connStatus     models.ConnectionStatus
	authStatus     models.AuthStatus
	historyErr     error
	attempt        int
	recoverPending bool // a history replay is owed on the next successful auth
	started        bool
	closed         bool
	reconnectTimer *time.Timer
	sweepDone      chan struct{}
	subs           map[int]chan models.Update
	nextSub        int
}

// NewClient creates a client. It does not connect; call [Client.Start].
func NewClient(opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = NewWebSocketDialer()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Credential == nil {
		opts.Credential = func() (string, error) { return "", shared.ErrMissingCredentials }
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}

	return &Client{
		opts:       opts,
		store:      NewStore(opts.TerminalTTL, opts.Clock),
		logger:     shared.WithLogger(opts.Logger, "component", "realtime"),
		backoff:    opts.Backoff,
		clock:      opts.Clock,
		connStatus: models.ConnectionClosed,
		authStatus: models.AuthPending,
		subs:       make(map[int]chan models.Update),
	}
}

// Start checks the local credential and begins connecting in the background.
//
// A missing credential is fatal for the connection attempt: auth status flips
// to failed, no dial happens, and [shared.ErrMissingCredentials] is returned.
// The context bounds the client's dials and history fetches; cancelling it
// does not replace [Client.Close].
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return shared.ErrClientClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}

	if _, err := c.opts.Credential(); err != nil {
		c.authStatus = models.AuthFailed
		c.publishLocked()
		c.mu.Unlock()
		return err
	}

	c.started = true
	c.ctx = ctx
	c.sweepDone = make(chan struct{})
	c.mu.Unlock()

	go c.sweepLoop()
	go c.connect()
	return nil
}

// connect performs one dial attempt and, on success, sends the auth message
// and starts the read loop. Dial failures schedule the next backoff attempt.
func (c *Client) connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.connStatus = models.ConnectionConnecting
	c.publishLocked()
	ctx := c.ctx
	c.mu.Unlock()

	ch, err := c.opts.Dialer.Dial(ctx, c.opts.ChannelURL)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if err == nil {
			ch.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("failed to open progress channel", "err", err)
		c.connStatus = models.ConnectionClosed
		c.scheduleReconnectLocked()
		c.publishLocked()
		c.mu.Unlock()
		return
	}

	c.conn = ch
	c.gen++
	gen := c.gen
	c.connStatus = models.ConnectionOpen
	c.authStatus = models.AuthPending
	c.attempt = 0
	c.publishLocked()
	c.mu.Unlock()

	cred, err := c.opts.Credential()
	if err != nil {
		// Credential vanished between attempts. Fatal, same as at startup.
		c.logger.Error("credential unavailable", "err", err)
		c.mu.Lock()
		if !c.closed && gen == c.gen {
			c.conn = nil
			c.connStatus = models.ConnectionClosed
			c.authStatus = models.AuthFailed
			c.publishLocked()
		}
		c.mu.Unlock()
		ch.Close()
		return
	}

	if err := ch.WriteJSON(authMessage{Type: "auth", Token: cred}); err != nil {
		c.handleClose(gen, err)
		return
	}

	go c.readLoop(gen, ch)
}

// readLoop pumps messages from one connection until it closes.
func (c *Client) readLoop(gen int, ch Channel) {
	for {
		data, err := ch.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.handleMessage(gen, data)
	}
}

// handleMessage dispatches one channel message: handshake replies by type,
// progress events by job id. Malformed messages are discarded without any
// state mutation.
func (c *Client) handleMessage(gen int, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Debug("discarding malformed channel message", "err", err)
		return
	}

	switch env.Type {
	case "auth_confirmed":
		c.mu.Lock()
		if c.closed || gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.logger.Info("channel authenticated")
		c.authStatus = models.AuthAuthenticated
		c.historyErr = nil
		replay := c.recoverPending
		c.recoverPending = false
		c.publishLocked()
		ctx := c.ctx
		c.mu.Unlock()

		if replay {
			go c.recoverGaps(ctx)
		}

	case "auth_failed":
		c.mu.Lock()
		if c.closed || gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.logger.Error("channel auth rejected", "reason", env.Error)
		c.authStatus = models.AuthFailed
		c.publishLocked()
		c.mu.Unlock()
		// The server closes the channel shortly after rejecting; the normal
		// close path takes over from there.

	case "":
		if env.JobID == "" || !env.Status.Valid() {
			c.logger.Debug("discarding malformed progress event")
			return
		}
		c.mu.Lock()
		if c.closed || gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.store.Merge(env.ProgressEvent)
		c.publishLocked()
		c.mu.Unlock()

	default:
		c.logger.Debug("ignoring unknown channel message", "type", env.Type)
	}
}

// handleClose reacts to a connection ending. Intentional closures (normal
// close code) stop the client quietly; anything else schedules a reconnect
// and marks the next successful auth for gap recovery.
func (c *Client) handleClose(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.gen {
		return
	}

	c.conn = nil
	c.connStatus = models.ConnectionClosed
	c.authStatus = models.AuthPending

	var closeErr *CloseError
	if errors.As(err, &closeErr) && closeErr.Intentional() {
		c.logger.Info("progress channel closed by server", "code", closeErr.Code)
		c.publishLocked()
		return
	}

	c.logger.Warn("progress channel lost", "err", err)
	c.recoverPending = true
	c.scheduleReconnectLocked()
	c.publishLocked()
}

// scheduleReconnectLocked arms the backoff timer for the current attempt and
// bumps the counter for the next cycle. Callers hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	delay := c.backoff.Delay(c.attempt)
	c.attempt++
	c.logger.Info("scheduling reconnect", "attempt", c.attempt, "delay", delay)
	c.reconnectTimer = time.AfterFunc(delay, c.connect)
}

// sweepLoop evicts expired terminal entries on a fixed cadence, independent
// of event traffic.
func (c *Client) sweepLoop() {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sweepDone:
			return
		case <-ticker.C:
			evicted := c.store.Sweep(c.clock())
			if len(evicted) == 0 {
				continue
			}
			c.logger.Debug("evicted finished jobs", "count", len(evicted))
			c.mu.Lock()
			if !c.closed {
				c.publishLocked()
			}
			c.mu.Unlock()
		}
	}
}

// Close tears the client down: cancels any pending reconnect, stops the
// sweeper, closes the connection, and closes all subscriber channels. A
// closed client never dials again.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.sweepDone != nil {
		close(c.sweepDone)
	}

	conn := c.conn
	c.conn = nil
	c.connStatus = models.ConnectionClosed
	if c.authStatus == models.AuthAuthenticated {
		c.authStatus = models.AuthPending
	}
	c.publishLocked()

	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub)
	}
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Send writes an outbound control message to the channel.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return shared.ErrClientClosed
	}
	if c.conn == nil {
		return shared.ErrChannelClosed
	}
	return c.conn.WriteJSON(v)
}

// Seed merges previously persisted snapshots into the store and marks the
// client for history replay, so the first successful auth fetches whatever
// the seeded jobs missed while the process was down. Their persisted
// ObservedAt stamps become the `since` low-water marks.
func (c *Client) Seed(events []models.ProgressEvent) {
	merged := 0
	for _, ev := range events {
		if ev.JobID == "" || !ev.Status.Valid() {
			continue
		}
		c.store.Merge(ev)
		merged++
	}
	if merged == 0 {
		return
	}

	c.mu.Lock()
	if !c.closed {
		c.recoverPending = true
		c.publishLocked()
	}
	c.mu.Unlock()
}

// Snapshot returns the current job map.
func (c *Client) Snapshot() map[string]models.ProgressEvent {
	return c.store.Snapshot()
}

// ConnectionStatus returns the current channel state.
func (c *Client) ConnectionStatus() models.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connStatus
}

// AuthStatus returns the current handshake state.
func (c *Client) AuthStatus() models.AuthStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authStatus
}

// HistoryErr returns the transient gap-recovery failure, if any. It clears on
// the next successful connection.
func (c *Client) HistoryErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historyErr
}

// Subscribe registers an observer of state changes. The returned channel is
// primed with the current state and receives an [models.Update] on every
// change; slow consumers miss intermediate updates rather than blocking the
// client. The cancel func unregisters and closes the channel.
func (c *Client) Subscribe() (<-chan models.Update, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan models.Update, 32)
	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.updateLocked()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (c *Client) updateLocked() models.Update {
	return models.Update{
		Connection: c.connStatus,
		Auth:       c.authStatus,
		Jobs:       c.store.Snapshot(),
		HistoryErr: c.historyErr,
	}
}

// publishLocked fans the current state out to all subscribers without
// blocking. Callers hold c.mu.
func (c *Client) publishLocked() {
	u := c.updateLocked()
	for _, sub := range c.subs {
		select {
		case sub <- u:
		default:
		}
	}
}
