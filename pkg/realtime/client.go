package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillcms/realtime/pkg/realtime/o11y"
)

// ConnState is the connection lifecycle state of a Client.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

var (
	// ErrClosed is returned by Connect after Disconnect has been called.
	ErrClosed = errors.New("client is closed")

	// ErrAlreadyConnected is returned by Connect while a connection is
	// live or a handshake is in flight.
	ErrAlreadyConnected = errors.New("client is already connected")
)

// Client multiplexes server-pushed CMS events over a single WebSocket
// connection. It owns the connection lifecycle: dialing, heartbeat
// keep-alive, reconnection with capped backoff, and resubscription of
// the desired channel set after every successful (re)connect.
//
// All methods are safe for concurrent use. Listener dispatch runs
// synchronously on the read loop, preserving transport delivery order.
type Client struct {
	endpoint      EndpointProvider
	tokenProvider TokenProvider
	logger        *zap.Logger
	dialTimeout   time.Duration
	writeTimeout  time.Duration
	policy        ReconnectPolicy
	metrics       *clientMetrics
	tracing       o11y.TracingProvider

	dispatcher *Dispatcher
	registry   *channelRegistry
	heartbeat  *heartbeat

	// Client lifetime; cancelled by Disconnect.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      ConnState
	conn       *websocket.Conn
	connID     string
	gen        uint64 // bumped per live connection so stale read loops are ignored
	attempts   int
	retryTimer *time.Timer
	closed     bool

	// Serializes writes to the connection.
	writeMu sync.Mutex
}

// Connect opens the WebSocket connection. The endpoint comes from the
// configured URL or EndpointProvider, with the bearer token appended as
// a token query parameter.
//
// A dial failure is not returned to the caller: transport errors are
// always handled by the reconnect path and surfaced as "connection"
// events (StatusReconnecting, then StatusConnected or StatusFailed).
// Connect returns an error only for misuse: ErrClosed after Disconnect,
// ErrAlreadyConnected while a connection is live, a handshake is
// already in flight, or a reconnect is pending. A Connect after the
// retry budget was exhausted starts over with a fresh attempt count.
func (c *Client) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.attempts = 0
	c.state = StateConnecting
	c.mu.Unlock()

	if c.tracing != nil {
		var span o11y.Span
		ctx, span = c.tracing.StartSpan(ctx, "realtime.connect")
		defer span.End()
	}

	c.dial(ctx)
	return nil
}

// Disconnect closes the client for good: it cancels any pending
// reconnect, stops the heartbeat, closes the socket, and clears the
// channel registry and all listeners. After Disconnect returns, no
// reconnect is ever scheduled and no event is ever delivered. It is
// idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.gen++ // read loop for the old connection reports into the void
	c.mu.Unlock()

	c.heartbeat.stop()
	c.cancel()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	c.registry.clear()
	c.dispatcher.Clear()

	c.logger.Info("client disconnected")
	return nil
}

// Subscribe adds a channel to the desired set. If connected, a
// subscribe frame is sent immediately; otherwise the channel is picked
// up by the full resync on the next successful open.
func (c *Client) Subscribe(channel string) {
	if c.isClosed() {
		return
	}
	if !c.registry.add(channel) {
		return
	}
	c.metrics.channelCount(c.ctx, c.registry.len())
	c.sendFrame(controlFrame{Type: FrameTypeSubscribe, Channel: channel})
}

// Unsubscribe removes a channel from the desired set and, if connected,
// tells the server immediately.
func (c *Client) Unsubscribe(channel string) {
	if c.isClosed() {
		return
	}
	if !c.registry.remove(channel) {
		return
	}
	c.metrics.channelCount(c.ctx, c.registry.len())
	c.sendFrame(controlFrame{Type: FrameTypeUnsubscribe, Channel: channel})
}

// On registers a handler for an event type and returns its disposer.
// Use EventTypeConnection to observe connection lifecycle changes.
func (c *Client) On(eventType string, handler Handler) func() {
	return c.dispatcher.On(eventType, handler)
}

// OnAny registers a handler invoked for every delivered event.
func (c *Client) OnAny(handler AnyHandler) func() {
	return c.dispatcher.OnAny(handler)
}

// IsConnected reports whether a connection is currently live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// State returns the current connection state, letting consumers
// distinguish a reconnecting client from a permanently offline one.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Channels returns the desired channel set, sorted.
func (c *Client) Channels() []string {
	return c.registry.snapshot()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// dial performs one connection attempt. On success it wires the read
// loop and heartbeat; on failure it hands off to the retry schedule.
// The caller must have set the state to StateConnecting.
func (c *Client) dial(ctx context.Context) {
	start := time.Now()

	endpoint, err := c.buildEndpoint(ctx)
	if err == nil {
		dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
		var conn *websocket.Conn
		conn, _, err = websocket.Dial(dialCtx, endpoint, nil)
		cancel()
		if err == nil {
			c.metrics.connected(c.ctx, time.Since(start))
			c.finishOpen(conn)
			return
		}
	}

	c.logger.Warn("dial failed", zap.Error(err))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	statuses := c.scheduleRetryLocked()
	c.mu.Unlock()

	c.emitStatuses(statuses)
}

// finishOpen completes a successful dial: resync the desired channel
// set, start the heartbeat and read loop, and announce the connection.
func (c *Client) finishOpen(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
		return
	}
	replaced := c.conn
	c.conn = conn
	c.connID = uuid.NewString()
	c.state = StateConnected
	c.attempts = 0
	c.gen++
	gen := c.gen
	connID := c.connID
	c.mu.Unlock()

	// Bumping gen above already silences a replaced connection's read
	// loop; closing it keeps the socket count at one.
	if replaced != nil {
		replaced.Close(websocket.StatusNormalClosure, "connection replaced")
	}

	c.logger.Info("connected", zap.String("connId", connID))

	// Full resync, not a diff: the server treats duplicate subscribes
	// as idempotent.
	for _, channel := range c.registry.snapshot() {
		c.sendFrame(controlFrame{Type: FrameTypeSubscribe, Channel: channel})
	}

	c.heartbeat.start()
	go c.readLoop(conn, gen)

	// A Disconnect racing in since the state flip above has already
	// closed the socket, but its heartbeat.stop() may have run before
	// the start; re-check so the heartbeat never outlives the client.
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.heartbeat.stop()
		return
	}

	c.emitStatuses([]ConnectionStatus{{Status: StatusConnected}})
}

// readLoop pumps inbound frames until the connection dies.
func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame parses one inbound frame and dispatches it by type.
// Malformed or type-less frames are dropped silently; the connection
// stays open.
func (c *Client) handleFrame(data []byte) {
	c.metrics.frameReceived(c.ctx)

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.metrics.frameDropped(c.ctx, "unparsable")
		c.logger.Debug("dropping unparsable frame", zap.Error(err))
		return
	}
	if env.Type == "" {
		c.metrics.frameDropped(c.ctx, "untyped")
		c.logger.Debug("dropping frame without type")
		return
	}

	if env.Type == FrameTypePong {
		c.heartbeat.pong()
	}

	c.metrics.eventDispatched(c.ctx, env.Type)
	c.dispatcher.Emit(env.Type, env.Data)
}

// handleClose runs when a read loop dies. Stale generations are
// ignored, so a close from a connection that has already been replaced
// cannot disturb the current one.
func (c *Client) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	statuses := []ConnectionStatus{{Status: StatusDisconnected}}
	statuses = append(statuses, c.scheduleRetryLocked()...)
	c.mu.Unlock()

	c.heartbeat.stop()
	c.logger.Warn("connection lost", zap.Error(err))
	c.emitStatuses(statuses)
}

// scheduleRetryLocked arms the reconnect timer, or reports terminal
// failure when the attempt budget is spent. Caller holds c.mu. At most
// one retry timer is pending at a time, and none is ever armed after
// Disconnect.
func (c *Client) scheduleRetryLocked() []ConnectionStatus {
	if c.closed || c.retryTimer != nil {
		return nil
	}
	if c.attempts >= c.policy.MaxAttempts {
		c.logger.Error("reconnect attempts exhausted, giving up",
			zap.Int("attempts", c.attempts),
		)
		return []ConnectionStatus{{Status: StatusFailed}}
	}

	c.attempts++
	attempt := c.attempts
	delay := c.policy.Delay(attempt)
	c.state = StateReconnecting
	c.metrics.reconnectAttempt(c.ctx)
	c.retryTimer = time.AfterFunc(delay, c.retryNow)

	c.logger.Info("reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)
	return []ConnectionStatus{{Status: StatusReconnecting, Attempt: attempt}}
}

func (c *Client) retryNow() {
	c.mu.Lock()
	c.retryTimer = nil
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()

	c.dial(c.ctx)
}

// sendFrame writes a control frame if the connection is open; otherwise
// the frame is dropped, not queued. Write errors are left to the read
// loop, which notices the dead connection and triggers reconnection.
func (c *Client) sendFrame(frame controlFrame) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		c.logger.Debug("not connected, dropping frame", zap.String("type", frame.Type))
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("failed to marshal frame", zap.Error(err))
		return
	}

	writeCtx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
	defer cancel()

	c.writeMu.Lock()
	err = conn.Write(writeCtx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug("write failed", zap.String("type", frame.Type), zap.Error(err))
	}
}

func (c *Client) sendPing() {
	c.metrics.pingSent(c.ctx)
	c.sendFrame(controlFrame{Type: FrameTypePing})
}

// expireConn force-closes the current connection when the heartbeat
// declares it dead; the read loop then drives the reconnect path.
func (c *Client) expireConn() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
	}
}

func (c *Client) emitStatuses(statuses []ConnectionStatus) {
	for _, status := range statuses {
		c.dispatcher.Emit(EventTypeConnection, status)
	}
}

// buildEndpoint resolves the endpoint URL and appends the bearer token
// as a token query parameter.
func (c *Client) buildEndpoint(ctx context.Context) (string, error) {
	base, err := c.endpoint(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to resolve endpoint: %w", err)
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", base, err)
	}

	if c.tokenProvider != nil {
		token, err := c.tokenProvider(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to resolve token: %w", err)
		}
		if token != "" {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
		}
	}

	return u.String(), nil
}
