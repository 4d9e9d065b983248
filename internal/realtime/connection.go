package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/listsync/internal/shared"
)

// generations numbers every dial attempt process-wide, so a subscription can
// tell apart connections even across separate handles.
var generations atomic.Uint64

// connObserver is told about lifecycle transitions. Calls arrive on the
// connection loop, in order.
type connObserver interface {
	connected(gen uint64)
	disconnected(reason string)
	failed(err error)
}

// Connection is the shared handle to the realtime endpoint. It owns the
// redial policy: a dropped or failed transport is replaced after a backoff
// delay, indefinitely, until Close.
type Connection struct {
	endpoint string
	dialer   Dialer
	backoff  Backoff
	logger   *log.Logger
	observer connObserver
	events   func(kind EventKind, payload json.RawMessage)
	loop     *loop
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	state   ConnState
	conn    Conn
	gen     uint64
	attempt int
	timer   *time.Timer
	closed  bool
	// hooks that fired for the current dial before Dial returned
	earlyConnect bool
	earlyDrop    *string
	earlyCause   error
}

func newConnection(endpoint string, dialer Dialer, backoff Backoff, logger *log.Logger, observer connObserver, events func(EventKind, json.RawMessage)) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		endpoint: endpoint,
		dialer:   dialer,
		backoff:  backoff,
		logger:   logger,
		observer: observer,
		events:   events,
		loop:     newLoop(loopQueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Endpoint returns the URL this connection dials.
func (c *Connection) Endpoint() string { return c.endpoint }

// State reports the current lifecycle state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Live returns the generation of the current transport and whether it is connected.
func (c *Connection) Live() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, c.state == StateConnected && c.conn != nil
}

// Emit sends an event over the current transport. It fails with
// [shared.ErrNotConnected] unless the connection is live.
func (c *Connection) Emit(event string, payload any, ack AckFunc) error {
	c.mu.Lock()
	conn := c.conn
	live := c.state == StateConnected && conn != nil
	c.mu.Unlock()

	if !live {
		return shared.ErrNotConnected
	}
	return conn.Emit(event, payload, ack)
}

// Close tears the connection down and stops redialing. It is idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateDisconnected
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()
	c.loop.stop()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// start begins a new dial attempt.
func (c *Connection) start() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.gen = generations.Add(1)
	c.state = StateConnecting
	c.earlyConnect = false
	c.earlyDrop = nil
	c.earlyCause = nil
	gen := c.gen
	c.mu.Unlock()

	c.logger.Debug("dialing realtime endpoint", "endpoint", c.endpoint, "generation", gen)
	go c.dial(gen)
}

func (c *Connection) dial(gen uint64) {
	conn, err := c.dialer.Dial(c.ctx, c.endpoint, c.hooks(gen))
	if !c.loop.do(func() { c.attach(gen, conn, err) }) && conn != nil {
		conn.Close()
	}
}

func (c *Connection) hooks(gen uint64) ConnHooks {
	return ConnHooks{
		OnConnect: func() {
			c.loop.do(func() { c.handleConnect(gen) })
		},
		OnDisconnect: func(reason string) {
			c.loop.do(func() { c.handleDrop(gen, reason, nil) })
		},
		OnError: func(err error) {
			c.loop.do(func() { c.handleError(gen, err) })
		},
		OnEvent: func(kind EventKind, payload json.RawMessage) {
			c.loop.do(func() { c.handleEvent(gen, kind, payload) })
		},
	}
}

// current reports whether gen is the live attempt. Callers hold c.mu.
func (c *Connection) current(gen uint64) bool {
	return !c.closed && gen == c.gen
}

func (c *Connection) attach(gen uint64, conn Conn, err error) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		c.state = StateDisconnected
		delay := c.scheduleRedial()
		c.mu.Unlock()
		c.logger.Error("realtime dial failed", "endpoint", c.endpoint, "err", err, "retry_in", delay)
		c.observer.failed(err)
		return
	}

	if c.earlyDrop != nil {
		reason, cause := *c.earlyDrop, c.earlyCause
		c.state = StateDisconnected
		delay := c.scheduleRedial()
		c.mu.Unlock()
		conn.Close()
		c.reportDrop(reason, cause, delay)
		return
	}

	c.conn = conn
	if !c.earlyConnect {
		c.mu.Unlock()
		return
	}
	c.markConnected()
	c.mu.Unlock()
	c.announce(gen)
}

func (c *Connection) handleConnect(gen uint64) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return
	}
	if c.conn == nil {
		c.earlyConnect = true
		c.mu.Unlock()
		return
	}
	c.markConnected()
	c.mu.Unlock()
	c.announce(gen)
}

// markConnected flips to connected and resets the redial counter. Callers hold c.mu.
func (c *Connection) markConnected() {
	c.state = StateConnected
	c.attempt = 0
}

func (c *Connection) announce(gen uint64) {
	c.logger.Info("realtime connected", "endpoint", c.endpoint, "generation", gen)
	c.observer.connected(gen)
}

// handleDrop retires the transport of gen and schedules a redial. cause is
// set when the drop came from a transport error.
func (c *Connection) handleDrop(gen uint64, reason string, cause error) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return
	}
	if c.conn == nil {
		if c.earlyDrop == nil {
			c.earlyDrop = &reason
			c.earlyCause = cause
		}
		c.mu.Unlock()
		return
	}

	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	delay := c.scheduleRedial()
	c.mu.Unlock()

	conn.Close()
	c.reportDrop(reason, cause, delay)
}

func (c *Connection) reportDrop(reason string, cause error, delay time.Duration) {
	if cause != nil {
		c.logger.Error("realtime connection failed", "err", cause, "retry_in", delay)
		c.observer.failed(cause)
		return
	}
	c.logger.Warn("realtime disconnected", "reason", reason, "retry_in", delay)
	c.observer.disconnected(reason)
}

// handleError reports transport errors. An error before the transport is
// connected ends that attempt.
func (c *Connection) handleError(gen uint64, err error) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return
	}
	connecting := c.state != StateConnected
	c.mu.Unlock()

	if connecting {
		c.handleDrop(gen, err.Error(), err)
		return
	}
	c.logger.Error("realtime transport error", "err", err)
	c.observer.failed(err)
}

func (c *Connection) handleEvent(gen uint64, kind EventKind, payload json.RawMessage) {
	c.mu.Lock()
	ok := c.current(gen) && c.conn != nil
	c.mu.Unlock()
	if ok && c.events != nil {
		c.events(kind, payload)
	}
}

// scheduleRedial arms the redial timer. Callers hold c.mu.
func (c *Connection) scheduleRedial() time.Duration {
	delay := c.backoff.Delay(c.attempt)
	c.attempt++
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, c.start)
	return delay
}

// flush waits until everything queued on the loop so far has run.
func (c *Connection) flush() {
	c.loop.call(func() {})
}
