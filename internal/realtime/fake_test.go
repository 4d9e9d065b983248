package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/desertthunder/listsync/internal/shared"
)

type emission struct {
	event   string
	payload any
	ack     AckFunc
}

type fakeConn struct {
	hooks ConnHooks

	mu     sync.Mutex
	emits  []emission
	closed bool
}

func (c *fakeConn) Emit(event string, payload any, ack AckFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return shared.ErrConnectionClosed
	}
	c.emits = append(c.emits, emission{event: event, payload: payload, ack: ack})
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) emitted(event string) []emission {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []emission
	for _, e := range c.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) connect()                   { c.hooks.OnConnect() }
func (c *fakeConn) drop(reason string)         { c.hooks.OnDisconnect(reason) }
func (c *fakeConn) fail(err error)             { c.hooks.OnError(err) }
func (c *fakeConn) push(k EventKind, p string) { c.hooks.OnEvent(k, json.RawMessage(p)) }

// fakeDialer records every dial. Dials fail while failures > 0.
type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	failures int
	attempts int
	// connectOnDial fires OnConnect before Dial returns.
	connectOnDial bool
}

func (d *fakeDialer) Dial(ctx context.Context, endpoint string, hooks ConnHooks) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.failures > 0 {
		d.failures--
		return nil, shared.ErrServiceUnavailable
	}
	c := &fakeConn{hooks: hooks}
	d.conns = append(d.conns, c)
	if d.connectOnDial {
		hooks.OnConnect()
	}
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type fakeListener struct {
	mu          sync.Mutex
	connects    int
	disconnects []string
	errs        []error
}

func (l *fakeListener) OnConnected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connects++
}

func (l *fakeListener) OnDisconnected(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnects = append(l.disconnects, reason)
}

func (l *fakeListener) OnError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *fakeListener) counts() (int, int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connects, len(l.disconnects), len(l.errs)
}

// recorder collects payloads delivered to a handler.
type recorder struct {
	mu       sync.Mutex
	payloads []string
}

func (r *recorder) handle(p json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, string(p))
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.payloads...)
}

func fastBackoff() Backoff {
	return Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}
}

func newTestSession(t *testing.T, d Dialer, l Listener) *Session {
	t.Helper()
	return newSessionAt(t, "http://realtime.test/realtime", d, l)
}

func newSessionAt(t *testing.T, endpoint string, d Dialer, l Listener) *Session {
	t.Helper()
	s := NewSession(Options{Endpoint: endpoint, Dialer: d, Backoff: fastBackoff(), Listener: l})
	t.Cleanup(func() { s.Close() })
	return s
}

// waitDials blocks until the dialer produced n connections and returns the last.
func waitDials(t *testing.T, d *fakeDialer, n int) *fakeConn {
	t.Helper()
	require.Eventually(t, func() bool { return d.dialCount() >= n }, time.Second, time.Millisecond)
	return d.conn(n - 1)
}

func waitState(t *testing.T, s *Session, want ConnState) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want }, time.Second, time.Millisecond)
}

// settle drains the connection loop so queued hooks and events have run.
func settle(s *Session) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.flush()
	}
}
