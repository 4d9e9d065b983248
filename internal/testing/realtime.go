package testing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/desertthunder/listsync/internal/realtime"
)

// Emission is one event sent through a [FakeConn].
type Emission struct {
	Event   string
	Payload any
}

// FakeConn is an in-memory [realtime.Conn]. Emissions are acknowledged
// immediately with Reply.
type FakeConn struct {
	hooks realtime.ConnHooks

	mu     sync.Mutex
	emits  []Emission
	closed bool
	Reply  json.RawMessage
}

func (c *FakeConn) Emit(event string, payload any, ack realtime.AckFunc) error {
	c.mu.Lock()
	c.emits = append(c.emits, Emission{Event: event, Payload: payload})
	reply := c.Reply
	c.mu.Unlock()
	if ack != nil {
		ack(reply, nil)
	}
	return nil
}

func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Emitted returns the emissions of the named event.
func (c *FakeConn) Emitted(event string) []Emission {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Emission
	for _, e := range c.emits {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// Push delivers an inbound event as if the server had sent it.
func (c *FakeConn) Push(kind realtime.EventKind, payload string) {
	c.hooks.OnEvent(kind, json.RawMessage(payload))
}

// Drop simulates the server closing the transport.
func (c *FakeConn) Drop(reason string) {
	c.hooks.OnDisconnect(reason)
}

// FakeDialer is a [realtime.Dialer] whose connections go live immediately.
type FakeDialer struct {
	mu    sync.Mutex
	conns []*FakeConn
}

func (d *FakeDialer) Dial(_ context.Context, _ string, hooks realtime.ConnHooks) (realtime.Conn, error) {
	c := &FakeConn{hooks: hooks}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	hooks.OnConnect()
	return c, nil
}

// Last returns the most recent connection, or nil.
func (d *FakeDialer) Last() *FakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Dials reports how many connections were opened.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// NewFakeSession returns a session over a [FakeDialer] that is closed with the test.
func NewFakeSession(t interface{ Cleanup(func()) }) (*realtime.Session, *FakeDialer) {
	d := &FakeDialer{}
	s := realtime.NewSession(realtime.Options{
		Endpoint: "http://realtime.test/realtime",
		Dialer:   d,
		Backoff:  realtime.Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2},
	})
	t.Cleanup(func() { s.Close() })
	return s, d
}

// Eventually polls cond until it holds or the timeout expires.
func Eventually(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
