package realtime

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/listsync/internal/shared"
)

// stallingEmitter blocks subscribe emissions for list "slow" until release is closed.
type stallingEmitter struct {
	live    atomic.Bool
	release chan struct{}

	mu     sync.Mutex
	events []string
}

func newStallingEmitter(live bool) *stallingEmitter {
	e := &stallingEmitter{release: make(chan struct{})}
	e.live.Store(live)
	return e
}

func (e *stallingEmitter) Live() (uint64, bool) { return 1, e.live.Load() }

func (e *stallingEmitter) Emit(event string, payload any, ack AckFunc) error {
	var listID string
	switch req := payload.(type) {
	case SubscribeRequest:
		listID = req.ListID
		if listID == "slow" {
			<-e.release
		}
	case UnsubscribeRequest:
		listID = req.ListID
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event+" "+listID)
	return nil
}

func (e *stallingEmitter) got() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func newStallingRegistry(e *stallingEmitter) *registry {
	return newRegistry(NewDispatcher(nil), func() emitter { return e }, shared.DiscardLogger())
}

func TestRegistryStalledEmit(t *testing.T) {
	t.Run("does not block other subscriptions", func(t *testing.T) {
		e := newStallingEmitter(true)
		r := newStallingRegistry(e)

		slow := make(chan *Subscription, 1)
		go func() { slow <- r.subscribe("slow", "", Handlers{}) }()
		require.Eventually(t, func() bool { return r.len() == 1 }, time.Second, time.Millisecond)

		done := make(chan struct{})
		go func() {
			r.subscribe("fast", "", Handlers{}).Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("subscribe and close waited on another subscription's emit")
		}

		close(e.release)
		(<-slow).Close()
		assert.Equal(t, []string{
			EmitSubscribe + " fast",
			EmitUnsubscribe + " fast",
			EmitSubscribe + " slow",
			EmitUnsubscribe + " slow",
		}, e.got())
	})

	t.Run("close waits for the subscription's own subscribe", func(t *testing.T) {
		e := newStallingEmitter(false)
		r := newStallingRegistry(e)
		sub := r.subscribe("slow", "", Handlers{})
		assert.Empty(t, e.got())

		e.live.Store(true)
		go r.resubscribe()

		closed := make(chan struct{})
		go func() {
			time.Sleep(10 * time.Millisecond)
			sub.Close()
			close(closed)
		}()

		select {
		case <-closed:
			// Close won the race; the subscribe must then be skipped.
			close(e.release)
		case <-time.After(50 * time.Millisecond):
			close(e.release)
			<-closed
		}

		require.Eventually(t, func() bool { return len(e.got()) > 0 }, time.Second, time.Millisecond)
		got := e.got()
		assert.Equal(t, EmitUnsubscribe+" slow", got[len(got)-1])
		assert.LessOrEqual(t, len(got), 2)
	})
}
