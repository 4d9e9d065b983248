package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/desertthunder/listsync/internal/shared"
)

func TestDispatcher(t *testing.T) {
	t.Run("delivers to every attached handler in attachment order", func(t *testing.T) {
		d := NewDispatcher(shared.DiscardLogger())
		var order []string
		d.attach(uuid.New(), Handlers{OnItemUpdated: func(json.RawMessage) { order = append(order, "a") }})
		d.attach(uuid.New(), Handlers{OnItemUpdated: func(json.RawMessage) { order = append(order, "b") }})
		d.attach(uuid.New(), Handlers{OnListUpdated: func(json.RawMessage) { order = append(order, "c") }})

		d.Dispatch(EventItemUpdated, json.RawMessage(`{}`))
		assert.Equal(t, []string{"a", "b"}, order)
	})

	t.Run("passes payloads through untouched", func(t *testing.T) {
		d := NewDispatcher(nil)
		var got json.RawMessage
		d.attach(uuid.New(), Handlers{OnShareAccepted: func(p json.RawMessage) { got = p }})

		payload := json.RawMessage(`{"shopkeeperName":"Corner Shop","extra":[1,2]}`)
		d.Dispatch(EventShareAccepted, payload)
		assert.Equal(t, string(payload), string(got))
	})

	t.Run("skips detached slots", func(t *testing.T) {
		d := NewDispatcher(nil)
		var rec recorder
		s := d.attach(uuid.New(), Handlers{OnItemUpdated: rec.handle})
		d.detach(s)
		d.detach(s)

		d.Dispatch(EventItemUpdated, json.RawMessage(`{}`))
		assert.Empty(t, rec.got())
		assert.Equal(t, 0, d.Len())
	})

	t.Run("detaching during dispatch stops later deliveries to that slot", func(t *testing.T) {
		d := NewDispatcher(nil)
		var rec recorder
		var victim *slot
		d.attach(uuid.New(), Handlers{OnItemUpdated: func(json.RawMessage) { d.detach(victim) }})
		victim = d.attach(uuid.New(), Handlers{OnItemUpdated: rec.handle})

		d.Dispatch(EventItemUpdated, json.RawMessage(`{}`))
		assert.Empty(t, rec.got())
	})

	t.Run("handler can detach its own slot", func(t *testing.T) {
		d := NewDispatcher(nil)
		var self *slot
		calls := 0
		self = d.attach(uuid.New(), Handlers{OnItemUpdated: func(json.RawMessage) {
			calls++
			d.detach(self)
		}})

		d.Dispatch(EventItemUpdated, json.RawMessage(`{}`))
		d.Dispatch(EventItemUpdated, json.RawMessage(`{}`))
		assert.Equal(t, 1, calls)
		assert.Equal(t, 0, d.Len())
	})

	t.Run("recovers handler panics and keeps delivering", func(t *testing.T) {
		d := NewDispatcher(shared.DiscardLogger())
		var rec recorder
		d.attach(uuid.New(), Handlers{OnListCompleted: func(json.RawMessage) { panic("boom") }})
		d.attach(uuid.New(), Handlers{OnListCompleted: rec.handle})

		assert.NotPanics(t, func() { d.Dispatch(EventListCompleted, json.RawMessage(`{"listId":"1"}`)) })
		assert.Equal(t, []string{`{"listId":"1"}`}, rec.got())
	})

	t.Run("ignores unknown event kinds", func(t *testing.T) {
		d := NewDispatcher(nil)
		d.attach(uuid.New(), Handlers{OnItemUpdated: func(json.RawMessage) { t.Error("unexpected call") }})
		d.Dispatch(EventKind("item.deleted"), nil)
	})

	t.Run("is safe for concurrent attach, detach and dispatch", func(t *testing.T) {
		d := NewDispatcher(nil)
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 100 {
					s := d.attach(uuid.New(), Handlers{OnItemUpdated: func(json.RawMessage) {}})
					d.Dispatch(EventItemUpdated, nil)
					d.detach(s)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 0, d.Len())
	})
}

func TestHandlersFor(t *testing.T) {
	var hit EventKind
	mk := func(k EventKind) Handler { return func(json.RawMessage) { hit = k } }
	h := Handlers{
		OnListUpdated:   mk(EventListUpdated),
		OnItemUpdated:   mk(EventItemUpdated),
		OnListCompleted: mk(EventListCompleted),
		OnShareRevoked:  mk(EventShareRevoked),
		OnShareAccepted: mk(EventShareAccepted),
		OnSubscribed:    mk(EventSubscribed),
		OnUnsubscribed:  mk(EventUnsubscribed),
	}

	for _, kind := range InboundEvents {
		t.Run(string(kind), func(t *testing.T) {
			fn := h.For(kind)
			if assert.NotNil(t, fn) {
				fn(nil)
				assert.Equal(t, kind, hit)
			}
		})
	}

	assert.Nil(t, Handlers{}.For(EventItemUpdated))
}

func TestAckError(t *testing.T) {
	tc := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "empty", reply: "", want: ""},
		{name: "ok body", reply: `{"ok":true}`, want: ""},
		{name: "non-object", reply: `"subscribed"`, want: ""},
		{name: "error string", reply: `{"error":"forbidden"}`, want: "forbidden"},
		{name: "error flag with message", reply: `{"error":true,"message":"share revoked"}`, want: "share revoked"},
		{name: "error flag false", reply: `{"error":false}`, want: ""},
		{name: "error object", reply: `{"error":{"code":403}}`, want: "subscription rejected"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ackError(json.RawMessage(tt.reply)))
		})
	}
}
