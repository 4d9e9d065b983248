package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// slot is the dispatcher entry of one subscription.
type slot struct {
	id       uuid.UUID
	mu       sync.RWMutex
	handlers Handlers
	detached atomic.Bool
}

func (s *slot) get() Handlers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers
}

func (s *slot) set(h Handlers) {
	s.mu.Lock()
	s.handlers = h
	s.mu.Unlock()
}

// Dispatcher routes inbound events to every attached handler set in
// attachment order. Payloads are passed through untouched.
type Dispatcher struct {
	mu     sync.RWMutex
	slots  []*slot
	logger *log.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

func (d *Dispatcher) attach(id uuid.UUID, h Handlers) *slot {
	s := &slot{id: id, handlers: h}
	d.mu.Lock()
	d.slots = append(d.slots, s)
	d.mu.Unlock()
	return s
}

// detach marks s dead before unlinking it, so a dispatch already holding a
// copy of the slot list skips it.
func (d *Dispatcher) detach(s *slot) {
	if s == nil || s.detached.Swap(true) {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, v := range d.slots {
		if v == s {
			d.slots = append(d.slots[:i:i], d.slots[i+1:]...)
			return
		}
	}
}

// Len returns the number of attached handler sets.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.slots)
}

// Dispatch delivers payload to the kind handler of every attached slot. A slot
// detached before Dispatch reaches it is skipped; detach does not wait for a
// handler that is already running.
func (d *Dispatcher) Dispatch(kind EventKind, payload json.RawMessage) {
	d.mu.RLock()
	slots := make([]*slot, len(d.slots))
	copy(slots, d.slots)
	d.mu.RUnlock()

	if d.logger != nil {
		d.logger.Debug("dispatching event", "event", kind, "subscribers", len(slots))
	}

	for _, s := range slots {
		if s.detached.Load() {
			continue
		}
		h := s.get().For(kind)
		if h == nil {
			continue
		}
		d.invoke(s.id, kind, h, payload)
	}
}

func (d *Dispatcher) invoke(id uuid.UUID, kind EventKind, h Handler, payload json.RawMessage) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Error("event handler panicked", "event", kind, "subscription", id, "panic", fmt.Sprint(r))
		}
	}()
	h(payload)
}
