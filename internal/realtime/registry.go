package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/desertthunder/listsync/internal/shared"
)

// AckState tracks the server's answer to the latest subscribe emission.
type AckState int

const (
	AckPending AckState = iota
	AckConfirmed
	AckRejected
)

func (s AckState) String() string {
	switch s {
	case AckConfirmed:
		return "confirmed"
	case AckRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// emitter is the part of [Connection] the registry needs.
type emitter interface {
	Live() (uint64, bool)
	Emit(event string, payload any, ack AckFunc) error
}

// registry tracks every open subscription and (re)issues subscribe requests.
// It outlives individual connection handles.
type registry struct {
	mu         sync.Mutex
	subs       []*Subscription
	dispatcher *Dispatcher
	current    func() emitter
	logger     *log.Logger
}

// Subscription is one caller's interest in one list. Each call to
// [Session.Subscribe] yields an independent Subscription, even for the same list.
type Subscription struct {
	id         uuid.UUID
	listID     string
	shareToken string
	reg        *registry
	slot       *slot

	// guarded by reg.mu
	closed bool

	// sendMu orders the subscribe and unsubscribe emissions of this
	// subscription and guards emittedGen.
	sendMu     sync.Mutex
	emittedGen uint64

	ackMu  sync.Mutex
	ackGen uint64
	ack    AckState
	ackErr string
}

func newRegistry(d *Dispatcher, current func() emitter, logger *log.Logger) *registry {
	return &registry{dispatcher: d, current: current, logger: logger}
}

// subscribe attaches h and emits a subscribe request when the connection is
// live. An empty listID yields nil.
func (r *registry) subscribe(listID, shareToken string, h Handlers) *Subscription {
	if listID == "" {
		r.logger.Debug("no list id, skipping subscription")
		return nil
	}

	sub := &Subscription{
		id:         uuid.New(),
		listID:     listID,
		shareToken: shareToken,
		reg:        r,
	}
	sub.slot = r.dispatcher.attach(sub.id, h)

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	if e := r.current(); e != nil {
		if _, live := e.Live(); !live {
			r.logger.Debug("waiting for connection", "list", listID, "subscription", sub.id)
		}
		r.emit(sub, e)
	}
	return sub
}

// resubscribe emits subscribe for every subscription not yet sent on the
// current connection.
func (r *registry) resubscribe() {
	e := r.current()
	if e == nil {
		return
	}

	r.mu.Lock()
	subs := append([]*Subscription(nil), r.subs...)
	r.mu.Unlock()

	for _, sub := range subs {
		r.emit(sub, e)
	}
}

// emit sends the subscribe request for sub at most once per connection.
// Only sub.sendMu is held while emitting, so a stalled transport delays
// this subscription alone.
func (r *registry) emit(sub *Subscription, e emitter) {
	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()

	gen, live := e.Live()
	r.mu.Lock()
	closed := sub.closed
	r.mu.Unlock()
	if !live || closed || sub.emittedGen == gen {
		return
	}

	sub.ackMu.Lock()
	sub.ackGen = gen
	sub.ack = AckPending
	sub.ackErr = ""
	sub.ackMu.Unlock()

	req := SubscribeRequest{ListID: sub.listID, ShareToken: sub.shareToken}
	err := e.Emit(EmitSubscribe, req, func(reply json.RawMessage, err error) {
		sub.acknowledge(gen, reply, err)
	})
	if err != nil {
		r.logger.Debug("subscribe deferred", "list", sub.listID, "err", err)
		return
	}

	sub.emittedGen = gen
	r.logger.Debug("subscribe sent", "list", sub.listID, "subscription", sub.id, "shared", sub.shareToken != "")
}

// remove unlinks sub and reports whether it was still open.
func (r *registry) remove(sub *Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.closed {
		return false
	}
	sub.closed = true
	for i, v := range r.subs {
		if v == sub {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			break
		}
	}
	return true
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (s *Subscription) acknowledge(gen uint64, reply json.RawMessage, err error) {
	s.ackMu.Lock()
	if gen != s.ackGen {
		s.ackMu.Unlock()
		return
	}
	switch {
	case errors.Is(err, shared.ErrAckRejected):
		s.ack = AckRejected
		s.ackErr = err.Error()
	case err != nil:
		s.ackErr = err.Error()
	case ackError(reply) != "":
		s.ack = AckRejected
		s.ackErr = ackError(reply)
	default:
		s.ack = AckConfirmed
	}
	state, msg := s.ack, s.ackErr
	s.ackMu.Unlock()

	switch state {
	case AckConfirmed:
		s.reg.logger.Debug("subscribe acknowledged", "list", s.listID, "subscription", s.id)
	default:
		s.reg.logger.Warn("subscribe not confirmed", "list", s.listID, "subscription", s.id, "state", state, "reason", msg)
	}
}

// ID uniquely identifies the subscription. It is the zero UUID on a nil Subscription.
func (s *Subscription) ID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.id
}

// ListID is the list this subscription follows.
func (s *Subscription) ListID() string {
	if s == nil {
		return ""
	}
	return s.listID
}

// ShareToken is the token used for shopkeeper access, or "".
func (s *Subscription) ShareToken() string {
	if s == nil {
		return ""
	}
	return s.shareToken
}

// Ack returns the acknowledgement state of the latest subscribe emission and
// the server's reason when it was not confirmed.
func (s *Subscription) Ack() (AckState, string) {
	if s == nil {
		return AckPending, ""
	}
	s.ackMu.Lock()
	defer s.ackMu.Unlock()
	return s.ack, s.ackErr
}

// Active reports whether Close has not been called yet.
func (s *Subscription) Active() bool {
	if s == nil {
		return false
	}
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return !s.closed
}

// SetHandlers replaces the callbacks without resubscribing. Events dispatched
// afterwards reach h.
func (s *Subscription) SetHandlers(h Handlers) {
	if s == nil {
		return
	}
	s.slot.set(h)
}

// Close detaches the handlers, then attempts an unsubscribe emission whether
// or not the subscribe ever reached the server. Events dispatched after Close
// returns never reach this subscription's handlers; a handler call already in
// flight on the connection goroutine may still finish. Close does not wait for
// it, so handlers may close their own subscription. Close is idempotent and
// safe on a nil Subscription.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.reg.dispatcher.detach(s.slot)
	if !s.reg.remove(s) {
		return
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	e := s.reg.current()
	if e == nil {
		s.reg.logger.Debug("unsubscribe skipped, no connection", "list", s.listID)
		return
	}

	listID := s.listID
	logger := s.reg.logger
	err := e.Emit(EmitUnsubscribe, UnsubscribeRequest{ListID: listID}, func(reply json.RawMessage, err error) {
		if err != nil {
			logger.Debug("unsubscribe not acknowledged", "list", listID, "err", err)
			return
		}
		logger.Debug("unsubscribe acknowledged", "list", listID)
	})
	if err != nil {
		logger.Debug("unsubscribe not delivered", "list", listID, "err", err)
	}
}
