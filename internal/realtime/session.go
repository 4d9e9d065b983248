package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/listsync/internal/shared"
)

// DefaultEndpoint is dialed when no endpoint is configured.
const DefaultEndpoint = "http://localhost:3000/realtime"

// Listener receives connection lifecycle notifications. Methods are called
// from the connection goroutine and must not block.
type Listener interface {
	// OnConnected is called after a transport becomes live.
	OnConnected()
	// OnDisconnected is called after a live transport drops.
	OnDisconnected(reason string)
	// OnError delivers dial and transport failures. They are retried internally.
	OnError(err error)
}

// Options configures a [Session].
type Options struct {
	Endpoint string
	Dialer   Dialer
	Backoff  Backoff
	Logger   *log.Logger
	Listener Listener
}

// Session is the application-wide realtime entry point. It owns the shared
// [Connection] handle and the subscription registry.
type Session struct {
	endpoint   string
	dialer     Dialer
	backoff    Backoff
	logger     *log.Logger
	listener   Listener
	dispatcher *Dispatcher
	registry   *registry

	mu   sync.Mutex
	conn *Connection
	// changed is closed and replaced on every lifecycle transition.
	changed chan struct{}
}

// NewSession creates a Session. No connection is opened until it is needed.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	logger = shared.WithLogger(logger, "component", "realtime")

	s := &Session{
		endpoint: opts.Endpoint,
		dialer:   opts.Dialer,
		backoff:  opts.Backoff,
		logger:   logger,
		listener: opts.Listener,
		changed:  make(chan struct{}),
	}
	if s.endpoint == "" {
		s.endpoint = DefaultEndpoint
	}
	if s.dialer == nil {
		s.dialer = &SocketIODialer{}
	}
	s.dispatcher = NewDispatcher(logger)
	s.registry = newRegistry(s.dispatcher, s.current, logger)
	return s
}

// Handle returns the shared connection, creating and dialing it on first use.
// Every caller gets the same handle until [Session.Close].
func (s *Session) Handle() *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn
	}

	s.logger.Info("opening realtime connection", "endpoint", s.endpoint)
	s.conn = newConnection(s.endpoint, s.dialer, s.backoff, s.logger, s, s.dispatch)
	s.conn.start()
	return s.conn
}

// Close disconnects and clears the shared handle. Open subscriptions are kept
// and resubscribed once a later Handle call connects again.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	s.logger.Info("closing realtime connection", "endpoint", s.endpoint)
	err := conn.Close()
	s.notify()
	return err
}

// State reports the state of the shared handle; disconnected when there is none.
func (s *Session) State() ConnState {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return StateDisconnected
	}
	return conn.State()
}

// SubscribeOption customizes a subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	shareToken string
}

// WithShareToken authorizes the subscription with a public share token.
func WithShareToken(token string) SubscribeOption {
	return func(o *subscribeOptions) { o.shareToken = token }
}

// Subscribe registers h for events while following listID. The returned
// subscription must be closed by its owner. An empty listID registers
// nothing and returns nil, whose Close is a no-op.
func (s *Session) Subscribe(listID string, h Handlers, opts ...SubscribeOption) *Subscription {
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if listID == "" {
		return s.registry.subscribe("", o.shareToken, h)
	}

	s.Handle()
	return s.registry.subscribe(listID, o.shareToken, h)
}

// Subscriptions returns the number of open subscriptions.
func (s *Session) Subscriptions() int {
	return s.registry.len()
}

// WaitConnected blocks until the shared connection is live or ctx is done.
// It does not open a connection.
func (s *Session) WaitConnected(ctx context.Context) error {
	for {
		s.mu.Lock()
		changed, conn := s.changed, s.conn
		s.mu.Unlock()

		if conn != nil && conn.State() == StateConnected {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// notify wakes every WaitConnected caller to check the state again.
func (s *Session) notify() {
	s.mu.Lock()
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

func (s *Session) current() emitter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn
}

func (s *Session) dispatch(kind EventKind, payload json.RawMessage) {
	s.dispatcher.Dispatch(kind, payload)
}

func (s *Session) connected(uint64) {
	s.registry.resubscribe()
	s.notify()
	if s.listener != nil {
		s.listener.OnConnected()
	}
}

func (s *Session) disconnected(reason string) {
	s.notify()
	if s.listener != nil {
		s.listener.OnDisconnected(reason)
	}
}

func (s *Session) failed(err error) {
	s.notify()
	if s.listener != nil {
		s.listener.OnError(err)
	}
}
