package realtime

import (
	"context"
	"encoding/json"
)

// ConnState is the lifecycle state of a [Connection].
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// AckFunc receives the server's acknowledgement of an emission.
// reply is nil when the server acknowledged without a body.
type AckFunc func(reply json.RawMessage, err error)

// Conn is one dialed transport session. It is never reused after a drop.
type Conn interface {
	// Emit sends event with a JSON-encodable payload. ack may be nil.
	Emit(event string, payload any, ack AckFunc) error
	Close() error
}

// ConnHooks are invoked by a [Conn] as its transport changes. They may be
// called from any goroutine, including before Dial returns.
type ConnHooks struct {
	OnConnect    func()
	OnDisconnect func(reason string)
	OnError      func(err error)
	OnEvent      func(kind EventKind, payload json.RawMessage)
}

// Dialer opens transport sessions to a realtime endpoint.
//
// Dial returns once the session is underway; readiness is signalled through
// hooks.OnConnect. Implementations must not reconnect on their own.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, hooks ConnHooks) (Conn, error)
}
