package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	socket "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// SocketIODialer connects through Socket.IO, preferring the websocket
// transport and falling back to long polling. The endpoint path selects the
// namespace, e.g. http://localhost:3000/realtime.
type SocketIODialer struct {
	// Path is the engine path on the server; defaults to "/socket.io/".
	Path string
	// Auth is sent with the handshake when non-empty.
	Auth map[string]any
}

// Dial implements [Dialer].
func (d *SocketIODialer) Dial(ctx context.Context, endpoint string, hooks ConnHooks) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := socket.DefaultOptions()
	if d.Path != "" {
		opts.SetPath(d.Path)
	}
	opts.SetTransports(types.NewSet(socket.WebSocket, socket.Polling))
	// Redial is driven by Connection, so each attempt gets a fresh manager.
	opts.SetReconnection(false)
	opts.SetForceNew(true)
	if len(d.Auth) > 0 {
		opts.SetAuth(d.Auth)
	}

	sock, err := socket.Connect(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	sock.On(types.EventName("connect"), func(args ...any) {
		if hooks.OnConnect != nil {
			hooks.OnConnect()
		}
	})

	sock.On(types.EventName("disconnect"), func(args ...any) {
		reason := ""
		if len(args) > 0 {
			if r, ok := args[0].(string); ok {
				reason = r
			}
		}
		if hooks.OnDisconnect != nil {
			hooks.OnDisconnect(reason)
		}
	})

	sock.On(types.EventName("connect_error"), func(args ...any) {
		if hooks.OnError != nil {
			hooks.OnError(argError(args))
		}
	})

	for _, kind := range InboundEvents {
		k := kind
		sock.On(types.EventName(k), func(args ...any) {
			if hooks.OnEvent != nil {
				hooks.OnEvent(k, encodeArgs(args))
			}
		})
	}

	return &socketIOConn{sock: sock}, nil
}

type socketIOConn struct {
	sock *socket.Socket
}

func (c *socketIOConn) Emit(event string, payload any, ack AckFunc) error {
	data, err := toWire(payload)
	if err != nil {
		return err
	}

	if ack == nil {
		c.sock.Emit(event, data)
		return nil
	}

	c.sock.Emit(event, data, func(args []any, err error) {
		if err != nil {
			ack(nil, err)
			return
		}
		ack(encodeArgs(args), nil)
	})
	return nil
}

func (c *socketIOConn) Close() error {
	c.sock.Disconnect()
	return nil
}

// toWire converts payload into the generic map form the socket.io encoder expects.
func toWire(payload any) (any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}

// encodeArgs re-encodes the first event argument as JSON. Missing or
// unencodable arguments yield nil.
func encodeArgs(args []any) json.RawMessage {
	if len(args) == 0 || args[0] == nil {
		return nil
	}
	raw, err := json.Marshal(args[0])
	if err != nil {
		return nil
	}
	return raw
}

func argError(args []any) error {
	if len(args) == 0 {
		return errors.New("connect error")
	}
	switch v := args[0].(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("connect error: %v", v)
	}
}
