package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/desertthunder/listsync/internal/shared"
)

// ackEvent is the envelope event name of acknowledgements.
const ackEvent = "ack"

// Envelope is the JSON frame exchanged by [WebSocketDialer] connections.
//
// Requests that want an acknowledgement set Ack; the server answers with an
// "ack" envelope carrying the same ID and either Data or Error.
type Envelope struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   bool            `json:"ack,omitempty"`
	Error string          `json:"error,omitempty"`
}

// WebSocketDialer connects over a plain websocket using [Envelope] frames,
// for deployments without a Socket.IO gateway.
type WebSocketDialer struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Dial implements [Dialer].
func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string, hooks ConnHooks) (Conn, error) {
	u, err := websocketURL(endpoint)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	ws, _, err := dialer.DialContext(ctx, u, d.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &wsConn{
		ws:           ws,
		hooks:        hooks,
		writeTimeout: d.WriteTimeout,
		pending:      make(map[string]AckFunc),
	}
	if c.writeTimeout <= 0 {
		c.writeTimeout = 10 * time.Second
	}
	go c.readLoop()
	return c, nil
}

// websocketURL maps http(s) endpoints onto ws(s).
func websocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: endpoint %q: %v", shared.ErrInvalidConfig, endpoint, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: endpoint %q: unsupported scheme", shared.ErrInvalidConfig, endpoint)
	}
	return u.String(), nil
}

type wsConn struct {
	ws           *websocket.Conn
	hooks        ConnHooks
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]AckFunc

	closing   atomic.Bool
	closeOnce sync.Once
}

func (c *wsConn) Emit(event string, payload any, ack AckFunc) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	env := Envelope{ID: ulid.Make().String(), Event: event, Data: data, Ack: ack != nil}
	if ack != nil {
		c.mu.Lock()
		c.pending[env.ID] = ack
		c.mu.Unlock()
	}

	if err := c.write(env); err != nil {
		c.take(env.ID)
		return err
	}
	return nil
}

func (c *wsConn) write(env Envelope) error {
	if c.closing.Load() {
		return shared.ErrConnectionClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to write %s: %w", env.Event, err)
	}
	return nil
}

// take removes and returns the pending ack for id.
func (c *wsConn) take(id string) AckFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	ack := c.pending[id]
	delete(c.pending, id)
	return ack
}

func (c *wsConn) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]AckFunc)
	c.mu.Unlock()

	for _, ack := range pending {
		ack(nil, err)
	}
}

func (c *wsConn) readLoop() {
	if c.hooks.OnConnect != nil {
		c.hooks.OnConnect()
	}

	for {
		var env Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			c.failPending(shared.ErrConnectionClosed)
			if c.hooks.OnDisconnect == nil {
				return
			}
			switch {
			case c.closing.Load():
				c.hooks.OnDisconnect("io client disconnect")
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				c.hooks.OnDisconnect("io server disconnect")
			default:
				c.hooks.OnDisconnect("transport error: " + err.Error())
			}
			return
		}

		if env.Event == ackEvent {
			ack := c.take(env.ID)
			if ack == nil {
				continue
			}
			if env.Error != "" {
				ack(env.Data, fmt.Errorf("%w: %s", shared.ErrAckRejected, env.Error))
				continue
			}
			ack(env.Data, nil)
			continue
		}

		if c.hooks.OnEvent != nil {
			c.hooks.OnEvent(EventKind(env.Event), env.Data)
		}
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
