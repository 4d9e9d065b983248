// Package realtime keeps a client in sync with lists edited by other parties.
//
// # Components
//
//  1. [Connection] : The single shared link to the realtime endpoint
//     - Created lazily by [Session.Handle] and reused by every subscription
//     - Redials with bounded exponential [Backoff] until closed
//     - Transport is pluggable through [Dialer] ([SocketIODialer], [WebSocketDialer])
//
//  2. Registry : Per-list subscribe/unsubscribe handshakes
//     - [Session.Subscribe] returns an independent [Subscription] per call
//     - Subscribe is emitted once per connection, immediately when live or on the next connect
//     - Every active subscription is resubscribed after a reconnect
//
//  3. [Dispatcher] : Routes inbound events to the handlers of every live subscription
//     - Handlers are looked up at delivery time, so [Subscription.SetHandlers] takes effect immediately
//     - A closed subscription receives nothing dispatched after Close returns
//
// # Threading
//
// Connection lifecycle callbacks and inbound events are serialized on one
// goroutine per connection. Handlers must not block for long: they delay
// every later event on the same connection.
//
// Reconciling payloads into view state lives in package reconcile.
package realtime
