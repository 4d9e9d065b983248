package realtime

import "encoding/json"

// EventKind names an inbound realtime event.
type EventKind string

const (
	EventListUpdated   EventKind = "list.updated"
	EventItemUpdated   EventKind = "item.updated"
	EventListCompleted EventKind = "list.completed"
	EventShareRevoked  EventKind = "share.revoked"
	EventShareAccepted EventKind = "share.accepted"
	EventSubscribed    EventKind = "subscribed"
	EventUnsubscribed  EventKind = "unsubscribed"
)

// InboundEvents lists every event kind the client listens for.
var InboundEvents = []EventKind{
	EventListUpdated,
	EventItemUpdated,
	EventListCompleted,
	EventShareRevoked,
	EventShareAccepted,
	EventSubscribed,
	EventUnsubscribed,
}

// Outbound event names.
const (
	EmitSubscribe   = "subscribe"
	EmitUnsubscribe = "unsubscribe"
)

// SubscribeRequest is the payload of a subscribe emission.
type SubscribeRequest struct {
	ListID     string `json:"listId"`
	ShareToken string `json:"shareToken,omitempty"`
}

// UnsubscribeRequest is the payload of an unsubscribe emission.
type UnsubscribeRequest struct {
	ListID string `json:"listId"`
}

// Handler receives the raw payload of one event.
type Handler func(payload json.RawMessage)

// Handlers is the set of callbacks a subscription registers. Nil fields are skipped.
type Handlers struct {
	OnListUpdated   Handler
	OnItemUpdated   Handler
	OnListCompleted Handler
	OnShareRevoked  Handler
	OnShareAccepted Handler
	OnSubscribed    Handler
	OnUnsubscribed  Handler
}

// For returns the handler registered for kind, or nil.
func (h Handlers) For(kind EventKind) Handler {
	switch kind {
	case EventListUpdated:
		return h.OnListUpdated
	case EventItemUpdated:
		return h.OnItemUpdated
	case EventListCompleted:
		return h.OnListCompleted
	case EventShareRevoked:
		return h.OnShareRevoked
	case EventShareAccepted:
		return h.OnShareAccepted
	case EventSubscribed:
		return h.OnSubscribed
	case EventUnsubscribed:
		return h.OnUnsubscribed
	}
	return nil
}

// ackError extracts a rejection from an acknowledgement body shaped like {"error": "..."}.
// Anything else, including an empty body, counts as success.
func ackError(reply json.RawMessage) string {
	if len(reply) == 0 {
		return ""
	}
	var body struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(reply, &body); err != nil || body.Error == nil {
		return ""
	}
	switch e := body.Error.(type) {
	case string:
		if e != "" {
			return e
		}
	case bool:
		if !e {
			return ""
		}
	}
	if body.Message != "" {
		return body.Message
	}
	return "subscription rejected"
}
