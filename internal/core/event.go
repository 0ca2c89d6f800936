package core

import (
	"encoding/json"
	"time"
)

// EventKind is a notification the engine emits to clients.
type EventKind int

const (
	// EventRoomJoined delivers the membership snapshot to a joining client.
	EventRoomJoined EventKind = iota
	// EventMemberJoined notifies room members that someone joined.
	EventMemberJoined
	// EventMemberLeft notifies room members that someone left or disconnected.
	EventMemberLeft
	// EventLockGranted confirms lock acquisition to the requester.
	EventLockGranted
	// EventLockDenied rejects lock acquisition, naming the current holder.
	EventLockDenied
	// EventLockReleased notifies room members that a content lock was freed.
	EventLockReleased
	// EventContentUpdated relays an edit payload to room members.
	EventContentUpdated
	// EventPersistFailed tells the editor that the durable write failed and
	// should be retried; the live broadcast has already gone out.
	EventPersistFailed
	// EventCursorUpdated relays a cursor position to room members.
	EventCursorUpdated
	// EventTypingChanged relays a typing on/off transition to room members.
	EventTypingChanged
	// EventError reports a domain error to the requesting client.
	EventError
)

// Release reasons carried on EventLockReleased.
const (
	ReleaseReasonReleased     = "released"
	ReleaseReasonExpired      = "expired"
	ReleaseReasonDisconnected = "disconnected"
)

// Event describes something that happened in the engine. Fields are
// populated per kind; the transport maps events to outbound messages.
type Event struct {
	Kind     EventKind
	Room     string
	Content  string
	User     Member   // originator or subject of the event
	Members  []Member // room snapshot, EventRoomJoined only
	Holder   *Member  // current holder, EventLockDenied / EventLockReleased
	Payload  json.RawMessage
	Position json.RawMessage
	IsTyping bool
	Reason   string
	Expires  time.Time // EventLockGranted
	At       time.Time
	Error    *CoreError
}

// NewErrorEvent wraps a domain error for delivery on a client's event
// channel, keeping the write loop the only writer on the transport.
func NewErrorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, At: time.Now(), Error: err}
}
