package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoinRoom    = "join-room"
	InboundTypeLeaveRoom   = "leave-room"
	InboundTypeAcquireLock = "acquire-lock"
	InboundTypeReleaseLock = "release-lock"
	InboundTypeSubmitEdit  = "submit-edit"
	InboundTypeCursor      = "cursor-update"
	InboundTypeTypingStart = "typing-start"
	InboundTypeTypingStop  = "typing-stop"

	OutboundTypeRoomJoined     = "room-joined"
	OutboundTypeMemberJoined   = "member-joined"
	OutboundTypeMemberLeft     = "member-left"
	OutboundTypeLockGranted    = "lock-granted"
	OutboundTypeLockDenied     = "lock-denied"
	OutboundTypeLockReleased   = "lock-released"
	OutboundTypeContentUpdated = "content-updated"
	OutboundTypePersistFailed  = "persist-failed"
	OutboundTypeCursorUpdated  = "cursor-updated"
	OutboundTypeTypingChanged  = "typing-changed"
	OutboundTypeError          = "error"
)

// RoomData addresses a room (join-room, leave-room).
type RoomData struct {
	Room string `json:"room"`
}

// ContentData addresses content inside a room (locks, typing).
type ContentData struct {
	Room    string `json:"room"`
	Content string `json:"content"`
}

// EditData carries an edit payload for relay and persistence.
type EditData struct {
	Room    string          `json:"room"`
	Content string          `json:"content"`
	Payload json.RawMessage `json:"payload"`
}

// CursorData carries an ephemeral cursor position.
type CursorData struct {
	Room     string          `json:"room"`
	Content  string          `json:"content"`
	Position json.RawMessage `json:"position"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Member identifies a user in outbound payloads.
type Member struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// RoomJoinedData is the membership snapshot returned on join.
type RoomJoinedData struct {
	Room    string   `json:"room"`
	Members []Member `json:"members"`
	TS      int64    `json:"ts"`
}

// MemberEventData announces a member joining or leaving a room.
type MemberEventData struct {
	Room string `json:"room"`
	User Member `json:"user"`
	TS   int64  `json:"ts"`
}

// LockGrantedData confirms a lock to its new (or renewing) holder.
type LockGrantedData struct {
	Room      string `json:"room"`
	Content   string `json:"content"`
	ExpiresAt int64  `json:"expires_at"`
}

// LockDeniedData rejects an acquire, naming the current holder.
type LockDeniedData struct {
	Room    string `json:"room"`
	Content string `json:"content"`
	HeldBy  Member `json:"held_by"`
}

// LockReleasedData announces a freed lock. Reason is "released",
// "expired", or "disconnected".
type LockReleasedData struct {
	Room    string `json:"room"`
	Content string `json:"content"`
	HeldBy  Member `json:"held_by"`
	Reason  string `json:"reason"`
}

// ContentUpdatedData relays an edit to room members.
type ContentUpdatedData struct {
	Room     string          `json:"room"`
	Content  string          `json:"content"`
	EditedBy Member          `json:"edited_by"`
	Payload  json.RawMessage `json:"payload"`
	TS       int64           `json:"ts"`
}

// PersistFailedData tells the editor a durable write failed.
type PersistFailedData struct {
	Room    string `json:"room"`
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// CursorUpdatedData relays a peer's cursor position.
type CursorUpdatedData struct {
	Room     string          `json:"room"`
	Content  string          `json:"content"`
	User     Member          `json:"user"`
	Position json.RawMessage `json:"position"`
}

// TypingChangedData relays a peer's typing transition.
type TypingChangedData struct {
	Room     string `json:"room"`
	Content  string `json:"content"`
	User     Member `json:"user"`
	IsTyping bool   `json:"is_typing"`
}

// Error describes a protocol-level error response. Kind is the taxonomy
// bucket (authentication, authorization, conflict, not_found,
// transient); Code is a stable machine-readable cause.
type Error struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
