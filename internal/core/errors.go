package core

// ErrorKind classifies a domain error so the transport can tell clients
// whether to retry, re-authenticate, or give up.
type ErrorKind string

const (
	// KindAuthentication means the handshake credential was bad or missing.
	// The connection is refused; every other kind leaves it open.
	KindAuthentication ErrorKind = "authentication"
	// KindAuthorization means a valid identity lacks the capability for
	// the room or action.
	KindAuthorization ErrorKind = "authorization"
	// KindConflict means the operation lost to a competing holder
	// (lock already held by someone else).
	KindConflict ErrorKind = "conflict"
	// KindNotFound means the room, content, or lock doesn't exist.
	KindNotFound ErrorKind = "not_found"
	// KindValidation means the message itself was malformed or missing
	// required fields; nothing was executed.
	KindValidation ErrorKind = "validation"
	// KindTransient means an external dependency (authorization oracle,
	// durable store) was unreachable. Callers should retry; this is kept
	// distinct from KindAuthorization so UIs don't show "access denied"
	// for an outage.
	KindTransient ErrorKind = "transient"
)

// Error codes carried on the wire.
const (
	ErrCodeAccessDenied      = "access_denied"
	ErrCodeRoomNotFound      = "room_not_found"
	ErrCodeNotInRoom         = "not_in_room"
	ErrCodeLockHeld          = "lock_held"
	ErrCodeLockNotHeld       = "lock_not_held"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeUnauthenticated   = "unauthenticated"
	ErrCodeOracleUnavailable = "oracle_unavailable"
)

// CoreError wraps a taxonomy kind, a stable code, and a human-readable message.
type CoreError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(kind ErrorKind, code, msg string) *CoreError {
	return &CoreError{Kind: kind, Code: code, Message: msg}
}
