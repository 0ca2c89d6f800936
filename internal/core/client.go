package core

import (
	"time"

	"github.com/google/uuid"
)

// Member is the identity attached to a connection, as peers see it.
type Member struct {
	UserID      string
	DisplayName string
}

// Client is one live connection as seen by the engine. A user may hold
// several clients at once (multiple tabs or devices); the registry keeps
// the user -> clients mapping.
type Client struct {
	ID          uuid.UUID
	Member      Member
	Events      chan *Event
	ConnectedAt time.Time
}

// NewClient constructs a client handle with a buffered event channel.
func NewClient(id uuid.UUID, userID, displayName string) *Client {
	if displayName == "" {
		displayName = userID
	}
	return &Client{
		ID:          id,
		Member:      Member{UserID: userID, DisplayName: displayName},
		Events:      make(chan *Event, 32),
		ConnectedAt: time.Now(),
	}
}

// TrySend queues an event without blocking. Returns false if the client's
// buffer is full; delivery is best-effort and slow consumers are dropped.
func (c *Client) TrySend(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
