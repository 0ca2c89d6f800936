package store

import (
	"context"
	"time"
)

// Room access roles, as recorded by the collaboration service that owns
// membership records. The realtime engine only reads them.
const (
	RoleView  = "view"
	RoleEdit  = "edit"
	RoleAdmin = "admin"
)

// ContentVersion is one confirmed edit appended to a content's history.
type ContentVersion struct {
	ID         int64
	ContentID  string
	RoomID     string
	AuthorID   string
	AuthorName string
	Payload    []byte
	CreatedAt  time.Time
}

// RoomGrant is a user's standing access to a room.
type RoomGrant struct {
	RoomID    string
	UserID    string
	Role      string
	GrantedAt time.Time
}

// VersionStore is the durable side of the edit relay: it records
// confirmed edit payloads. Live broadcast never waits on it.
type VersionStore interface {
	// AppendVersion persists one edit payload. The ID is assigned on insert.
	AppendVersion(ctx context.Context, v *ContentVersion) error

	// ListVersions returns the newest versions of a content, newest first.
	ListVersions(ctx context.Context, contentID string, limit int) ([]*ContentVersion, error)
}

// AccessStore backs the authorization oracle with room grant lookups.
type AccessStore interface {
	// GetRoomRole returns the user's role in a room, or "" when the user
	// has no grant there.
	GetRoomRole(ctx context.Context, userID, roomID string) (string, error)

	// UpsertRoomGrant records or updates a grant. Grants are written by
	// the surrounding system; the engine itself only reads them.
	UpsertRoomGrant(ctx context.Context, g *RoomGrant) error
}

// Store aggregates all storage interfaces.
type Store interface {
	VersionStore
	AccessStore

	// Close closes the underlying database connection.
	Close() error
}
