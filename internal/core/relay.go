package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/cospace/cospace-server/internal/store"
)

// EditRelay accepts edit payloads from lock holders, fans them out to
// the rest of the room, and hands a durable copy to the version store.
// The broadcast is optimistic: it goes out before persistence confirms,
// and a failed persist is reported back to the editor alone so they can
// retry persistence without re-broadcasting.
type EditRelay struct {
	rooms          *Rooms
	locks          *Locks
	versions       store.VersionStore
	log            *zerolog.Logger
	persistTimeout time.Duration
}

// NewEditRelay constructs an edit relay over the given membership, lock
// manager, and durable store.
func NewEditRelay(rooms *Rooms, locks *Locks, versions store.VersionStore, logger *zerolog.Logger) *EditRelay {
	return &EditRelay{
		rooms:          rooms,
		locks:          locks,
		versions:       versions,
		log:            logger,
		persistTimeout: 10 * time.Second,
	}
}

// Submit relays an edit from c. The caller must be a room member and
// must hold the content lock; edits from anyone else are rejected,
// which is the system's single-writer invariant.
func (r *EditRelay) Submit(c *Client, roomID, contentID string, payload json.RawMessage) *CoreError {
	isMember, roomExists := r.rooms.Membership(c.ID, roomID)
	if !roomExists {
		return coreError(KindNotFound, ErrCodeRoomNotFound, "room not found")
	}
	if !isMember {
		return coreError(KindAuthorization, ErrCodeNotInRoom, "join the room before editing")
	}

	held, ok := r.locks.HolderOf(roomID, contentID)
	if !ok {
		return coreError(KindNotFound, ErrCodeLockNotHeld, "acquire the content lock before editing")
	}
	if held.ConnID != c.ID {
		return coreError(KindConflict, ErrCodeLockHeld, "content is locked by "+held.Holder.DisplayName)
	}

	at := time.Now()
	r.rooms.Broadcast(roomID, c.ID, &Event{
		Kind:    EventContentUpdated,
		Room:    roomID,
		Content: contentID,
		User:    c.Member,
		Payload: payload,
		At:      at,
	})

	go r.persist(c, roomID, contentID, payload, at)
	return nil
}

// persist hands the payload to the durable store off the hot path.
// On failure the live edit stands; the editor gets a persist-failed
// event and owns the retry.
func (r *EditRelay) persist(c *Client, roomID, contentID string, payload json.RawMessage, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
	defer cancel()

	err := r.versions.AppendVersion(ctx, &store.ContentVersion{
		ContentID:  contentID,
		RoomID:     roomID,
		AuthorID:   c.Member.UserID,
		AuthorName: c.Member.DisplayName,
		Payload:    payload,
	})
	if err == nil {
		return
	}

	r.log.Warn().Err(err).
		Str("room_id", roomID).
		Str("content_id", contentID).
		Str("user_id", c.Member.UserID).
		Msg("failed to persist edit")

	c.TrySend(&Event{
		Kind:    EventPersistFailed,
		Room:    roomID,
		Content: contentID,
		Reason:  "durable store unavailable, retry persistence",
		At:      at,
	})
}
