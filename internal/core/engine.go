package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cospace/cospace-server/internal/authz"
	"github.com/cospace/cospace-server/internal/store"
)

// Authorizer answers access questions for the engine. In production it
// is the authz.Gate wrapping the external oracle.
type Authorizer interface {
	AuthorizeConnect(ctx context.Context, userID string) error
	AuthorizeRoom(ctx context.Context, userID, roomID string, want authz.Capability) error
}

// Options tunes the engine's time-bounded resources.
type Options struct {
	LockTTL     time.Duration
	LockSweep   time.Duration
	TypingTTL   time.Duration
	TypingSweep time.Duration
}

// DefaultOptions returns the standard TTLs: locks renewable for a
// minute, typing flags cleared after five seconds of silence.
func DefaultOptions() Options {
	return Options{
		LockTTL:     60 * time.Second,
		LockSweep:   5 * time.Second,
		TypingTTL:   5 * time.Second,
		TypingSweep: time.Second,
	}
}

// Stats is a point-in-time view of engine state for the stats endpoint.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Locks       int `json:"locks"`
	Typists     int `json:"typists"`
}

// Engine coordinates the realtime collaboration components: connection
// registry, room membership, content locks, presence fan-out, and the
// edit relay. Inbound operations run in parallel across connections;
// each component's own mutex serializes mutation of its state.
type Engine struct {
	registry *Registry
	rooms    *Rooms
	locks    *Locks
	typing   *Typing
	relay    *EditRelay
	auth     Authorizer
	opts     Options
	log      *zerolog.Logger
}

// NewEngine wires the engine from its components.
func NewEngine(auth Authorizer, versions store.VersionStore, opts Options, logger *zerolog.Logger) *Engine {
	registry := NewRegistry()
	rooms := NewRooms()
	locks := NewLocks(opts.LockTTL)
	return &Engine{
		registry: registry,
		rooms:    rooms,
		locks:    locks,
		typing:   NewTyping(opts.TypingTTL),
		relay:    NewEditRelay(rooms, locks, versions, logger),
		auth:     auth,
		opts:     opts,
		log:      logger,
	}
}

// Run drives the background sweeps until the context is cancelled. Both
// TTLs are swept by periodic ticks rather than per-entry timers, so the
// cost per tick is one pass over active locks and typists.
func (e *Engine) Run(ctx context.Context) {
	lockTick := time.NewTicker(e.opts.LockSweep)
	typingTick := time.NewTicker(e.opts.TypingSweep)
	defer lockTick.Stop()
	defer typingTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case at := <-lockTick.C:
			for _, lock := range e.locks.SweepExpired(at) {
				e.log.Info().
					Str("room_id", lock.Room).
					Str("content_id", lock.Content).
					Str("user_id", lock.Holder.UserID).
					Msg("lock expired")
				holder := lock.Holder
				e.rooms.Broadcast(lock.Room, uuid.Nil, &Event{
					Kind:    EventLockReleased,
					Room:    lock.Room,
					Content: lock.Content,
					Holder:  &holder,
					Reason:  ReleaseReasonExpired,
					At:      at,
				})
			}
		case at := <-typingTick.C:
			for _, ts := range e.typing.SweepExpired(at) {
				e.rooms.Broadcast(ts.Room, uuid.Nil, &Event{
					Kind:     EventTypingChanged,
					Room:     ts.Room,
					Content:  ts.Content,
					User:     ts.Member,
					IsTyping: false,
					At:       at,
				})
			}
		}
	}
}

// Connect authorizes the identity and registers the connection. A
// non-nil error means the transport must refuse the connection.
func (e *Engine) Connect(ctx context.Context, c *Client) *CoreError {
	if err := e.auth.AuthorizeConnect(ctx, c.Member.UserID); err != nil {
		if cerr := transientAuthError(err); cerr != nil {
			return cerr
		}
		return coreError(KindAuthentication, ErrCodeUnauthenticated, "connection refused")
	}
	if !e.registry.Register(c) {
		// Duplicate registration is a no-op per the registry contract.
		e.log.Warn().Str("conn_id", c.ID.String()).Msg("connection already registered")
	}
	e.log.Info().
		Str("conn_id", c.ID.String()).
		Str("user_id", c.Member.UserID).
		Msg("connection registered")
	return nil
}

// Disconnect unwinds everything the connection owned: registry entry,
// room memberships (which release its locks), and typing flags. Safe to
// call twice; the second call finds nothing to do.
func (e *Engine) Disconnect(c *Client) {
	rooms, ok := e.registry.Unregister(c.ID)
	if !ok {
		return
	}
	for _, roomID := range rooms {
		e.departRoom(c, roomID, ReleaseReasonDisconnected)
	}
	// Catch-all for flags in rooms the registry lost track of.
	for _, ts := range e.typing.ClearConnection(c.ID) {
		e.broadcastTypingStopped(ts)
	}
	e.log.Info().
		Str("conn_id", c.ID.String()).
		Str("user_id", c.Member.UserID).
		Int("rooms", len(rooms)).
		Msg("connection cleaned up")
}

// JoinRoom checks view access and adds the connection to the room.
// Rejoining is idempotent: the caller gets the current snapshot again
// and peers see exactly one member-joined.
func (e *Engine) JoinRoom(ctx context.Context, c *Client, roomID string) *CoreError {
	if cerr := e.authorizeRoom(ctx, c, roomID, authz.CapabilityView); cerr != nil {
		return cerr
	}

	members, already := e.rooms.Join(c, roomID)
	e.registry.TrackRoom(c.ID, roomID)

	at := time.Now()
	if !already {
		e.rooms.Broadcast(roomID, c.ID, &Event{
			Kind: EventMemberJoined,
			Room: roomID,
			User: c.Member,
			At:   at,
		})
		e.log.Debug().Str("room_id", roomID).Str("user_id", c.Member.UserID).Msg("member joined")
	}
	c.TrySend(&Event{
		Kind:    EventRoomJoined,
		Room:    roomID,
		Members: members,
		At:      at,
	})
	return nil
}

// LeaveRoom removes the connection from the room, releasing its locks
// there and announcing the departure.
func (e *Engine) LeaveRoom(c *Client, roomID string) *CoreError {
	isMember, roomExists := e.rooms.Membership(c.ID, roomID)
	if !roomExists {
		return coreError(KindNotFound, ErrCodeRoomNotFound, "room not found")
	}
	if !isMember {
		return coreError(KindNotFound, ErrCodeNotInRoom, "not a member of this room")
	}
	e.departRoom(c, roomID, ReleaseReasonReleased)
	return nil
}

// departRoom is the shared leave/disconnect path: drop membership, then
// broadcast the departure, the freed locks, and the cleared typing
// flags to whoever remains.
func (e *Engine) departRoom(c *Client, roomID, lockReason string) {
	released := e.locks.ReleaseAll(c.ID, roomID)
	cleared := e.typing.ClearConnectionRoom(c.ID, roomID)
	e.rooms.Leave(c.ID, roomID)
	e.registry.UntrackRoom(c.ID, roomID)

	at := time.Now()
	e.rooms.Broadcast(roomID, c.ID, &Event{
		Kind: EventMemberLeft,
		Room: roomID,
		User: c.Member,
		At:   at,
	})
	for _, lock := range released {
		holder := lock.Holder
		e.rooms.Broadcast(roomID, c.ID, &Event{
			Kind:    EventLockReleased,
			Room:    roomID,
			Content: lock.Content,
			Holder:  &holder,
			Reason:  lockReason,
			At:      at,
		})
	}
	for _, ts := range cleared {
		e.broadcastTypingStopped(ts)
	}
}

// AcquireLock answers immediately: granted (or renewed) to the caller,
// or denied with the current holder so the UI can show who has it.
// Requires edit capability; a permission failure is distinct from the
// lock being taken.
func (e *Engine) AcquireLock(ctx context.Context, c *Client, roomID, contentID string) *CoreError {
	if cerr := e.authorizeRoom(ctx, c, roomID, authz.CapabilityEdit); cerr != nil {
		return cerr
	}

	granted, lock := e.locks.Acquire(c, roomID, contentID, time.Now())
	if !granted {
		holder := lock.Holder
		c.TrySend(&Event{
			Kind:    EventLockDenied,
			Room:    roomID,
			Content: contentID,
			Holder:  &holder,
			At:      time.Now(),
		})
		return nil
	}
	c.TrySend(&Event{
		Kind:    EventLockGranted,
		Room:    roomID,
		Content: contentID,
		Expires: lock.ExpiresAt,
		At:      time.Now(),
	})
	return nil
}

// ReleaseLock frees the lock if the caller holds it and tells the room.
func (e *Engine) ReleaseLock(c *Client, roomID, contentID string) *CoreError {
	lock, ok := e.locks.Release(c.ID, roomID, contentID)
	if !ok {
		if held, exists := e.locks.HolderOf(roomID, contentID); exists {
			return coreError(KindConflict, ErrCodeLockHeld, "content is locked by "+held.Holder.DisplayName)
		}
		return coreError(KindNotFound, ErrCodeLockNotHeld, "no lock held on this content")
	}

	at := time.Now()
	holder := lock.Holder
	ev := &Event{
		Kind:    EventLockReleased,
		Room:    roomID,
		Content: contentID,
		Holder:  &holder,
		Reason:  ReleaseReasonReleased,
		At:      at,
	}
	c.TrySend(ev)
	e.rooms.Broadcast(roomID, c.ID, ev)
	return nil
}

// SubmitEdit relays an edit through the single-writer check and on to
// the durable store.
func (e *Engine) SubmitEdit(c *Client, roomID, contentID string, payload json.RawMessage) *CoreError {
	return e.relay.Submit(c, roomID, contentID, payload)
}

// CursorUpdate fans a cursor position out to the rest of the room.
// Purely ephemeral; the sender never hears its own echo.
func (e *Engine) CursorUpdate(c *Client, roomID, contentID string, position json.RawMessage) *CoreError {
	if cerr := e.requireMembership(c, roomID); cerr != nil {
		return cerr
	}
	e.rooms.Broadcast(roomID, c.ID, &Event{
		Kind:     EventCursorUpdated,
		Room:     roomID,
		Content:  contentID,
		User:     c.Member,
		Position: position,
		At:       time.Now(),
	})
	return nil
}

// SetTyping flips the caller's typing flag. Only transitions are
// broadcast; refreshing an already-set flag just extends its expiry.
func (e *Engine) SetTyping(c *Client, roomID, contentID string, isTyping bool) *CoreError {
	if cerr := e.requireMembership(c, roomID); cerr != nil {
		return cerr
	}

	at := time.Now()
	if isTyping {
		if started := e.typing.Start(c, roomID, contentID, at); started {
			e.rooms.Broadcast(roomID, c.ID, &Event{
				Kind:     EventTypingChanged,
				Room:     roomID,
				Content:  contentID,
				User:     c.Member,
				IsTyping: true,
				At:       at,
			})
		}
		return nil
	}

	if _, ok := e.typing.Stop(c.Member.UserID, roomID, contentID); ok {
		e.rooms.Broadcast(roomID, c.ID, &Event{
			Kind:     EventTypingChanged,
			Room:     roomID,
			Content:  contentID,
			User:     c.Member,
			IsTyping: false,
			At:       at,
		})
	}
	return nil
}

// NotifyUser queues an event on every connection the user holds, so a
// personal notification reaches all of their devices.
func (e *Engine) NotifyUser(userID string, ev *Event) int {
	sent := 0
	for _, c := range e.registry.ConnectionsFor(userID) {
		if c.TrySend(ev) {
			sent++
		}
	}
	return sent
}

// MembersOf returns the live presence snapshot of a room.
func (e *Engine) MembersOf(roomID string) ([]Member, bool) {
	return e.rooms.MembersOf(roomID)
}

// Stats reports current engine occupancy.
func (e *Engine) Stats() Stats {
	return Stats{
		Connections: e.registry.Len(),
		Rooms:       e.rooms.Len(),
		Locks:       e.locks.Len(),
		Typists:     e.typing.Len(),
	}
}

func (e *Engine) authorizeRoom(ctx context.Context, c *Client, roomID string, want authz.Capability) *CoreError {
	err := e.auth.AuthorizeRoom(ctx, c.Member.UserID, roomID, want)
	if err == nil {
		return nil
	}
	if cerr := transientAuthError(err); cerr != nil {
		return cerr
	}
	return coreError(KindAuthorization, ErrCodeAccessDenied,
		"missing "+want.String()+" access to this room")
}

func (e *Engine) requireMembership(c *Client, roomID string) *CoreError {
	isMember, roomExists := e.rooms.Membership(c.ID, roomID)
	if !roomExists {
		return coreError(KindNotFound, ErrCodeRoomNotFound, "room not found")
	}
	if !isMember {
		return coreError(KindAuthorization, ErrCodeNotInRoom, "join the room first")
	}
	return nil
}

// transientAuthError maps an unreachable oracle to a retryable error so
// clients don't mistake an outage for a deny.
func transientAuthError(err error) *CoreError {
	if errors.Is(err, authz.ErrUnavailable) {
		return coreError(KindTransient, ErrCodeOracleUnavailable, "authorization service unavailable, retry")
	}
	return nil
}

func (e *Engine) broadcastTypingStopped(ts TypingState) {
	e.rooms.Broadcast(ts.Room, uuid.Nil, &Event{
		Kind:     EventTypingChanged,
		Room:     ts.Room,
		Content:  ts.Content,
		User:     ts.Member,
		IsTyping: false,
		At:       time.Now(),
	})
}
