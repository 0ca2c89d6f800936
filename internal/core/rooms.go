package core

import (
	"sync"

	"github.com/google/uuid"
)

// Rooms owns room membership. Rooms are created lazily on first join and
// evicted once the last member leaves. The single mutex is the
// serialization boundary for join/leave: a membership snapshot returned
// to a joining client never reflects a half-applied concurrent change.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]*Client
}

// NewRooms constructs an empty room membership manager.
func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]map[uuid.UUID]*Client)}
}

// Join adds the connection to the room, creating the room if needed.
// Idempotent: rejoining returns the current snapshot with already=true
// and callers must not broadcast a second member-joined.
func (r *Rooms) Join(c *Client, roomID string) (members []Member, already bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[uuid.UUID]*Client)
		r.rooms[roomID] = room
	}
	_, already = room[c.ID]
	room[c.ID] = c

	members = make([]Member, 0, len(room))
	for _, member := range room {
		members = append(members, member.Member)
	}
	return members, already
}

// Leave removes the connection from the room. Returns roomExists=false
// for an unknown room and wasMember=false if the connection was not in
// it. The room is evicted when its member set becomes empty.
func (r *Rooms) Leave(connID uuid.UUID, roomID string) (wasMember, roomExists bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false, false
	}
	if _, ok := room[connID]; !ok {
		return false, true
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
	return true, true
}

// Membership reports whether the connection is a member of the room and
// whether the room exists at all.
func (r *Rooms) Membership(connID uuid.UUID, roomID string) (isMember, roomExists bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return false, false
	}
	_, isMember = room[connID]
	return isMember, true
}

// MembersOf returns the identities currently in the room.
func (r *Rooms) MembersOf(roomID string) ([]Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	members := make([]Member, 0, len(room))
	for _, c := range room {
		members = append(members, c.Member)
	}
	return members, true
}

// Broadcast queues an event to every room member except the originator.
// Delivery is best-effort; slow consumers are dropped, never retried.
func (r *Rooms) Broadcast(roomID string, except uuid.UUID, ev *Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	sent := 0
	for id, c := range room {
		if id == except {
			continue
		}
		if c.TrySend(ev) {
			sent++
		}
	}
	return sent
}

// Len returns the number of active rooms.
func (r *Rooms) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
