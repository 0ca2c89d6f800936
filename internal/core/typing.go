package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type typingKey struct {
	room    string
	content string
	user    string
}

type typingEntry struct {
	connID  uuid.UUID
	member  Member
	expires time.Time
}

// TypingState identifies one active typist for broadcast purposes.
type TypingState struct {
	Room    string
	Content string
	Member  Member
}

// Typing tracks ephemeral per-(room, content, user) typing flags. Nothing
// here is ever persisted; entries expire on an explicit stop signal or
// after the inactivity TTL, which guards against clients that vanish
// without signaling.
type Typing struct {
	mu     sync.Mutex
	ttl    time.Duration
	active map[typingKey]*typingEntry
}

// NewTyping constructs a typing tracker with the given inactivity TTL.
func NewTyping(ttl time.Duration) *Typing {
	return &Typing{ttl: ttl, active: make(map[typingKey]*typingEntry)}
}

// Start marks the user as typing, refreshing the expiry if already set.
// Returns true when this is a fresh start (off -> on transition).
func (t *Typing) Start(c *Client, roomID, contentID string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{room: roomID, content: contentID, user: c.Member.UserID}
	entry, ok := t.active[key]
	if ok {
		entry.connID = c.ID
		entry.expires = at.Add(t.ttl)
		return false
	}
	t.active[key] = &typingEntry{connID: c.ID, member: c.Member, expires: at.Add(t.ttl)}
	return true
}

// Stop clears the user's typing flag. Returns false if it wasn't set.
func (t *Typing) Stop(userID, roomID, contentID string) (TypingState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{room: roomID, content: contentID, user: userID}
	entry, ok := t.active[key]
	if !ok {
		return TypingState{}, false
	}
	delete(t.active, key)
	return TypingState{Room: roomID, Content: contentID, Member: entry.member}, true
}

// ClearConnection drops every typing flag last signaled by the
// connection, returning the cleared states for broadcast.
func (t *Typing) ClearConnection(connID uuid.UUID) []TypingState {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []TypingState
	for key, entry := range t.active {
		if entry.connID == connID {
			cleared = append(cleared, TypingState{Room: key.room, Content: key.content, Member: entry.member})
			delete(t.active, key)
		}
	}
	return cleared
}

// ClearConnectionRoom drops the connection's typing flags in one room
// (leave path). Scoped to the connection so closing one tab doesn't
// clear a flag another tab of the same user refreshed last.
func (t *Typing) ClearConnectionRoom(connID uuid.UUID, roomID string) []TypingState {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []TypingState
	for key, entry := range t.active {
		if entry.connID == connID && key.room == roomID {
			cleared = append(cleared, TypingState{Room: key.room, Content: key.content, Member: entry.member})
			delete(t.active, key)
		}
	}
	return cleared
}

// SweepExpired clears flags past their inactivity deadline. One pass
// over active typists per tick.
func (t *Typing) SweepExpired(at time.Time) []TypingState {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []TypingState
	for key, entry := range t.active {
		if at.After(entry.expires) {
			cleared = append(cleared, TypingState{Room: key.room, Content: key.content, Member: entry.member})
			delete(t.active, key)
		}
	}
	return cleared
}

// Len returns the number of active typists.
func (t *Typing) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
