package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type lockKey struct {
	room    string
	content string
}

// ContentLock is exclusive ownership of one (room, content) pair by one
// connection. The expiry is renewable: a holder re-acquiring extends it.
type ContentLock struct {
	Room       string
	Content    string
	ConnID     uuid.UUID
	Holder     Member
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Locks grants and releases content edit locks. Acquisition is always an
// immediate answer, granted or denied; there is no wait queue, so there
// is nothing to deadlock on. Callers poll or wait for a release event.
type Locks struct {
	mu    sync.Mutex
	ttl   time.Duration
	locks map[lockKey]*ContentLock
}

// NewLocks constructs a lock manager with the given renewable TTL.
func NewLocks(ttl time.Duration) *Locks {
	return &Locks{ttl: ttl, locks: make(map[lockKey]*ContentLock)}
}

// Acquire attempts to lock (room, content) for the connection.
// Granted when unlocked; idempotent renewal when the same connection
// already holds it; denied with the current holder otherwise.
func (l *Locks) Acquire(c *Client, roomID, contentID string, at time.Time) (granted bool, lock ContentLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := lockKey{room: roomID, content: contentID}
	if held, ok := l.locks[key]; ok {
		if held.ConnID == c.ID {
			held.ExpiresAt = at.Add(l.ttl)
			return true, *held
		}
		return false, *held
	}

	created := &ContentLock{
		Room:       roomID,
		Content:    contentID,
		ConnID:     c.ID,
		Holder:     c.Member,
		AcquiredAt: at,
		ExpiresAt:  at.Add(l.ttl),
	}
	l.locks[key] = created
	return true, *created
}

// Release frees the lock if the connection holds it. Returns the freed
// lock, or ok=false when the lock doesn't exist or belongs to another
// connection (the caller distinguishes via HolderOf).
func (l *Locks) Release(connID uuid.UUID, roomID, contentID string) (ContentLock, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := lockKey{room: roomID, content: contentID}
	held, ok := l.locks[key]
	if !ok || held.ConnID != connID {
		return ContentLock{}, false
	}
	delete(l.locks, key)
	return *held, true
}

// ReleaseAll frees every lock the connection holds in the room and
// returns them so the caller can broadcast each release. Used on leave
// and by the disconnect path.
func (l *Locks) ReleaseAll(connID uuid.UUID, roomID string) []ContentLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	var released []ContentLock
	for key, held := range l.locks {
		if held.ConnID == connID && key.room == roomID {
			released = append(released, *held)
			delete(l.locks, key)
		}
	}
	return released
}

// HolderOf returns the current lock on (room, content), if any.
func (l *Locks) HolderOf(roomID, contentID string) (ContentLock, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.locks[lockKey{room: roomID, content: contentID}]
	if !ok {
		return ContentLock{}, false
	}
	return *held, true
}

// SweepExpired frees every lock whose expiry has passed and returns
// them. Cost is one pass over active locks per tick, not a timer per
// lock. It protects against holders that stall without disconnecting.
func (l *Locks) SweepExpired(at time.Time) []ContentLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	var expired []ContentLock
	for key, held := range l.locks {
		if at.After(held.ExpiresAt) {
			expired = append(expired, *held)
			delete(l.locks, key)
		}
	}
	return expired
}

// Len returns the number of held locks.
func (l *Locks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
