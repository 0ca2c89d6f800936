package core

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks live connections, the set of connections each user
// holds, and the rooms each connection has joined. It owns these maps
// exclusively; all mutation goes through its methods.
type Registry struct {
	mu        sync.RWMutex
	conns     map[uuid.UUID]*Client
	userConns map[string]map[uuid.UUID]*Client
	connRooms map[uuid.UUID]map[string]struct{}
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:     make(map[uuid.UUID]*Client),
		userConns: make(map[string]map[uuid.UUID]*Client),
		connRooms: make(map[uuid.UUID]map[string]struct{}),
	}
}

// Register adds the connection under its user's connection set.
// Returns false if the connection id is already registered (a no-op).
func (r *Registry) Register(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.ID]; exists {
		return false
	}
	r.conns[c.ID] = c

	userID := c.Member.UserID
	if _, ok := r.userConns[userID]; !ok {
		r.userConns[userID] = make(map[uuid.UUID]*Client)
	}
	r.userConns[userID][c.ID] = c
	r.connRooms[c.ID] = make(map[string]struct{})
	return true
}

// Unregister removes the connection and returns the room ids it had
// joined, which is everything the disconnect path must unwind.
// The second return is false if the connection was not registered,
// making a double disconnect safe.
func (r *Registry) Unregister(connID uuid.UUID) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	delete(r.conns, connID)

	userID := c.Member.UserID
	if set, ok := r.userConns[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.userConns, userID)
		}
	}

	rooms := make([]string, 0, len(r.connRooms[connID]))
	for roomID := range r.connRooms[connID] {
		rooms = append(rooms, roomID)
	}
	delete(r.connRooms, connID)
	return rooms, true
}

// Get returns the registered client for a connection id.
func (r *Registry) Get(connID uuid.UUID) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// ConnectionsFor returns every live connection held by a user, used to
// fan out personal notifications to all of their devices.
func (r *Registry) ConnectionsFor(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.userConns[userID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// TrackRoom records that a connection joined a room.
func (r *Registry) TrackRoom(connID uuid.UUID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rooms, ok := r.connRooms[connID]; ok {
		rooms[roomID] = struct{}{}
	}
}

// UntrackRoom records that a connection left a room.
func (r *Registry) UntrackRoom(connID uuid.UUID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rooms, ok := r.connRooms[connID]; ok {
		delete(rooms, roomID)
	}
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
