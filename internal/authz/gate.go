package authz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Capability is an ordered access level inside a room.
type Capability int

const (
	CapabilityView Capability = iota + 1
	CapabilityEdit
	CapabilityAdmin
)

func (c Capability) String() string {
	switch c {
	case CapabilityView:
		return "view"
	case CapabilityEdit:
		return "edit"
	case CapabilityAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// CapabilityFromRole maps a stored role name to a capability.
func CapabilityFromRole(role string) (Capability, bool) {
	switch role {
	case "view":
		return CapabilityView, true
	case "edit":
		return CapabilityEdit, true
	case "admin":
		return CapabilityAdmin, true
	default:
		return 0, false
	}
}

var (
	// ErrDenied means the oracle answered: this identity may not do that.
	ErrDenied = errors.New("access denied")
	// ErrUnavailable means the oracle could not be reached. The gate
	// fails closed, but callers must surface this as retryable rather
	// than as a hard deny.
	ErrUnavailable = errors.New("authorization oracle unavailable")
)

// Oracle is the external decision service answering "can identity X do
// capability Y in room Z". The engine never talks to it directly; it
// goes through the Gate.
type Oracle interface {
	// AuthorizeConnect reports whether the identity may connect at all.
	AuthorizeConnect(ctx context.Context, userID string) (bool, error)

	// RoomCapability returns the capability granted to the identity in
	// the room, or found=false when there is no grant.
	RoomCapability(ctx context.Context, userID, roomID string) (capability Capability, found bool, err error)
}

type grantKey struct {
	user string
	room string
	want Capability
}

// Gate wraps the oracle with a short-TTL cache of allow decisions so a
// chatty connection doesn't refetch on every message. A deny is never
// cached: access can be granted moments later and must be re-checked.
type Gate struct {
	oracle Oracle
	ttl    time.Duration
	log    *zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	allows map[grantKey]time.Time
}

// NewGate constructs a gate caching allow decisions for ttl.
func NewGate(oracle Oracle, ttl time.Duration, logger *zerolog.Logger) *Gate {
	return &Gate{
		oracle: oracle,
		ttl:    ttl,
		log:    logger,
		now:    time.Now,
		allows: make(map[grantKey]time.Time),
	}
}

// AuthorizeConnect is called once per handshake. Oracle failure is a
// fail-closed ErrUnavailable.
func (g *Gate) AuthorizeConnect(ctx context.Context, userID string) error {
	ok, err := g.oracle.AuthorizeConnect(ctx, userID)
	if err != nil {
		g.log.Warn().Err(err).Str("user_id", userID).Msg("oracle unreachable on connect")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return ErrDenied
	}
	return nil
}

// AuthorizeRoom checks that the identity holds at least want in the room.
func (g *Gate) AuthorizeRoom(ctx context.Context, userID, roomID string, want Capability) error {
	key := grantKey{user: userID, room: roomID, want: want}

	g.mu.Lock()
	expiry, hit := g.allows[key]
	if hit && g.now().Before(expiry) {
		g.mu.Unlock()
		return nil
	}
	if hit {
		delete(g.allows, key)
	}
	g.mu.Unlock()

	granted, found, err := g.oracle.RoomCapability(ctx, userID, roomID)
	if err != nil {
		g.log.Warn().Err(err).Str("user_id", userID).Str("room_id", roomID).Msg("oracle unreachable")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !found || granted < want {
		return ErrDenied
	}

	g.mu.Lock()
	if len(g.allows) > 4096 {
		g.pruneLocked()
	}
	g.allows[key] = g.now().Add(g.ttl)
	g.mu.Unlock()
	return nil
}

// pruneLocked drops expired allow entries. Caller holds g.mu.
func (g *Gate) pruneLocked() {
	cutoff := g.now()
	for key, expiry := range g.allows {
		if cutoff.After(expiry) {
			delete(g.allows, key)
		}
	}
}
