package authz

import (
	"context"

	"github.com/cospace/cospace-server/internal/store"
)

// StoreOracle answers authorization questions from the room grant table.
// It stands in for the surrounding system's decision service so the
// server runs standalone; the Gate only ever sees the Oracle interface.
type StoreOracle struct {
	access store.AccessStore
}

// NewStoreOracle builds an oracle backed by the access store.
func NewStoreOracle(access store.AccessStore) *StoreOracle {
	return &StoreOracle{access: access}
}

var _ Oracle = (*StoreOracle)(nil)

// AuthorizeConnect allows any authenticated identity; the bearer token
// already vouches for it, and room grants gate everything else.
func (o *StoreOracle) AuthorizeConnect(_ context.Context, userID string) (bool, error) {
	return userID != "", nil
}

// RoomCapability maps the stored role to a capability.
func (o *StoreOracle) RoomCapability(ctx context.Context, userID, roomID string) (Capability, bool, error) {
	role, err := o.access.GetRoomRole(ctx, userID, roomID)
	if err != nil {
		return 0, false, err
	}
	if role == "" {
		return 0, false, nil
	}
	c, ok := CapabilityFromRole(role)
	return c, ok, nil
}
