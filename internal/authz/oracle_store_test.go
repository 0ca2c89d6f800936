package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/cospace/cospace-server/internal/store"
)

type fakeAccess struct {
	roles map[string]string // key: user + "/" + room
	err   error
}

func (f *fakeAccess) GetRoomRole(_ context.Context, userID, roomID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.roles[userID+"/"+roomID], nil
}

func (f *fakeAccess) UpsertRoomGrant(_ context.Context, _ *store.RoomGrant) error {
	return nil
}

func TestStoreOracleRoomCapability(t *testing.T) {
	oracle := NewStoreOracle(&fakeAccess{roles: map[string]string{
		"alice/doc-1": "edit",
		"bob/doc-1":   "view",
	}})
	ctx := context.Background()

	c, found, err := oracle.RoomCapability(ctx, "alice", "doc-1")
	if err != nil || !found || c != CapabilityEdit {
		t.Fatalf("alice: c=%v found=%v err=%v", c, found, err)
	}
	c, found, err = oracle.RoomCapability(ctx, "bob", "doc-1")
	if err != nil || !found || c != CapabilityView {
		t.Fatalf("bob: c=%v found=%v err=%v", c, found, err)
	}
	if _, found, _ := oracle.RoomCapability(ctx, "carol", "doc-1"); found {
		t.Fatal("no grant must mean not found")
	}
}

func TestStoreOracleConnect(t *testing.T) {
	oracle := NewStoreOracle(&fakeAccess{})
	if ok, _ := oracle.AuthorizeConnect(context.Background(), "alice"); !ok {
		t.Fatal("authenticated identity may connect")
	}
	if ok, _ := oracle.AuthorizeConnect(context.Background(), ""); ok {
		t.Fatal("empty identity must be refused")
	}
}

func TestStoreOraclePropagatesErrors(t *testing.T) {
	oracle := NewStoreOracle(&fakeAccess{err: errors.New("db closed")})
	if _, _, err := oracle.RoomCapability(context.Background(), "alice", "doc-1"); err == nil {
		t.Fatal("store failure must surface as an error")
	}
}
