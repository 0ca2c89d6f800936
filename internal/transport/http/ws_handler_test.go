package http

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/cospace/cospace-server/internal/proto"
	"github.com/cospace/cospace-server/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	s := startCollabServer(t)

	resp, err := s.ts.Client().Get(s.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	s := startCollabServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	wsURL := strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws"
	if _, _, err := websocket.Dial(ctx, wsURL, nil); err == nil {
		t.Fatal("handshake without token must fail")
	}
	if _, _, err := websocket.Dial(ctx, wsURL+"?token=garbage", nil); err == nil {
		t.Fatal("handshake with a bad token must fail")
	}
}

func TestWebSocketJoinAndPresence(t *testing.T) {
	s := startCollabServer(t)
	s.grant(t, "alice", "doc-1", store.RoleEdit)
	s.grant(t, "bob", "doc-1", store.RoleView)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := s.dial(ctx, t, "alice", "Alice")
	bob := s.dial(ctx, t, "bob", "Bob")

	send(ctx, t, alice, proto.InboundTypeJoinRoom, proto.RoomData{Room: "doc-1"})
	var snapshot proto.RoomJoinedData
	decodeData(t, mustRead(ctx, t, alice, proto.OutboundTypeRoomJoined), &snapshot)
	if len(snapshot.Members) != 1 || snapshot.Members[0].UserID != "alice" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	send(ctx, t, bob, proto.InboundTypeJoinRoom, proto.RoomData{Room: "doc-1"})
	decodeData(t, mustRead(ctx, t, bob, proto.OutboundTypeRoomJoined), &snapshot)
	if len(snapshot.Members) != 2 {
		t.Fatalf("expected 2 members in bob's snapshot, got %d", len(snapshot.Members))
	}

	var joined proto.MemberEventData
	decodeData(t, mustRead(ctx, t, alice, proto.OutboundTypeMemberJoined), &joined)
	if joined.User.UserID != "bob" || joined.User.Name != "Bob" {
		t.Fatalf("unexpected member-joined: %+v", joined)
	}
}

func TestWebSocketJoinDenied(t *testing.T) {
	s := startCollabServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	carol := s.dial(ctx, t, "carol", "Carol")
	send(ctx, t, carol, proto.InboundTypeJoinRoom, proto.RoomData{Room: "doc-1"})

	msg := mustRead(ctx, t, carol, proto.OutboundTypeError)
	if msg.Error == nil || msg.Error.Code != "access_denied" || msg.Error.Kind != "authorization" {
		t.Fatalf("expected access_denied error, got %+v", msg.Error)
	}
}

func TestWebSocketLockAndEditFlow(t *testing.T) {
	s := startCollabServer(t)
	s.grant(t, "alice", "doc-1", store.RoleEdit)
	s.grant(t, "bob", "doc-1", store.RoleEdit)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := s.dial(ctx, t, "alice", "Alice")
	bob := s.dial(ctx, t, "bob", "Bob")

	send(ctx, t, alice, proto.InboundTypeJoinRoom, proto.RoomData{Room: "doc-1"})
	mustRead(ctx, t, alice, proto.OutboundTypeRoomJoined)
	send(ctx, t, bob, proto.InboundTypeJoinRoom, proto.RoomData{Room: "doc-1"})
	mustRead(ctx, t, bob, proto.OutboundTypeRoomJoined)

	// Alice takes the lock.
	send(ctx, t, alice, proto.InboundTypeAcquireLock, proto.ContentData{Room: "doc-1", Content: "note-1"})
	var granted proto.LockGrantedData
	decodeData(t, mustRead(ctx, t, alice, proto.OutboundTypeLockGranted), &granted)
	if granted.ExpiresAt == 0 {
		t.Fatal("grant must carry an expiry timestamp")
	}

	// Bob is denied while alice holds it.
	send(ctx, t, bob, proto.InboundTypeAcquireLock, proto.ContentData{Room: "doc-1", Content: "note-1"})
	var denied proto.LockDeniedData
	decodeData(t, mustRead(ctx, t, bob, proto.OutboundTypeLockDenied), &denied)
	if denied.HeldBy.UserID != "alice" {
		t.Fatalf("denial must name alice, got %+v", denied.HeldBy)
	}

	// Bob cannot edit without the lock.
	send(ctx, t, bob, proto.InboundTypeSubmitEdit, proto.EditData{
		Room: "doc-1", Content: "note-1", Payload: []byte(`{"text":"hijack"}`),
	})
	errMsg := mustRead(ctx, t, bob, proto.OutboundTypeError)
	if errMsg.Error == nil || errMsg.Error.Code != "lock_held" {
		t.Fatalf("expected lock_held error, got %+v", errMsg.Error)
	}

	// Alice's edit reaches bob.
	send(ctx, t, alice, proto.InboundTypeSubmitEdit, proto.EditData{
		Room: "doc-1", Content: "note-1", Payload: []byte(`{"text":"hello"}`),
	})
	var updated proto.ContentUpdatedData
	decodeData(t, mustRead(ctx, t, bob, proto.OutboundTypeContentUpdated), &updated)
	if updated.EditedBy.UserID != "alice" || string(updated.Payload) != `{"text":"hello"}` {
		t.Fatalf("unexpected content-updated: %+v", updated)
	}

	// Alice hands the lock over.
	send(ctx, t, alice, proto.InboundTypeReleaseLock, proto.ContentData{Room: "doc-1", Content: "note-1"})
	var released proto.LockReleasedData
	decodeData(t, mustRead(ctx, t, bob, proto.OutboundTypeLockReleased), &released)
	if released.Reason != "released" || released.HeldBy.UserID != "alice" {
		t.Fatalf("unexpected lock-released: %+v", released)
	}

	send(ctx, t, bob, proto.InboundTypeAcquireLock, proto.ContentData{Room: "doc-1", Content: "note-1"})
	mustRead(ctx, t, bob, proto.OutboundTypeLockGranted)
}

func TestWebSocketDisconnectReleasesLock(t *testing.T) {
	s := startCollabServer(t)
	s.grant(t, "alice", "doc-1", store.RoleEdit)
	s.grant(t, "bob", "doc-1", store.RoleEdit)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := s.dial(ctx, t, "alice", "Alice")
	bob := s.dial(ctx, t, "bob", "Bob")

	send(ctx, t, alice, proto.InboundTypeJoinRoom, proto.RoomData{Room: "doc-1"})
	mustRead(ctx, t, alice, proto.OutboundTypeRoomJoined)
	send(ctx, t, bob, proto.InboundTypeJoinRoom, proto.RoomData{Room: "doc-1"})
	mustRead(ctx, t, bob, proto.OutboundTypeRoomJoined)

	send(ctx, t, alice, proto.InboundTypeAcquireLock, proto.ContentData{Room: "doc-1", Content: "note-1"})
	mustRead(ctx, t, alice, proto.OutboundTypeLockGranted)

	alice.Close(websocket.StatusNormalClosure, "bye")

	var left proto.MemberEventData
	decodeData(t, mustRead(ctx, t, bob, proto.OutboundTypeMemberLeft), &left)
	if left.User.UserID != "alice" {
		t.Fatalf("unexpected member-left: %+v", left)
	}

	var released proto.LockReleasedData
	decodeData(t, mustRead(ctx, t, bob, proto.OutboundTypeLockReleased), &released)
	if released.Reason != "disconnected" {
		t.Fatalf("expected disconnected reason, got %q", released.Reason)
	}
}

func TestWebSocketTypingAndCursor(t *testing.T) {
	s := startCollabServer(t)
	s.grant(t, "alice", "doc-1", store.RoleEdit)
	s.grant(t, "bob", "doc-1", store.RoleView)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := s.dial(ctx, t, "alice", "Alice")
	bob := s.dial(ctx, t, "bob", "Bob")

	send(ctx, t, alice, proto.InboundTypeJoinRoom, proto.RoomData{Room: "doc-1"})
	mustRead(ctx, t, alice, proto.OutboundTypeRoomJoined)
	send(ctx, t, bob, proto.InboundTypeJoinRoom, proto.RoomData{Room: "doc-1"})
	mustRead(ctx, t, bob, proto.OutboundTypeRoomJoined)

	send(ctx, t, alice, proto.InboundTypeTypingStart, proto.ContentData{Room: "doc-1", Content: "note-1"})
	var typing proto.TypingChangedData
	decodeData(t, mustRead(ctx, t, bob, proto.OutboundTypeTypingChanged), &typing)
	if !typing.IsTyping || typing.User.UserID != "alice" {
		t.Fatalf("unexpected typing-changed: %+v", typing)
	}

	send(ctx, t, alice, proto.InboundTypeCursor, proto.CursorData{
		Room: "doc-1", Content: "note-1", Position: []byte(`{"line":7,"col":2}`),
	})
	var cursor proto.CursorUpdatedData
	decodeData(t, mustRead(ctx, t, bob, proto.OutboundTypeCursorUpdated), &cursor)
	if cursor.User.UserID != "alice" || string(cursor.Position) != `{"line":7,"col":2}` {
		t.Fatalf("unexpected cursor-updated: %+v", cursor)
	}

	send(ctx, t, alice, proto.InboundTypeTypingStop, proto.ContentData{Room: "doc-1", Content: "note-1"})
	decodeData(t, mustRead(ctx, t, bob, proto.OutboundTypeTypingChanged), &typing)
	if typing.IsTyping {
		t.Fatal("expected typing off")
	}
}

func TestWebSocketMalformedMessage(t *testing.T) {
	s := startCollabServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	alice := s.dial(ctx, t, "alice", "Alice")

	send(ctx, t, alice, "warp-drive", struct{}{})
	msg := mustRead(ctx, t, alice, proto.OutboundTypeError)
	if msg.Error == nil || msg.Error.Code != "bad_request" || msg.Error.Kind != "validation" {
		t.Fatalf("expected validation/bad_request error, got %+v", msg.Error)
	}

	// The connection survives a bad message.
	send(ctx, t, alice, proto.InboundTypeJoinRoom, proto.RoomData{})
	msg = mustRead(ctx, t, alice, proto.OutboundTypeError)
	if msg.Error == nil || msg.Error.Code != "bad_request" || msg.Error.Kind != "validation" {
		t.Fatalf("expected validation/bad_request error, got %+v", msg.Error)
	}
}
