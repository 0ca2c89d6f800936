package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cospace/cospace-server/internal/authz"
	"github.com/cospace/cospace-server/internal/log"
	"github.com/cospace/cospace-server/internal/store"
)

// stubAuth is a test Authorizer with switchable outcomes.
type stubAuth struct {
	denyConnect bool
	denyRooms   map[string]bool
	unavailable bool
}

func (s *stubAuth) AuthorizeConnect(_ context.Context, _ string) error {
	if s.unavailable {
		return authz.ErrUnavailable
	}
	if s.denyConnect {
		return authz.ErrDenied
	}
	return nil
}

func (s *stubAuth) AuthorizeRoom(_ context.Context, _, roomID string, _ authz.Capability) error {
	if s.unavailable {
		return authz.ErrUnavailable
	}
	if s.denyRooms[roomID] {
		return authz.ErrDenied
	}
	return nil
}

// memVersions is an in-memory VersionStore; set fail to simulate an
// unreachable database.
type memVersions struct {
	mu       sync.Mutex
	versions []*store.ContentVersion
	fail     bool
}

func (m *memVersions) AppendVersion(_ context.Context, v *store.ContentVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("store down")
	}
	v.ID = int64(len(m.versions) + 1)
	v.CreatedAt = time.Now()
	m.versions = append(m.versions, v)
	return nil
}

func (m *memVersions) ListVersions(_ context.Context, contentID string, limit int) ([]*store.ContentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.ContentVersion
	for i := len(m.versions) - 1; i >= 0; i-- {
		if m.versions[i].ContentID != contentID {
			continue
		}
		out = append(out, m.versions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memVersions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.versions)
}

func newTestEngine(auth Authorizer, versions store.VersionStore) *Engine {
	if auth == nil {
		auth = &stubAuth{}
	}
	if versions == nil {
		versions = &memVersions{}
	}
	return NewEngine(auth, versions, DefaultOptions(), log.Nop())
}

func newTestClient(userID string) *Client {
	return NewClient(uuid.New(), userID, "")
}

// connect registers the client, failing the test on refusal.
func connect(t *testing.T, e *Engine, c *Client) {
	t.Helper()
	if cerr := e.Connect(context.Background(), c); cerr != nil {
		t.Fatalf("connect %s: %v", c.Member.UserID, cerr)
	}
}

// join adds the client to the room and drains its snapshot event.
func join(t *testing.T, e *Engine, c *Client, roomID string) {
	t.Helper()
	if cerr := e.JoinRoom(context.Background(), c, roomID); cerr != nil {
		t.Fatalf("join %s -> %s: %v", c.Member.UserID, roomID, cerr)
	}
	mustEvent(t, c.Events, EventRoomJoined)
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent asserts that no event of the given kind is queued.
func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}
