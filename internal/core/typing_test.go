package core

import (
	"testing"
	"time"
)

func TestTypingStartStopTransitions(t *testing.T) {
	typ := NewTyping(5 * time.Second)
	alice := newTestClient("alice")
	now := time.Now()

	if !typ.Start(alice, "doc-1", "note-1", now) {
		t.Fatal("first start is a transition")
	}
	if typ.Start(alice, "doc-1", "note-1", now.Add(time.Second)) {
		t.Fatal("refresh is not a transition")
	}

	state, ok := typ.Stop("alice", "doc-1", "note-1")
	if !ok {
		t.Fatal("stop must clear the active flag")
	}
	if state.Member.UserID != "alice" || state.Room != "doc-1" {
		t.Fatalf("unexpected cleared state: %+v", state)
	}
	if _, ok := typ.Stop("alice", "doc-1", "note-1"); ok {
		t.Fatal("stop without an active flag is a no-op")
	}
}

func TestTypingRefreshExtendsExpiry(t *testing.T) {
	typ := NewTyping(5 * time.Second)
	alice := newTestClient("alice")
	start := time.Now()

	typ.Start(alice, "doc-1", "note-1", start)
	typ.Start(alice, "doc-1", "note-1", start.Add(4*time.Second))

	if cleared := typ.SweepExpired(start.Add(6 * time.Second)); len(cleared) != 0 {
		t.Fatal("refreshed flag must survive the original deadline")
	}
	cleared := typ.SweepExpired(start.Add(10 * time.Second))
	if len(cleared) != 1 {
		t.Fatalf("expected 1 expired flag, got %d", len(cleared))
	}
}

func TestTypingClearConnectionRoom(t *testing.T) {
	typ := NewTyping(5 * time.Second)
	tab1 := newTestClient("alice")
	tab2 := newTestClient("alice")
	now := time.Now()

	typ.Start(tab1, "doc-1", "note-1", now)
	typ.Start(tab2, "doc-2", "note-2", now)

	// Closing tab1 must not clear the flag tab2 owns.
	cleared := typ.ClearConnectionRoom(tab1.ID, "doc-1")
	if len(cleared) != 1 || cleared[0].Room != "doc-1" {
		t.Fatalf("unexpected cleared flags: %+v", cleared)
	}
	if typ.Len() != 1 {
		t.Fatalf("tab2's flag must survive, got %d active", typ.Len())
	}
}

func TestTypingClearConnection(t *testing.T) {
	typ := NewTyping(5 * time.Second)
	alice := newTestClient("alice")
	now := time.Now()

	typ.Start(alice, "doc-1", "note-1", now)
	typ.Start(alice, "doc-2", "note-2", now)

	cleared := typ.ClearConnection(alice.ID)
	if len(cleared) != 2 {
		t.Fatalf("expected both flags cleared, got %d", len(cleared))
	}
	if typ.Len() != 0 {
		t.Fatal("no flags should remain")
	}
}
