package lobby

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan remote.Snapshot, within time.Duration) remote.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return remote.Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan remote.Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
		// good: no snapshot
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func write(t *testing.T, l *Lobby, ops ...remote.Op) error {
	t.Helper()
	reply := make(chan error, 1)
	l.Inbox() <- Write{Ops: ops, Reply: reply}
	select {
	case err := <-reply:
		return err
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timed out waiting for write")
		return nil
	}
}

func setCap(id string, rank int, title string) remote.Op {
	return remote.Op{
		Kind:       remote.OpSet,
		Collection: remote.Capabilities,
		ID:         id,
		Fields:     map[string]any{"rank": rank, "title": title},
	}
}

func TestLobby_Write_BroadcastsOrderedSnapshot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, "abc123", nil)

	clientOut := make(chan remote.Snapshot, 4)
	l.Inbox() <- Join{ClientID: "c1", Collection: remote.Capabilities, Outbox: clientOut}

	first := recvSnapshot(t, clientOut, 100*time.Millisecond)
	if len(first.Docs) != 0 {
		t.Fatalf("after join: expected empty collection, got %+v", first.Docs)
	}

	if err := write(t, l, setCap("b", 2, "Climb"), setCap("a", 1, "Score")); err != nil {
		t.Fatalf("write: %v", err)
	}

	next := recvSnapshot(t, clientOut, 100*time.Millisecond)
	if len(next.Docs) != 2 || next.Docs[0].ID != "a" || next.Docs[1].ID != "b" {
		t.Fatalf("expected docs ordered by rank, got %+v", next.Docs)
	}
	if next.Docs[0].Fields["rank"] != 1.0 {
		t.Fatalf("expected fields normalized to JSON numbers, got %T", next.Docs[0].Fields["rank"])
	}
}

func TestLobby_Write_OnlyNotifiesThatCollection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, "abc123", nil)

	stratOut := make(chan remote.Snapshot, 4)
	l.Inbox() <- Join{ClientID: "s1", Collection: remote.Strategies, Outbox: stratOut}
	recvSnapshot(t, stratOut, 100*time.Millisecond)

	if err := write(t, l, setCap("a", 1, "Score")); err != nil {
		t.Fatalf("write: %v", err)
	}
	recvNoSnapshot(t, stratOut, 50*time.Millisecond)
}

func TestLobby_Write_BatchIsAtomic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, "abc123", nil)

	err := write(t, l,
		setCap("a", 1, "Score"),
		remote.Op{Kind: remote.OpUpdate, Collection: remote.Capabilities, ID: "missing", Fields: map[string]any{"rank": 2}},
	)
	if !errors.Is(err, remote.ErrDocNotFound) {
		t.Fatalf("expected ErrDocNotFound, got %v", err)
	}

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)
	if view.Counts[remote.Capabilities] != 0 {
		t.Fatalf("failed batch must not apply any op; count=%d", view.Counts[remote.Capabilities])
	}
}

func TestLobby_Update_MergesFields(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, "abc123", nil)
	if err := write(t, l, setCap("a", 1, "Score")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := write(t, l, remote.Op{Kind: remote.OpUpdate, Collection: remote.Capabilities, ID: "a", Fields: map[string]any{"rank": 3}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	reply := make(chan []remote.Doc, 1)
	l.Inbox() <- List{Collection: remote.Capabilities, Reply: reply}
	docs := <-reply
	if len(docs) != 1 || docs[0].Fields["title"] != "Score" || docs[0].Fields["rank"] != 3.0 {
		t.Fatalf("expected merged doc, got %+v", docs)
	}
}

func TestLobby_Bump_BroadcastsVersion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, "abc123", nil)

	sessOut := make(chan remote.Snapshot, 4)
	l.Inbox() <- Join{ClientID: "v1", Collection: remote.SessionDoc, Outbox: sessOut}
	first := recvSnapshot(t, sessOut, 100*time.Millisecond)
	if first.Version != 0 {
		t.Fatalf("after join: want version=0, got %d", first.Version)
	}

	reply := make(chan int64, 1)
	l.Inbox() <- Bump{Reply: reply}
	if v := <-reply; v != 1 {
		t.Fatalf("bump: want 1, got %d", v)
	}
	next := recvSnapshot(t, sessOut, 100*time.Millisecond)
	if next.Version != 1 {
		t.Fatalf("after bump: want version=1, got %d", next.Version)
	}
}

func TestLobby_DropSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, "abc123", nil)

	clientOut := make(chan remote.Snapshot, 1)
	l.Inbox() <- Join{ClientID: "c1", Collection: remote.Capabilities, Outbox: clientOut}

	// the join snapshot fills the buffer, so this broadcast cannot be delivered
	if err := write(t, l, setCap("a", 1, "Score")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, 100*time.Millisecond)

	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
}

func TestLobby_Leave_ClosesOutbox(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLobby(ctx, "abc123", nil)

	clientOut := make(chan remote.Snapshot, 2)
	l.Inbox() <- Join{ClientID: "c1", Collection: remote.GamePlans, Outbox: clientOut}
	recvSnapshot(t, clientOut, 100*time.Millisecond)

	l.Inbox() <- Leave{ClientID: "c1"}
	select {
	case _, ok := <-clientOut:
		if ok {
			t.Fatalf("expected outbox closed after leave")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("outbox not closed after leave")
	}
}

func TestLobby_Shutdown_ClosesClients(t *testing.T) {
	l := NewLobby(context.Background(), "abc123", nil)

	clientOut := make(chan remote.Snapshot, 2)
	l.Inbox() <- Join{ClientID: "c1", Collection: remote.Strategies, Outbox: clientOut}
	recvSnapshot(t, clientOut, 100*time.Millisecond)

	l.Inbox() <- Shutdown{}
	select {
	case <-l.Done():
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("lobby did not stop")
	}
	if _, ok := <-clientOut; ok {
		t.Fatalf("expected outbox closed on shutdown")
	}
}
