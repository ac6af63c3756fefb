package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DoyleJ11/frc-plan-sync/internal/lobby"
	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

func TestHub_Create_Get_SamePointer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewHub(ctx, nil)

	created := make(chan Created, 1)
	h.Inbox() <- CreateLobby{Code: "zed123", Reply: created}
	first := <-created
	if !first.Created {
		t.Fatalf("expected a new lobby")
	}

	h.Inbox() <- CreateLobby{Code: "zed123", Reply: created}
	again := <-created
	if again.Created || again.Lobby != first.Lobby {
		t.Fatalf("second create should return the existing lobby")
	}

	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- GetLobby{Code: "zed123", Reply: reply}
	if lb := <-reply; lb != first.Lobby {
		t.Fatalf("expected same lobby pointer")
	}
}

func recvSnap(t *testing.T, sub *remote.Subscription) remote.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C:
		if !ok {
			t.Fatalf("subscription closed unexpectedly: %v", sub.Err())
		}
		return snap
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timed out waiting for snapshot")
		return remote.Snapshot{}
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewStore(NewHub(ctx, nil))
}

func TestStore_SessionLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.GetSession(ctx, "abc123"); !errors.Is(err, remote.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	sess, err := s.CreateSession(ctx, "ABC123")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Code != "abc123" || sess.Version != 0 {
		t.Fatalf("unexpected session %+v", sess)
	}

	if _, err := s.CreateSession(ctx, "abc123"); !errors.Is(err, remote.ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}

	v, err := s.IncrementVersion(ctx, "Abc123")
	if err != nil || v != 1 {
		t.Fatalf("increment: v=%d err=%v", v, err)
	}
	got, err := s.GetSession(ctx, "abc123")
	if err != nil || got.Version != 1 {
		t.Fatalf("get after increment: %+v %v", got, err)
	}
}

func TestStore_DocsAndSubscribe(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.CreateSession(ctx, "abc123"); err != nil {
		t.Fatalf("create: %v", err)
	}

	sub, err := s.Subscribe(ctx, "abc123", remote.Strategies)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()
	if snap := recvSnap(t, sub); len(snap.Docs) != 0 {
		t.Fatalf("expected empty initial snapshot, got %+v", snap.Docs)
	}

	if err := s.SetDoc(ctx, "abc123", remote.Strategies, "s1", map[string]any{"rank": 1, "title": "Cycle"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	snap := recvSnap(t, sub)
	if len(snap.Docs) != 1 || snap.Docs[0].ID != "s1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if err := s.UpdateDoc(ctx, "abc123", remote.Strategies, "nope", map[string]any{"rank": 2}); !errors.Is(err, remote.ErrDocNotFound) {
		t.Fatalf("expected ErrDocNotFound, got %v", err)
	}

	if err := s.DeleteDoc(ctx, "abc123", remote.Strategies, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if snap := recvSnap(t, sub); len(snap.Docs) != 0 {
		t.Fatalf("expected empty snapshot after delete, got %+v", snap.Docs)
	}

	docs, err := s.ListDocs(ctx, "abc123", remote.Strategies)
	if err != nil || len(docs) != 0 {
		t.Fatalf("list: %+v %v", docs, err)
	}
}

func TestStore_SubscribeClose(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.CreateSession(ctx, "abc123"); err != nil {
		t.Fatalf("create: %v", err)
	}
	sub, err := s.Subscribe(ctx, "abc123", remote.SessionDoc)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	recvSnap(t, sub)
	sub.Close()
	if sub.Err() != nil {
		t.Fatalf("close by the reader is not an error: %v", sub.Err())
	}
}

func TestStore_UnknownSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Subscribe(ctx, "nope", remote.Capabilities); !errors.Is(err, remote.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := s.BatchWrite(ctx, "nope", []remote.Op{{Kind: remote.OpDelete, Collection: remote.Capabilities, ID: "x"}}); !errors.Is(err, remote.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
