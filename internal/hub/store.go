package hub

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/DoyleJ11/frc-plan-sync/internal/lobby"
	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

// SubscriberBuffer is how many snapshots a subscriber may fall behind
// before the session drops it.
const SubscriberBuffer = 16

// Store serves remote.Store from in-process session actors.
type Store struct {
	h      *Hub
	nextID atomic.Int64
}

var _ remote.Store = (*Store)(nil)

func NewStore(h *Hub) *Store { return &Store{h: h} }

// ask sends a request to an actor and waits for its reply without outliving
// ctx or the actor.
func ask[R any](ctx context.Context, inbox chan<- R, msg R, done <-chan struct{}) error {
	select {
	case inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return remote.ErrClosed
	}
}

func await[T any](ctx context.Context, reply <-chan T, done <-chan struct{}) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		return zero, remote.ErrClosed
	}
}

func (s *Store) lookup(ctx context.Context, code string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := ask[HubMsg](ctx, s.h.Inbox(), GetLobby{Code: remote.NormalizeCode(code), Reply: reply}, s.h.Done()); err != nil {
		return nil, err
	}
	lb, err := await[*lobby.Lobby](ctx, reply, s.h.Done())
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, fmt.Errorf("%s: %w", code, remote.ErrSessionNotFound)
	}
	return lb, nil
}

func (s *Store) view(ctx context.Context, lb *lobby.Lobby) (*remote.Session, error) {
	reply := make(chan lobby.View, 1)
	if err := ask[lobby.Msg](ctx, lb.Inbox(), lobby.GetState{Reply: reply}, lb.Done()); err != nil {
		return nil, err
	}
	v, err := await[lobby.View](ctx, reply, lb.Done())
	if err != nil {
		return nil, err
	}
	return &remote.Session{Code: v.Code, Version: v.Version, CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt}, nil
}

func (s *Store) GetSession(ctx context.Context, code string) (*remote.Session, error) {
	lb, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, lb)
}

func (s *Store) CreateSession(ctx context.Context, code string) (*remote.Session, error) {
	code = remote.NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("empty session code: %w", remote.ErrBadOp)
	}
	reply := make(chan Created, 1)
	if err := ask[HubMsg](ctx, s.h.Inbox(), CreateLobby{Code: code, Reply: reply}, s.h.Done()); err != nil {
		return nil, err
	}
	res, err := await[Created](ctx, reply, s.h.Done())
	if err != nil {
		return nil, err
	}
	if !res.Created {
		return nil, fmt.Errorf("%s: %w", code, remote.ErrSessionExists)
	}
	return s.view(ctx, res.Lobby)
}

func (s *Store) IncrementVersion(ctx context.Context, code string) (int64, error) {
	lb, err := s.lookup(ctx, code)
	if err != nil {
		return 0, err
	}
	reply := make(chan int64, 1)
	if err := ask[lobby.Msg](ctx, lb.Inbox(), lobby.Bump{Reply: reply}, lb.Done()); err != nil {
		return 0, err
	}
	return await[int64](ctx, reply, lb.Done())
}

func (s *Store) ListDocs(ctx context.Context, code string, c remote.Collection) ([]remote.Doc, error) {
	if !c.Valid() {
		return nil, remote.ErrBadCollection
	}
	lb, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	reply := make(chan []remote.Doc, 1)
	if err := ask[lobby.Msg](ctx, lb.Inbox(), lobby.List{Collection: c, Reply: reply}, lb.Done()); err != nil {
		return nil, err
	}
	return await[[]remote.Doc](ctx, reply, lb.Done())
}

func (s *Store) SetDoc(ctx context.Context, code string, c remote.Collection, id string, fields map[string]any) error {
	return s.BatchWrite(ctx, code, []remote.Op{{Kind: remote.OpSet, Collection: c, ID: id, Fields: fields}})
}

func (s *Store) UpdateDoc(ctx context.Context, code string, c remote.Collection, id string, partial map[string]any) error {
	return s.BatchWrite(ctx, code, []remote.Op{{Kind: remote.OpUpdate, Collection: c, ID: id, Fields: partial}})
}

func (s *Store) DeleteDoc(ctx context.Context, code string, c remote.Collection, id string) error {
	return s.BatchWrite(ctx, code, []remote.Op{{Kind: remote.OpDelete, Collection: c, ID: id}})
}

func (s *Store) BatchWrite(ctx context.Context, code string, ops []remote.Op) error {
	if len(ops) == 0 {
		return nil
	}
	lb, err := s.lookup(ctx, code)
	if err != nil {
		return err
	}
	reply := make(chan error, 1)
	if err := ask[lobby.Msg](ctx, lb.Inbox(), lobby.Write{Ops: ops, Reply: reply}, lb.Done()); err != nil {
		return err
	}
	werr, err := await[error](ctx, reply, lb.Done())
	if err != nil {
		return err
	}
	return werr
}

// Subscribe joins the session actor and relays its snapshots. When the actor
// drops the subscriber for falling behind, the subscription fails with
// remote.ErrDropped.
func (s *Store) Subscribe(ctx context.Context, code string, c remote.Collection) (*remote.Subscription, error) {
	if !c.Subscribable() {
		return nil, remote.ErrBadCollection
	}
	lb, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	clientID := fmt.Sprintf("sub-%d", s.nextID.Add(1))
	outbox := make(chan remote.Snapshot, SubscriberBuffer)
	if err := ask[lobby.Msg](ctx, lb.Inbox(), lobby.Join{ClientID: clientID, Collection: c, Outbox: outbox}, lb.Done()); err != nil {
		return nil, err
	}

	sub := remote.NewSubscription(SubscriberBuffer, func() {
		select {
		case lb.Inbox() <- lobby.Leave{ClientID: clientID}:
		case <-lb.Done():
		}
	})
	go func() {
		for snap := range outbox {
			if !sub.Send(snap) {
				// reader fell behind or closed; leave the session
				sub.Fail(remote.ErrDropped)
				sub.Close()
				break
			}
		}
		// the actor closed the outbox, on Leave or on its own
		sub.Fail(remote.ErrDropped)
		for range outbox {
		}
	}()
	return sub, nil
}
