// Package lobby runs one actor goroutine per session. The actor owns the
// session's document collections and version counter; everything else talks
// to it through its inbox.
package lobby

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

type Msg interface{ isLobbyMsg() }

// Write applies a batch of ops atomically.
type Write struct {
	Ops   []remote.Op
	Reply chan error
}

func (Write) isLobbyMsg() {}

type List struct {
	Collection remote.Collection
	Reply      chan []remote.Doc
}

func (List) isLobbyMsg() {}

// Bump increments the session version.
type Bump struct {
	Reply chan int64
}

func (Bump) isLobbyMsg() {}

type Join struct {
	ClientID   string
	Collection remote.Collection
	Outbox     chan remote.Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type View struct {
	Code       string
	Version    int64
	NumClients int
	Counts     map[remote.Collection]int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type subscriber struct {
	collection remote.Collection
	outbox     chan remote.Snapshot
}

type Lobby struct {
	inbox     chan Msg
	code      string
	version   int64
	createdAt time.Time
	updatedAt time.Time
	docs      map[remote.Collection]map[string]map[string]any
	clients   map[string]subscriber
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewLobby(parent context.Context, code string, log *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now().UTC()

	l := &Lobby{
		inbox:     make(chan Msg, 64),
		code:      code,
		createdAt: now,
		updatedAt: now,
		docs:      make(map[remote.Collection]map[string]map[string]any),
		clients:   make(map[string]subscriber),
		log:       log.With(zap.String("session", code)),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, c := range remote.DataCollections {
		l.docs[c] = make(map[string]map[string]any)
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.clients[msg.ClientID] = subscriber{collection: msg.Collection, outbox: msg.Outbox}
				msg.Outbox <- l.snapshot(msg.Collection)

			case Leave:
				if sub, ok := l.clients[msg.ClientID]; ok {
					close(sub.outbox)
					delete(l.clients, msg.ClientID)
				}

			case List:
				msg.Reply <- l.snapshot(msg.Collection).Docs

			case Write:
				touched, err := l.apply(msg.Ops)
				msg.Reply <- err
				if err != nil {
					l.log.Debug("write rejected", zap.Int("ops", len(msg.Ops)), zap.Error(err))
					break
				}
				l.updatedAt = time.Now().UTC()
				for _, c := range remote.DataCollections {
					if touched[c] {
						l.broadcast(l.snapshot(c))
					}
				}

			case Bump:
				l.version++
				l.updatedAt = time.Now().UTC()
				msg.Reply <- l.version
				l.broadcast(l.snapshot(remote.SessionDoc))

			case GetState:
				counts := make(map[remote.Collection]int, len(l.docs))
				for c, docs := range l.docs {
					counts[c] = len(docs)
				}
				msg.Reply <- View{
					Code:       l.code,
					Version:    l.version,
					NumClients: len(l.clients),
					Counts:     counts,
					CreatedAt:  l.createdAt,
					UpdatedAt:  l.updatedAt,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// apply validates every op against a scratch view of document existence
// before touching state, so a failed batch leaves nothing behind.
func (l *Lobby) apply(ops []remote.Op) (map[remote.Collection]bool, error) {
	exists := make(map[remote.Collection]map[string]bool)
	has := func(c remote.Collection, id string) bool {
		if v, ok := exists[c][id]; ok {
			return v
		}
		_, ok := l.docs[c][id]
		return ok
	}
	mark := func(c remote.Collection, id string, v bool) {
		if exists[c] == nil {
			exists[c] = make(map[string]bool)
		}
		exists[c][id] = v
	}

	normalized := make([]map[string]any, len(ops))
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		switch op.Kind {
		case remote.OpSet:
			mark(op.Collection, op.ID, true)
		case remote.OpUpdate:
			if !has(op.Collection, op.ID) {
				return nil, fmt.Errorf("op %d %s/%s: %w", i, op.Collection, op.ID, remote.ErrDocNotFound)
			}
		case remote.OpDelete:
			mark(op.Collection, op.ID, false)
		}
		if op.Kind != remote.OpDelete {
			fields, err := remote.NormalizeFields(op.Fields)
			if err != nil {
				return nil, fmt.Errorf("op %d: %w", i, err)
			}
			normalized[i] = fields
		}
	}

	touched := make(map[remote.Collection]bool)
	for i, op := range ops {
		docs := l.docs[op.Collection]
		switch op.Kind {
		case remote.OpSet:
			docs[op.ID] = normalized[i]
		case remote.OpUpdate:
			docs[op.ID] = remote.Merge(docs[op.ID], normalized[i])
		case remote.OpDelete:
			delete(docs, op.ID)
		}
		touched[op.Collection] = true
	}
	return touched, nil
}

// snapshot copies a collection so receivers never share maps with the actor.
func (l *Lobby) snapshot(c remote.Collection) remote.Snapshot {
	snap := remote.Snapshot{Collection: c, Version: l.version}
	if c == remote.SessionDoc {
		return snap
	}
	docs := l.docs[c]
	snap.Docs = make([]remote.Doc, 0, len(docs))
	for id, fields := range docs {
		snap.Docs = append(snap.Docs, remote.Doc{ID: id, Fields: remote.Merge(fields, nil)})
	}
	remote.SortDocs(c, snap.Docs)
	return snap
}

func (l *Lobby) shutdown() {
	for id, sub := range l.clients {
		close(sub.outbox) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap remote.Snapshot) {
	for id, sub := range l.clients {
		if sub.collection != snap.Collection {
			continue
		}
		select {
		case sub.outbox <- snap:
		default:
			// Client is slow/full - drop them.
			l.log.Warn("dropping slow subscriber", zap.String("client", id), zap.String("collection", string(snap.Collection)))
			close(sub.outbox)
			delete(l.clients, id)
		}
	}
}

func (l *Lobby) Code() string { return l.code }

// Done is closed once the actor has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

// Expose the inbox so the hub and tests can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }
