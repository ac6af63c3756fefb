// Package remote defines the shared document store a session syncs through.
//
// A session holds three document collections plus a session document whose
// version counter goes up on every write. Implementations live in hub
// (in-process), pgstore (Postgres) and client (over HTTP).
package remote

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Collection string

const (
	Capabilities Collection = "capabilities"
	GamePlans    Collection = "gamePlans"
	Strategies   Collection = "strategies"
	// SessionDoc streams the session version instead of documents.
	SessionDoc Collection = "session"
)

// DataCollections are the collections that hold documents.
var DataCollections = []Collection{Capabilities, GamePlans, Strategies}

func (c Collection) Valid() bool {
	switch c {
	case Capabilities, GamePlans, Strategies:
		return true
	}
	return false
}

// Subscribable accepts the session pseudo-collection too.
func (c Collection) Subscribable() bool { return c.Valid() || c == SessionDoc }

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrDocNotFound     = errors.New("document not found")
	ErrBadCollection   = errors.New("unknown collection")
	ErrBadOp           = errors.New("invalid write operation")
	ErrDropped         = errors.New("subscriber dropped")
	ErrClosed          = errors.New("store closed")
)

type Doc struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type Session struct {
	Code      string    `json:"code"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is the full ordered content of one collection. For SessionDoc
// only Version is meaningful.
type Snapshot struct {
	Collection Collection `json:"collection"`
	Version    int64      `json:"version"`
	Docs       []Doc      `json:"docs,omitempty"`
}

type OpKind string

const (
	OpSet    OpKind = "set"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

type Op struct {
	Kind       OpKind         `json:"kind"`
	Collection Collection     `json:"collection"`
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields,omitempty"`
}

func (o Op) Validate() error {
	if !o.Collection.Valid() {
		return ErrBadCollection
	}
	if o.ID == "" {
		return ErrBadOp
	}
	switch o.Kind {
	case OpSet, OpUpdate, OpDelete:
		return nil
	}
	return ErrBadOp
}

// Store is the remote document store, addressed by session code.
type Store interface {
	GetSession(ctx context.Context, code string) (*Session, error)
	CreateSession(ctx context.Context, code string) (*Session, error)
	// IncrementVersion bumps the session version and returns the new value.
	IncrementVersion(ctx context.Context, code string) (int64, error)

	ListDocs(ctx context.Context, code string, c Collection) ([]Doc, error)
	SetDoc(ctx context.Context, code string, c Collection, id string, fields map[string]any) error
	UpdateDoc(ctx context.Context, code string, c Collection, id string, partial map[string]any) error
	DeleteDoc(ctx context.Context, code string, c Collection, id string) error
	// BatchWrite applies every op or none.
	BatchWrite(ctx context.Context, code string, ops []Op) error

	// Subscribe delivers the current snapshot at once and another after
	// every change to the collection.
	Subscribe(ctx context.Context, code string, c Collection) (*Subscription, error)
}

// NormalizeCode folds case so differently typed codes reach the same session.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
