// Package pgstore keeps sessions and their documents in Postgres so the
// server survives restarts. Writes announce themselves with pg_notify and
// subscribers LISTEN on a dedicated connection.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
)

// Channel is the LISTEN/NOTIFY channel. Payloads are "<code>|<collection>".
const Channel = "planner_changes"

type SessionRow struct {
	Code      string    `gorm:"primaryKey;type:text"`
	Version   int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (SessionRow) TableName() string { return "planner_sessions" }

type DocumentRow struct {
	SessionCode string         `gorm:"primaryKey;type:text;column:session_code"`
	Collection  string         `gorm:"primaryKey;type:text"`
	DocID       string         `gorm:"primaryKey;type:text;column:doc_id"`
	Fields      datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt   time.Time      `gorm:"not null;default:now();index"`
}

func (DocumentRow) TableName() string { return "planner_documents" }

type Store struct {
	db  *gorm.DB
	dsn string
	log *zap.Logger
}

var _ remote.Store = (*Store)(nil)

// Open connects and migrates the schema.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&SessionRow{}, &DocumentRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, dsn: dsn, log: log}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toSession(row SessionRow) *remote.Session {
	return &remote.Session{Code: row.Code, Version: row.Version, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}
}

func sessionExists(tx *gorm.DB, code string) error {
	var n int64
	if err := tx.Model(&SessionRow{}).Where("code = ?", code).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", code, remote.ErrSessionNotFound)
	}
	return nil
}

func notify(tx *gorm.DB, code string, c remote.Collection) error {
	return tx.Exec("SELECT pg_notify(?, ?)", Channel, code+"|"+string(c)).Error
}

func (s *Store) GetSession(ctx context.Context, code string) (*remote.Session, error) {
	code = remote.NormalizeCode(code)
	var row SessionRow
	err := s.db.WithContext(ctx).First(&row, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", code, remote.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", code, err)
	}
	return toSession(row), nil
}

func (s *Store) CreateSession(ctx context.Context, code string) (*remote.Session, error) {
	code = remote.NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("empty session code: %w", remote.ErrBadOp)
	}
	now := time.Now().UTC()
	row := SessionRow{Code: code, CreatedAt: now, UpdatedAt: now}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("create session %s: %w", code, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%s: %w", code, remote.ErrSessionExists)
	}
	s.log.Info("session created", zap.String("session", code))
	return toSession(row), nil
}

func (s *Store) IncrementVersion(ctx context.Context, code string) (int64, error) {
	code = remote.NormalizeCode(code)
	var version int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Raw("UPDATE planner_sessions SET version = version + 1, updated_at = now() WHERE code = ? RETURNING version", code).Scan(&version)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s: %w", code, remote.ErrSessionNotFound)
		}
		return notify(tx, code, remote.SessionDoc)
	})
	if err != nil {
		return 0, fmt.Errorf("increment version: %w", err)
	}
	return version, nil
}

func (s *Store) listDocs(tx *gorm.DB, code string, c remote.Collection) ([]remote.Doc, error) {
	var rows []DocumentRow
	if err := tx.Where("session_code = ? AND collection = ?", code, string(c)).Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]remote.Doc, 0, len(rows))
	for _, row := range rows {
		doc, err := toDoc(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	remote.SortDocs(c, docs)
	return docs, nil
}

func toDoc(row DocumentRow) (remote.Doc, error) {
	var fields map[string]any
	if err := json.Unmarshal(row.Fields, &fields); err != nil {
		return remote.Doc{}, fmt.Errorf("decode %s/%s: %w", row.Collection, row.DocID, err)
	}
	return remote.Doc{ID: row.DocID, Fields: fields}, nil
}

func (s *Store) ListDocs(ctx context.Context, code string, c remote.Collection) ([]remote.Doc, error) {
	if !c.Valid() {
		return nil, remote.ErrBadCollection
	}
	code = remote.NormalizeCode(code)
	tx := s.db.WithContext(ctx)
	if err := sessionExists(tx, code); err != nil {
		return nil, err
	}
	docs, err := s.listDocs(tx, code, c)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	return docs, nil
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

// BatchWrite runs every op in one transaction and notifies each touched
// collection once on commit.
func (s *Store) BatchWrite(ctx context.Context, code string, ops []remote.Op) error {
	if len(ops) == 0 {
		return nil
	}
	code = remote.NormalizeCode(code)
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := sessionExists(tx, code); err != nil {
			return err
		}
		touched := make(map[remote.Collection]bool)
		for i, op := range ops {
			if err := s.applyOp(tx, code, op); err != nil {
				return fmt.Errorf("op %d %s/%s: %w", i, op.Collection, op.ID, err)
			}
			touched[op.Collection] = true
		}
		for _, c := range remote.DataCollections {
			if !touched[c] {
				continue
			}
			if err := notify(tx, code, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) applyOp(tx *gorm.DB, code string, op remote.Op) error {
	key := DocumentRow{SessionCode: code, Collection: string(op.Collection), DocID: op.ID}
	switch op.Kind {
	case remote.OpDelete:
		return tx.Where("session_code = ? AND collection = ? AND doc_id = ?", code, string(op.Collection), op.ID).
			Delete(&DocumentRow{}).Error

	case remote.OpUpdate:
		var row DocumentRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("session_code = ? AND collection = ? AND doc_id = ?", code, string(op.Collection), op.ID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return remote.ErrDocNotFound
		}
		if err != nil {
			return err
		}
		existing, err := toDoc(row)
		if err != nil {
			return err
		}
		return s.upsert(tx, key, remote.Merge(existing.Fields, op.Fields))

	default:
		return s.upsert(tx, key, op.Fields)
	}
}

func (s *Store) upsert(tx *gorm.DB, row DocumentRow, fields map[string]any) error {
	fields, err := remote.NormalizeFields(fields)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	row.Fields = datatypes.JSON(raw)
	row.UpdatedAt = time.Now().UTC()
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_code"}, {Name: "collection"}, {Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fields", "updated_at"}),
	}).Create(&row).Error
}

// Subscribe opens a dedicated connection that LISTENs for changes and
// re-reads the collection on each matching notification.
func (s *Store) Subscribe(ctx context.Context, code string, c remote.Collection) (*remote.Subscription, error) {
	if !c.Subscribable() {
		return nil, remote.ErrBadCollection
	}
	code = remote.NormalizeCode(code)

	initial, err := s.snapshot(ctx, code, c)
	if err != nil {
		return nil, err
	}

	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	sub := remote.NewSubscription(16, cancel)
	sub.Send(initial)

	go func() {
		defer conn.Close(context.Background())
		for {
			n, err := conn.WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					s.log.Warn("listen failed", zap.String("session", code), zap.Error(err))
					sub.Fail(err)
				}
				return
			}
			ncode, ncoll, ok := strings.Cut(n.Payload, "|")
			if !ok || ncode != code || remote.Collection(ncoll) != c {
				continue
			}
			snap, err := s.snapshot(subCtx, code, c)
			if err != nil {
				if subCtx.Err() == nil {
					sub.Fail(err)
				}
				return
			}
			if !sub.Send(snap) {
				sub.Fail(remote.ErrDropped)
				cancel()
				return
			}
		}
	}()
	return sub, nil
}

func (s *Store) snapshot(ctx context.Context, code string, c remote.Collection) (remote.Snapshot, error) {
	sess, err := s.GetSession(ctx, code)
	if err != nil {
		return remote.Snapshot{}, err
	}
	snap := remote.Snapshot{Collection: c, Version: sess.Version}
	if c == remote.SessionDoc {
		return snap, nil
	}
	snap.Docs, err = s.listDocs(s.db.WithContext(ctx), code, c)
	if err != nil {
		return remote.Snapshot{}, fmt.Errorf("list %s: %w", c, err)
	}
	return snap, nil
}
