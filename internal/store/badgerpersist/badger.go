// Package badgerpersist saves local store state in an embedded BadgerDB so a
// restart comes back with the last known data before any sync completes.
package badgerpersist

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in RAM; used by tests.
	InMemory   bool
	SyncWrites bool
	Logger     *zap.Logger
}

// Open opens (creating if needed) the database described by cfg. The caller
// closes it.
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&zapLogger{l: cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// zapLogger adapts zap to badger.Logger.
type zapLogger struct {
	l *zap.SugaredLogger
}

func (z *zapLogger) Errorf(format string, args ...interface{})   { z.l.Errorf(format, args...) }
func (z *zapLogger) Warningf(format string, args ...interface{}) { z.l.Warnf(format, args...) }
func (z *zapLogger) Infof(format string, args ...interface{})    { z.l.Debugf(format, args...) }
func (z *zapLogger) Debugf(format string, args ...interface{})   { z.l.Debugf(format, args...) }

// Persister stores one state blob under a per-session key.
type Persister struct {
	db  *badger.DB
	key []byte
}

// New returns a persister for the named slot, usually the session code.
func New(db *badger.DB, name string) *Persister {
	if name == "" {
		name = "local"
	}
	return &Persister{db: db, key: []byte("planner/state/" + name)}
}

func (p *Persister) Load() ([]byte, error) {
	var out []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(p.key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", p.key, err)
	}
	return out, nil
}

func (p *Persister) Save(data []byte) error {
	err := p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(p.key, data)
	})
	if err != nil {
		return fmt.Errorf("save state %s: %w", p.key, err)
	}
	return nil
}
