// Package sqlite provides a SQLite-backed persistent store. Each declared
// partition gets its own physical table pair and every committed change set
// is written through to those tables. The file is loaded once at open, so a
// database file must be owned by a single process.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"rawmatqc/internal/entitymodel/sqlbundle"
	"rawmatqc/internal/infra/persistence/memory"
	"rawmatqc/internal/infra/persistence/relational"
	"rawmatqc/internal/partition"
	"rawmatqc/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "qcstore.db"

// Store persists QC records to SQLite while serving reads from memory.
type Store struct {
	*memory.Store
	db   *sqlx.DB
	path string
}

// NewStore opens (or creates) the database at path, migrates the schema for
// the router's partitions and hydrates the memory store from it.
func NewStore(ctx context.Context, path string, router *partition.Router, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if router == nil {
		router = partition.DefaultRouter()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	mem, err := relational.Open(ctx, db, relational.Layout{Dialect: sqlbundle.DialectSQLite}, router, engine, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: mem, db: db, path: path}, nil
}

// dsn enables foreign keys on every pooled connection.
func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// DB exposes the underlying database handle for integration testing hooks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
