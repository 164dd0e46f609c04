// Package postgres provides a Postgres-backed persistent store. Reads are
// served by the embedded memory store; every committed change set is written
// to natively partitioned tables in the same step.
//
// The tables are loaded into memory once, by NewStore, and never re-read.
// One process owns a schema at a time: rows written by another process stay
// invisible until this store is reopened, and concurrent writers from two
// processes can violate the uniqueness checks the memory store enforces.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/jmoiron/sqlx"

	"rawmatqc/internal/entitymodel/sqlbundle"
	"rawmatqc/internal/infra/persistence/memory"
	"rawmatqc/internal/infra/persistence/relational"
	"rawmatqc/internal/partition"
	"rawmatqc/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/rawmatqc?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Options configures NewStore.
type Options struct {
	DSN    string
	Schema string
	Router *partition.Router
	Engine *domain.RulesEngine
}

// Store persists QC records to Postgres while reusing the in-memory
// implementation for transactions.
type Store struct {
	*memory.Store
	db     *sqlx.DB
	layout relational.Layout
}

// NewStore opens Postgres, applies the partitioned DDL for every declared
// range, verifies the recorded ranges and hydrates the memory store.
func NewStore(ctx context.Context, opts Options, memOpts ...memory.Option) (*Store, error) {
	dsn := opts.DSN
	if dsn == "" {
		dsn = defaultDSN
	}
	schema := opts.Schema
	if schema == "" {
		schema = sqlbundle.DefaultPostgresSchema
	}
	router := opts.Router
	if router == nil {
		router = partition.DefaultRouter()
	}
	openMu.Lock()
	raw, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db := sqlx.NewDb(raw, defaultDriver)
	layout := relational.Layout{Dialect: sqlbundle.DialectPostgres, Schema: schema}
	mem, err := relational.Open(ctx, db, layout, router, opts.Engine, memOpts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: mem, db: db, layout: layout}, nil
}

// DB exposes the underlying database handle for integration testing hooks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Schema returns the Postgres schema holding the tables.
func (s *Store) Schema() string { return s.layout.Schema }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
