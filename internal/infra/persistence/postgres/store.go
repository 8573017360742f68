// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics while writing each change set to normalized tables.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"kittycore/internal/entitymodel/sqlbundle"
	"kittycore/internal/infra/persistence/memory"
	"kittycore/internal/infra/persistence/sqlstate"
	"kittycore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/kittycore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to defaultDSN).
// It applies the registry DDL and hydrates the in-memory layer from the tables.
// opts configure that layer.
func NewStore(ctx context.Context, dsn string, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := sqlstate.ApplyDDL(ctx, db, sqlbundle.Postgres()); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshot, err := sqlstate.Load(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	s.Store = memory.NewStore(append(opts,
		memory.WithCommitHook(s.persist),
		memory.WithRestoreHook(s.replace),
	)...)
	s.ImportState(snapshot)
	return s, nil
}

func (s *Store) persist(ctx context.Context, changes domain.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sqlstate.WriteChanges(ctx, s.db, sqlstate.Postgres, changes)
}

func (s *Store) replace(ctx context.Context, snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sqlstate.ReplaceAll(ctx, s.db, sqlstate.Postgres, snapshot)
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

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
