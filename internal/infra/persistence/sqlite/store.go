// Package sqlite provides the embedded SQLite-backed persistent store. It keeps
// the registry in memory for reads and writes every change set to normalized
// tables before the change becomes visible.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"kittycore/internal/entitymodel/sqlbundle"
	"kittycore/internal/infra/persistence/memory"
	"kittycore/internal/infra/persistence/sqlstate"
	"kittycore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "kittycore.db"

// Store persists the registry to a SQLite file.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the SQLite database at path, applies the schema
// and hydrates the in-memory layer from it. opts configure that layer.
func NewStore(ctx context.Context, path string, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps writes serialized at the driver level too
	db.SetMaxOpenConns(1)
	if err := sqlstate.ApplyDDL(ctx, db, sqlbundle.SQLite()); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshot, err := sqlstate.Load(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, path: path}
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
	return sqlstate.WriteChanges(ctx, s.db, sqlstate.SQLite, changes)
}

func (s *Store) replace(ctx context.Context, snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sqlstate.ReplaceAll(ctx, s.db, sqlstate.SQLite, snapshot)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
