// Package sqlstate maps registry change sets and snapshots onto the normalized
// SQL tables shared by the sqlite and postgres stores.
package sqlstate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"kittycore/internal/entitymodel/sqlbundle"
	"kittycore/pkg/domain"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	// SQLite uses positional "?" placeholders.
	SQLite Dialect = iota
	// Postgres uses numbered "$n" placeholders.
	Postgres
)

const totalCounterName = "total"

// Rebind rewrites "?" placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ApplyDDL executes each statement of a DDL bundle in order.
func ApplyDDL(ctx context.Context, db Execer, ddl string) error {
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// Load reads the complete registry state and refuses tables that break the
// registry invariants.
func Load(ctx context.Context, db Querier) (domain.Snapshot, error) {
	snapshot := domain.Snapshot{
		Owners:      map[domain.EntityID]domain.Identity{},
		OwnedCounts: map[domain.Identity]uint32{},
	}

	if err := scanRows(ctx, db, `SELECT id, genome FROM creatures ORDER BY id`, func(rows *sql.Rows) error {
		var id int64
		var genome []byte
		if err := rows.Scan(&id, &genome); err != nil {
			return err
		}
		if len(genome) != domain.GenomeSize {
			return fmt.Errorf("creature %d: genome has %d bytes", id, len(genome))
		}
		c := domain.Creature{ID: domain.EntityID(id)}
		copy(c.Genome[:], genome)
		snapshot.Creatures = append(snapshot.Creatures, c)
		return nil
	}); err != nil {
		return domain.Snapshot{}, fmt.Errorf("load creatures: %w", err)
	}

	if err := scanRows(ctx, db, `SELECT creature_id, owner FROM creature_owners`, func(rows *sql.Rows) error {
		var id int64
		var owner string
		if err := rows.Scan(&id, &owner); err != nil {
			return err
		}
		snapshot.Owners[domain.EntityID(id)] = domain.Identity(owner)
		return nil
	}); err != nil {
		return domain.Snapshot{}, fmt.Errorf("load owners: %w", err)
	}

	if err := scanRows(ctx, db, `SELECT owner, count FROM owned_counts`, func(rows *sql.Rows) error {
		var owner string
		var n int64
		if err := rows.Scan(&owner, &n); err != nil {
			return err
		}
		snapshot.OwnedCounts[domain.Identity(owner)] = uint32(n)
		return nil
	}); err != nil {
		return domain.Snapshot{}, fmt.Errorf("load owned counts: %w", err)
	}

	if err := scanRows(ctx, db, `SELECT name, value FROM registry_counters`, func(rows *sql.Rows) error {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return err
		}
		if name == totalCounterName {
			snapshot.TotalCount = uint32(n)
		}
		return nil
	}); err != nil {
		return domain.Snapshot{}, fmt.Errorf("load counters: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("stored registry is inconsistent: %w", err)
	}
	return snapshot.Normalize(), nil
}

func scanRows(ctx context.Context, db Querier, query string, fn func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// WriteChanges applies a change set inside one database transaction.
func WriteChanges(ctx context.Context, db *sql.DB, d Dialect, changes domain.ChangeSet) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := writeChanges(ctx, tx, d, changes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func writeChanges(ctx context.Context, tx Execer, d Dialect, changes domain.ChangeSet) error {
	for _, c := range changes.Creatures {
		if _, err := tx.ExecContext(ctx, d.Rebind(`INSERT INTO creatures(id,genome) VALUES(?,?)`), int64(c.ID), c.Genome[:]); err != nil {
			return fmt.Errorf("insert creature %d: %w", c.ID, err)
		}
	}
	for id, owner := range changes.Owners {
		if _, err := tx.ExecContext(ctx, d.Rebind(`INSERT INTO creature_owners(creature_id,owner) VALUES(?,?) ON CONFLICT(creature_id) DO UPDATE SET owner=excluded.owner`), int64(id), string(owner)); err != nil {
			return fmt.Errorf("upsert owner of %d: %w", id, err)
		}
	}
	for owner, n := range changes.OwnedCounts {
		if _, err := tx.ExecContext(ctx, d.Rebind(`INSERT INTO owned_counts(owner,count) VALUES(?,?) ON CONFLICT(owner) DO UPDATE SET count=excluded.count`), string(owner), int64(n)); err != nil {
			return fmt.Errorf("upsert owned count for %q: %w", owner, err)
		}
	}
	if changes.TotalCount != nil {
		if _, err := tx.ExecContext(ctx, d.Rebind(`INSERT INTO registry_counters(name,value) VALUES(?,?) ON CONFLICT(name) DO UPDATE SET value=excluded.value`), totalCounterName, int64(*changes.TotalCount)); err != nil {
			return fmt.Errorf("upsert total count: %w", err)
		}
	}
	return nil
}

// ReplaceAll overwrites every table with the snapshot in one transaction.
func ReplaceAll(ctx context.Context, db *sql.DB, d Dialect, snapshot domain.Snapshot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, table := range []string{"creature_owners", "creatures", "owned_counts", "registry_counters"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	total := snapshot.TotalCount
	changes := domain.ChangeSet{
		Creatures:   snapshot.Creatures,
		Owners:      snapshot.Owners,
		OwnedCounts: snapshot.OwnedCounts,
		TotalCount:  &total,
	}
	if err := writeChanges(ctx, tx, d, changes); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}
