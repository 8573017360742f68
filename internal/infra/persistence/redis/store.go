// Package redis provides a Redis-backed persistent store. Committed state is
// kept in memory for reads; every change set is written with MULTI/EXEC before
// it becomes visible.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"kittycore/internal/infra/persistence/memory"
	"kittycore/pkg/domain"

	backend "github.com/redis/go-redis/v9"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultPrefix = "kittycore:"

// Store implements domain.PersistentStore on top of Redis hashes.
type Store struct {
	*memory.Store
	client *backend.Client
	prefix string
	layer  []memory.Option
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix for registry keys.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithMemoryOptions configures the in-memory layer, e.g. with a rules engine.
func WithMemoryOptions(opts ...memory.Option) Option {
	return func(s *Store) {
		s.layer = append(s.layer, opts...)
	}
}

// New connects to Redis and hydrates the store.
func New(ctx context.Context, address, password string, db int, opts ...Option) (*Store, error) {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	s, err := NewFromClient(ctx, rdb, opts...)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return s, nil
}

// NewFromClient creates a store from an existing client and loads current state.
func NewFromClient(ctx context.Context, client *backend.Client, opts ...Option) (*Store, error) {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.Store = memory.NewStore(append(s.layer,
		memory.WithCommitHook(s.persist),
		memory.WithRestoreHook(s.replace),
	)...)
	s.ImportState(snapshot)
	return s, nil
}

func (s *Store) creaturesKey() string   { return s.prefix + "creatures" }
func (s *Store) ownersKey() string      { return s.prefix + "owners" }
func (s *Store) ownedCountsKey() string { return s.prefix + "owned_counts" }
func (s *Store) totalKey() string       { return s.prefix + "total" }

func (s *Store) load(ctx context.Context) (domain.Snapshot, error) {
	snapshot := domain.Snapshot{
		Owners:      map[domain.EntityID]domain.Identity{},
		OwnedCounts: map[domain.Identity]uint32{},
	}

	creatures, err := s.client.HGetAll(ctx, s.creaturesKey()).Result()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to load creatures: %w", err)
	}
	for field, value := range creatures {
		id, err := parseID(field)
		if err != nil {
			return domain.Snapshot{}, err
		}
		genome, err := domain.ParseGenome(value)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("creature %d: %w", id, err)
		}
		snapshot.Creatures = append(snapshot.Creatures, domain.Creature{ID: id, Genome: genome})
	}

	owners, err := s.client.HGetAll(ctx, s.ownersKey()).Result()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to load owners: %w", err)
	}
	for field, owner := range owners {
		id, err := parseID(field)
		if err != nil {
			return domain.Snapshot{}, err
		}
		snapshot.Owners[id] = domain.Identity(owner)
	}

	counts, err := s.client.HGetAll(ctx, s.ownedCountsKey()).Result()
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to load owned counts: %w", err)
	}
	for owner, raw := range counts {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("owned count for %q: %w", owner, err)
		}
		snapshot.OwnedCounts[domain.Identity(owner)] = uint32(n)
	}

	total, err := s.client.Get(ctx, s.totalKey()).Result()
	switch {
	case errors.Is(err, backend.Nil):
	case err != nil:
		return domain.Snapshot{}, fmt.Errorf("failed to load total count: %w", err)
	default:
		n, err := strconv.ParseUint(total, 10, 32)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("total count: %w", err)
		}
		snapshot.TotalCount = uint32(n)
	}
	if err := snapshot.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("stored registry is inconsistent: %w", err)
	}
	return snapshot.Normalize(), nil
}

func parseID(field string) (domain.EntityID, error) {
	n, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid creature id %q: %w", field, err)
	}
	return domain.EntityID(n), nil
}

func (s *Store) queue(ctx context.Context, pipe backend.Pipeliner, changes domain.ChangeSet) {
	for _, c := range changes.Creatures {
		pipe.HSet(ctx, s.creaturesKey(), strconv.FormatUint(uint64(c.ID), 10), c.Genome.String())
	}
	for id, owner := range changes.Owners {
		pipe.HSet(ctx, s.ownersKey(), strconv.FormatUint(uint64(id), 10), string(owner))
	}
	for owner, n := range changes.OwnedCounts {
		pipe.HSet(ctx, s.ownedCountsKey(), string(owner), n)
	}
	if changes.TotalCount != nil {
		pipe.Set(ctx, s.totalKey(), *changes.TotalCount, 0)
	}
}

func (s *Store) persist(ctx context.Context, changes domain.ChangeSet) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		s.queue(ctx, pipe, changes)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *Store) replace(ctx context.Context, snapshot domain.Snapshot) error {
	total := snapshot.TotalCount
	changes := domain.ChangeSet{
		Creatures:   snapshot.Creatures,
		Owners:      snapshot.Owners,
		OwnedCounts: snapshot.OwnedCounts,
		TotalCount:  &total,
	}
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Del(ctx, s.creaturesKey(), s.ownersKey(), s.ownedCountsKey(), s.totalKey())
		s.queue(ctx, pipe, changes)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to restore redis state: %w", err)
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
