package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kittycore/internal/infra/persistence/redis"
	"kittycore/pkg/domain"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func createOne(id domain.EntityID, owner domain.Identity) func(domain.EntityStore) error {
	return func(tx domain.EntityStore) error {
		if err := tx.Insert(domain.Creature{ID: id, Genome: domain.Genome{0xC0, byte(id)}}); err != nil {
			return err
		}
		tx.SetOwner(id, owner)
		tx.SetTotalCount(uint32(id) + 1)
		tx.SetOwnedCount(owner, tx.OwnedCount(owner)+1)
		return nil
	}
}

func TestRedisStore_PersistsAndReloads(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()

	store, err := redis.NewFromClient(ctx, client, redis.WithPrefix("test:"))
	require.NoError(t, err)
	_, err = store.RunInTransaction(ctx, createOne(0, "alice"))
	require.NoError(t, err)
	_, err = store.RunInTransaction(ctx, createOne(1, "bob"))
	require.NoError(t, err)

	total, err := mr.Get("test:total")
	require.NoError(t, err)
	assert.Equal(t, "2", total)
	assert.Equal(t, "alice", mr.HGet("test:owners", "0"))
	assert.Equal(t, "1", mr.HGet("test:owned_counts", "bob"))
	assert.Equal(t, domain.Genome{0xC0, 1}.String(), mr.HGet("test:creatures", "1"))

	reloaded, err := redis.NewFromClient(ctx, backend.NewClient(&backend.Options{Addr: mr.Addr()}), redis.WithPrefix("test:"))
	require.NoError(t, err)
	snapshot := reloaded.ExportState()
	assert.Equal(t, uint32(2), snapshot.TotalCount)
	assert.Equal(t, domain.Identity("bob"), snapshot.Owners[1])
	assert.Equal(t, uint32(1), snapshot.OwnedCounts["alice"])
	require.Len(t, snapshot.Creatures, 2)
	assert.Equal(t, domain.Genome{0xC0, 1}, snapshot.Creatures[1].Genome)
}

func TestRedisStore_FailedWriteLeavesStateUnchanged(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr(), MaxRetries: -1})
	ctx := context.Background()

	store, err := redis.NewFromClient(ctx, client)
	require.NoError(t, err)
	mr.Close()

	_, err = store.RunInTransaction(ctx, createOne(0, "alice"))
	require.Error(t, err)
	assert.Equal(t, uint32(0), store.ExportState().TotalCount)
}

func TestRedisStore_RestoreReplacesKeys(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()

	store, err := redis.NewFromClient(ctx, client)
	require.NoError(t, err)
	_, err = store.RunInTransaction(ctx, createOne(0, "alice"))
	require.NoError(t, err)

	err = store.Restore(ctx, domain.Snapshot{
		Creatures:   []domain.Creature{{ID: 0, Genome: domain.Genome{7}}},
		Owners:      map[domain.EntityID]domain.Identity{0: "carol"},
		OwnedCounts: map[domain.Identity]uint32{"carol": 1},
		TotalCount:  1,
	})
	require.NoError(t, err)

	assert.Equal(t, "carol", mr.HGet("kittycore:owners", "0"))
	assert.Equal(t, "", mr.HGet("kittycore:owned_counts", "alice"))
	assert.Equal(t, domain.Genome{7}.String(), mr.HGet("kittycore:creatures", "0"))
}

func TestRedisStore_RejectsCorruptGenome(t *testing.T) {
	mr, client := setup(t)
	mr.HSet("kittycore:creatures", "0", "not-hex")

	_, err := redis.NewFromClient(context.Background(), client)
	require.Error(t, err)
}

func TestRedisStore_RejectsInconsistentKeys(t *testing.T) {
	mr, client := setup(t)
	mr.HSet("kittycore:creatures", "0", domain.Genome{}.String())
	mr.HSet("kittycore:owners", "0", "alice")
	require.NoError(t, mr.Set("kittycore:total", "2"))

	_, err := redis.NewFromClient(context.Background(), client)
	require.ErrorContains(t, err, "creatures but total")
}
