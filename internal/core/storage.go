package core

import (
	"context"
	"fmt"

	blobcore "kittycore/internal/blob/core"
	"kittycore/internal/config"
	blobfs "kittycore/internal/infra/blob/fs"
	blobmemory "kittycore/internal/infra/blob/memory"
	blobs3 "kittycore/internal/infra/blob/s3"
	"kittycore/internal/infra/persistence/memory"
	"kittycore/internal/infra/persistence/postgres"
	"kittycore/internal/infra/persistence/redis"
	"kittycore/internal/infra/persistence/sqlite"
	"kittycore/pkg/domain"
)

// OpenPersistentStore selects a registry backend from configuration. Every
// backend evaluates NewDefaultRulesEngine inside its transactions.
//
//	memory:   in-process only (tests / ephemeral)
//	sqlite:   embedded file at SQLitePath (default)
//	postgres: PostgreSQL server at PostgresDSN
//	redis:    Redis server at Redis.Addr
func OpenPersistentStore(ctx context.Context, cfg config.Storage) (domain.PersistentStore, error) {
	rules := memory.WithRulesEngine(NewDefaultRulesEngine())
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewStore(rules), nil
	case "", config.StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath, rules)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, rules)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageRedis:
		opts := []redis.Option{redis.WithMemoryOptions(rules)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Redis.Prefix))
		}
		store, err := redis.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// OpenArchiveStore selects the blob store snapshots are archived to.
//
//	fs:     directory at Dir (default)
//	memory: in-process only, lost on exit
//	s3:     S3 compatible bucket
func OpenArchiveStore(ctx context.Context, cfg config.Archive) (blobcore.Store, error) {
	switch cfg.Driver {
	case "", config.ArchiveFS:
		store, err := blobfs.New(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.ArchiveMemory:
		return blobmemory.New(), nil
	case config.ArchiveS3:
		store, err := blobs3.New(ctx, blobs3.Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}
