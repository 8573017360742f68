package integration

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"kittycore/internal/config"
	core "kittycore/internal/core"
	blobmemory "kittycore/internal/infra/blob/memory"
	"kittycore/internal/infra/persistence/memory"
	domain "kittycore/pkg/domain"
)

type backend struct {
	name string
	cfg  func(t *testing.T) config.Storage
	// durable backends are reopened to check that state survives
	durable bool
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			cfg:  func(*testing.T) config.Storage { return config.Storage{Driver: config.StorageMemory} },
		},
		{
			name: "sqlite",
			cfg: func(t *testing.T) config.Storage {
				return config.Storage{Driver: config.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "registry.db")}
			},
			durable: true,
		},
		{
			name: "redis",
			cfg: func(t *testing.T) config.Storage {
				mr := miniredis.RunT(t)
				return config.Storage{Driver: config.StorageRedis, Redis: config.Redis{Addr: mr.Addr(), Prefix: "it:"}}
			},
			durable: true,
		},
	}
}

// TestIntegrationSmoke runs a create/breed cycle on every in-process backend,
// reopens durable ones, and round trips the result through the archive.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			cfg := b.cfg(t)
			store, err := core.OpenPersistentStore(ctx, cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			svc := core.NewService(store, domain.NewBlockRandomness([]byte{0x5e, 0xed}, 1))

			if _, err := svc.Create(ctx, "alice"); err != nil {
				t.Fatalf("create: %v", err)
			}
			if _, err := svc.Create(ctx, "bob"); err != nil {
				t.Fatalf("create: %v", err)
			}
			child, err := svc.Breed(ctx, "carol", 0, 1)
			if err != nil {
				t.Fatalf("breed: %v", err)
			}
			if child != 2 {
				t.Fatalf("expected child id 2, got %d", child)
			}
			if _, err := svc.Breed(ctx, "carol", 0, 7); err == nil {
				t.Fatalf("expected missing mother to fail")
			}
			want := store.ExportState()
			if err := want.Validate(); err != nil {
				t.Fatalf("invariants: %v", err)
			}

			archiver := core.NewArchiver(blobmemory.New())
			if _, err := archiver.Save(ctx, store); err != nil {
				t.Fatalf("archive: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			if b.durable {
				reopened, err := core.OpenPersistentStore(ctx, cfg)
				if err != nil {
					t.Fatalf("reopen: %v", err)
				}
				defer reopened.Close()
				if got := reopened.ExportState(); !reflect.DeepEqual(got, want) {
					t.Fatalf("state did not survive reopen:\n got %+v\nwant %+v", got, want)
				}
			}

			fresh := memory.NewStore()
			if _, err := archiver.RestoreLatest(ctx, fresh); err != nil {
				t.Fatalf("restore: %v", err)
			}
			if got := fresh.ExportState(); !reflect.DeepEqual(got, want) {
				t.Fatalf("archive round trip mismatch")
			}
		})
	}
}
