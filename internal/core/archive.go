package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	blobcore "kittycore/internal/blob/core"
	"kittycore/pkg/domain"
)

const snapshotPrefix = "snapshots/"

// ErrNoSnapshot is returned when the archive holds no snapshot.
var ErrNoSnapshot = errors.New("no archived snapshot")

// Archiver writes registry snapshots to a blob store and restores them.
// Snapshots are keyed by total count, zero padded so key order is count order.
type Archiver struct {
	blobs blobcore.Store
}

// NewArchiver returns an Archiver writing to blobs.
func NewArchiver(blobs blobcore.Store) *Archiver {
	return &Archiver{blobs: blobs}
}

// SnapshotKey returns the blob key for a registry of the given size.
func SnapshotKey(total uint32) string {
	return fmt.Sprintf("%s%010d.json", snapshotPrefix, total)
}

// Save archives the committed state of store. A snapshot already archived at
// the same total count is kept and its info returned.
func (a *Archiver) Save(ctx context.Context, store domain.PersistentStore) (blobcore.Info, error) {
	snapshot := store.ExportState().Normalize()
	body, err := json.Marshal(snapshot)
	if err != nil {
		return blobcore.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotKey(snapshot.TotalCount)
	info, err := a.blobs.Put(ctx, key, bytes.NewReader(body), blobcore.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"total": strconv.FormatUint(uint64(snapshot.TotalCount), 10)},
	})
	if errors.Is(err, blobcore.ErrExists) {
		return a.blobs.Head(ctx, key)
	}
	if err != nil {
		return blobcore.Info{}, fmt.Errorf("archive snapshot: %w", err)
	}
	return info, nil
}

// Latest loads the snapshot with the highest total count.
func (a *Archiver) Latest(ctx context.Context) (domain.Snapshot, blobcore.Info, error) {
	infos, err := a.blobs.List(ctx, snapshotPrefix)
	if err != nil {
		return domain.Snapshot{}, blobcore.Info{}, fmt.Errorf("list snapshots: %w", err)
	}
	var latest string
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") && info.Key > latest {
			latest = info.Key
		}
	}
	if latest == "" {
		return domain.Snapshot{}, blobcore.Info{}, ErrNoSnapshot
	}
	return a.Load(ctx, latest)
}

// Load reads and validates the snapshot stored at key.
func (a *Archiver) Load(ctx context.Context, key string) (domain.Snapshot, blobcore.Info, error) {
	info, body, err := a.blobs.Get(ctx, key)
	if err != nil {
		return domain.Snapshot{}, blobcore.Info{}, fmt.Errorf("read snapshot: %w", err)
	}
	defer body.Close()
	var snapshot domain.Snapshot
	if err := json.NewDecoder(body).Decode(&snapshot); err != nil {
		return domain.Snapshot{}, blobcore.Info{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if err := snapshot.Validate(); err != nil {
		return domain.Snapshot{}, blobcore.Info{}, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return snapshot.Normalize(), info, nil
}

// RestoreLatest replaces the state of store with the latest archived snapshot.
func (a *Archiver) RestoreLatest(ctx context.Context, store domain.PersistentStore) (blobcore.Info, error) {
	snapshot, info, err := a.Latest(ctx)
	if err != nil {
		return blobcore.Info{}, err
	}
	if err := store.Restore(ctx, snapshot); err != nil {
		return blobcore.Info{}, fmt.Errorf("restore snapshot %s: %w", info.Key, err)
	}
	return info, nil
}
