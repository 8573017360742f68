package domain

import (
	"context"
	"fmt"
	"sort"
)

// EntityView provides read-only access to registry state.
type EntityView interface {
	Get(id EntityID) (Creature, bool)
	Exists(id EntityID) bool
	OwnerOf(id EntityID) (Identity, bool)
	TotalCount() uint32
	OwnedCount(owner Identity) uint32
	// CreaturesOwnedBy lists the ids owned by owner in ascending order.
	CreaturesOwnedBy(owner Identity) []EntityID
}

// EntityStore is the transaction-scoped storage handle transitions run
// against. It performs no domain validation beyond refusing to overwrite an
// existing creature; callers enforce the registry invariants.
type EntityStore interface {
	EntityView
	Insert(c Creature) error
	SetOwner(id EntityID, owner Identity)
	SetTotalCount(n uint32)
	SetOwnedCount(owner Identity, n uint32)
}

// PersistentStore is a minimal abstraction over durable backends. Transactions
// run one at a time; all writes staged by fn become visible together or not at
// all.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(EntityStore) error) (ChangeSet, error)
	View(ctx context.Context, fn func(EntityView) error) error
	ExportState() Snapshot
	// Restore replaces all committed state, durably, with snapshot.
	Restore(ctx context.Context, snapshot Snapshot) error
	Close() error
}

// ChangeSet lists every write staged by one transaction.
type ChangeSet struct {
	Creatures   []Creature
	Owners      map[EntityID]Identity
	OwnedCounts map[Identity]uint32
	TotalCount  *uint32
}

// Empty reports whether the change set carries no writes.
func (c ChangeSet) Empty() bool {
	return len(c.Creatures) == 0 && len(c.Owners) == 0 && len(c.OwnedCounts) == 0 && c.TotalCount == nil
}

// Snapshot is the serialisable representation of committed registry state.
type Snapshot struct {
	Creatures   []Creature            `json:"creatures"`
	Owners      map[EntityID]Identity `json:"owners"`
	OwnedCounts map[Identity]uint32   `json:"owned_counts"`
	TotalCount  uint32                `json:"total_count"`
}

// Normalize fills nil maps and orders creatures by id.
func (s Snapshot) Normalize() Snapshot {
	if s.Owners == nil {
		s.Owners = map[EntityID]Identity{}
	}
	if s.OwnedCounts == nil {
		s.OwnedCounts = map[Identity]uint32{}
	}
	creatures := make([]Creature, len(s.Creatures))
	copy(creatures, s.Creatures)
	sort.Slice(creatures, func(i, j int) bool { return creatures[i].ID < creatures[j].ID })
	s.Creatures = creatures
	return s
}

// Validate checks the registry invariants on a snapshot: ids are exactly
// 0..TotalCount-1, every creature has an owner, and owned counts match the
// ownership map.
func (s Snapshot) Validate() error {
	n := s.Normalize()
	if uint64(len(n.Creatures)) != uint64(n.TotalCount) {
		return fmt.Errorf("snapshot holds %d creatures but total count is %d", len(n.Creatures), n.TotalCount)
	}
	for i, c := range n.Creatures {
		if c.ID != EntityID(i) {
			return fmt.Errorf("snapshot creature ids are not contiguous at %d", i)
		}
		if _, ok := n.Owners[c.ID]; !ok {
			return fmt.Errorf("snapshot creature %d has no owner", c.ID)
		}
	}
	if len(n.Owners) != len(n.Creatures) {
		return fmt.Errorf("snapshot has owners for unknown creatures")
	}
	held := make(map[Identity]uint32, len(n.OwnedCounts))
	for _, owner := range n.Owners {
		held[owner]++
	}
	for owner, count := range n.OwnedCounts {
		if held[owner] != count {
			return fmt.Errorf("snapshot owned count for %q is %d, owners map says %d", owner, count, held[owner])
		}
	}
	for owner, count := range held {
		if n.OwnedCounts[owner] != count {
			return fmt.Errorf("snapshot owned count for %q is missing", owner)
		}
	}
	return nil
}
