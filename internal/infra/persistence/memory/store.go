// Package memory provides an in-memory implementation of the core persistence
// store used for tests, ephemeral environments and as the transactional layer
// underneath the durable backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kittycore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Creature aliases domain.Creature.
	Creature = domain.Creature
	// EntityID aliases domain.EntityID.
	EntityID = domain.EntityID
	// Identity aliases domain.Identity.
	Identity = domain.Identity
	// ChangeSet aliases domain.ChangeSet.
	ChangeSet = domain.ChangeSet
	// Snapshot aliases domain.Snapshot.
	Snapshot = domain.Snapshot
)

// CommitFunc receives the change set of a transaction before it becomes
// visible. Returning an error aborts the transaction.
type CommitFunc func(ctx context.Context, changes ChangeSet) error

// RestoreFunc receives a full snapshot before it replaces committed state.
type RestoreFunc func(ctx context.Context, snapshot Snapshot) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs fn as the durability hook for every non-empty transaction.
func WithCommitHook(fn CommitFunc) Option {
	return func(s *Store) {
		s.commit = fn
	}
}

// WithRestoreHook installs fn as the durability hook for Restore.
func WithRestoreHook(fn RestoreFunc) Option {
	return func(s *Store) {
		s.restore = fn
	}
}

// WithRulesEngine evaluates engine against every non-empty transaction before
// the commit hook runs. Any violation aborts the transaction.
func WithRulesEngine(engine *domain.RulesEngine) Option {
	return func(s *Store) {
		s.engine = engine
	}
}

type memoryState struct {
	creatures   map[EntityID]Creature
	owners      map[EntityID]Identity
	ownedCounts map[Identity]uint32
	// index of owner -> ids, derived from owners
	byOwner map[Identity]map[EntityID]struct{}
	total   uint32
}

func newMemoryState() memoryState {
	return memoryState{
		creatures:   make(map[EntityID]Creature),
		owners:      make(map[EntityID]Identity),
		ownedCounts: make(map[Identity]uint32),
		byOwner:     make(map[Identity]map[EntityID]struct{}),
	}
}

func (s *memoryState) setOwner(id EntityID, owner Identity) {
	if prev, ok := s.owners[id]; ok {
		delete(s.byOwner[prev], id)
	}
	s.owners[id] = owner
	ids, ok := s.byOwner[owner]
	if !ok {
		ids = make(map[EntityID]struct{})
		s.byOwner[owner] = ids
	}
	ids[id] = struct{}{}
}

func (s *memoryState) apply(changes ChangeSet) {
	for _, c := range changes.Creatures {
		s.creatures[c.ID] = c
	}
	for id, owner := range changes.Owners {
		s.setOwner(id, owner)
	}
	for owner, n := range changes.OwnedCounts {
		s.ownedCounts[owner] = n
	}
	if changes.TotalCount != nil {
		s.total = *changes.TotalCount
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Creatures:   make([]Creature, 0, len(state.creatures)),
		Owners:      make(map[EntityID]Identity, len(state.owners)),
		OwnedCounts: make(map[Identity]uint32, len(state.ownedCounts)),
		TotalCount:  state.total,
	}
	for _, c := range state.creatures {
		s.Creatures = append(s.Creatures, c)
	}
	for id, owner := range state.owners {
		s.Owners[id] = owner
	}
	for owner, n := range state.ownedCounts {
		s.OwnedCounts[owner] = n
	}
	return s.Normalize()
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for _, c := range s.Creatures {
		state.creatures[c.ID] = c
	}
	for id, owner := range s.Owners {
		state.setOwner(id, owner)
	}
	for owner, n := range s.OwnedCounts {
		state.ownedCounts[owner] = n
	}
	state.total = s.TotalCount
	return state
}

// Store provides an in-memory transactional store for the creature registry.
type Store struct {
	mu      sync.RWMutex
	state   memoryState
	commit  CommitFunc
	restore RestoreFunc
	engine  *domain.RulesEngine
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{state: newMemoryState()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. It bypasses
// the commit hook.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// Restore replaces committed state with snapshot. The restore hook, when set,
// runs under the write lock first and can veto the replacement.
func (s *Store) Restore(ctx context.Context, snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot = snapshot.Normalize()
	if s.restore != nil {
		if err := s.restore(ctx, snapshot); err != nil {
			return fmt.Errorf("persist restore: %w", err)
		}
	}
	s.state = memoryStateFromSnapshot(snapshot)
	return nil
}

// RulesEngine exposes the configured engine, or nil.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.engine }

// Close implements domain.PersistentStore.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn against a staged overlay of the committed
// state. The staged writes are handed to the commit hook and merged only when
// fn and the hook both succeed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.EntityStore) error) (ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ChangeSet{}, err
	}

	tx := newTransaction(&s.state)
	if err := fn(tx); err != nil {
		return ChangeSet{}, err
	}

	changes := tx.changeSet()
	if changes.Empty() {
		return changes, nil
	}
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx, changes)
		if err != nil {
			return ChangeSet{}, err
		}
		if res.Blocked() {
			return ChangeSet{}, domain.RuleViolationError{Result: res}
		}
	}
	if s.commit != nil {
		if err := s.commit(ctx, changes); err != nil {
			return ChangeSet{}, fmt.Errorf("persist changes: %w", err)
		}
	}
	s.state.apply(changes)
	return changes, nil
}

// View executes fn against the committed state under a read lock.
func (s *Store) View(_ context.Context, fn func(domain.EntityView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(stateView{state: &s.state})
}

type stateView struct {
	state *memoryState
}

func (v stateView) Get(id EntityID) (Creature, bool) {
	c, ok := v.state.creatures[id]
	return c, ok
}

func (v stateView) Exists(id EntityID) bool {
	_, ok := v.state.creatures[id]
	return ok
}

func (v stateView) OwnerOf(id EntityID) (Identity, bool) {
	owner, ok := v.state.owners[id]
	return owner, ok
}

func (v stateView) TotalCount() uint32 { return v.state.total }

func (v stateView) OwnedCount(owner Identity) uint32 { return v.state.ownedCounts[owner] }

func (v stateView) CreaturesOwnedBy(owner Identity) []EntityID {
	out := make([]EntityID, 0, len(v.state.byOwner[owner]))
	for id := range v.state.byOwner[owner] {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

// transaction stages writes on top of the committed state.
type transaction struct {
	base        *memoryState
	creatures   map[EntityID]Creature
	inserted    []EntityID
	owners      map[EntityID]Identity
	ownedCounts map[Identity]uint32
	total       *uint32
}

func newTransaction(base *memoryState) *transaction {
	return &transaction{
		base:        base,
		creatures:   make(map[EntityID]Creature),
		owners:      make(map[EntityID]Identity),
		ownedCounts: make(map[Identity]uint32),
	}
}

func (tx *transaction) Get(id EntityID) (Creature, bool) {
	if c, ok := tx.creatures[id]; ok {
		return c, true
	}
	c, ok := tx.base.creatures[id]
	return c, ok
}

func (tx *transaction) Exists(id EntityID) bool {
	_, ok := tx.Get(id)
	return ok
}

// Insert stages a new creature; an id already present in either layer is rejected.
func (tx *transaction) Insert(c Creature) error {
	if tx.Exists(c.ID) {
		return fmt.Errorf("insert creature %d: %w", c.ID, domain.ErrCreatureExists)
	}
	tx.creatures[c.ID] = c
	tx.inserted = append(tx.inserted, c.ID)
	return nil
}

func (tx *transaction) OwnerOf(id EntityID) (Identity, bool) {
	if owner, ok := tx.owners[id]; ok {
		return owner, true
	}
	owner, ok := tx.base.owners[id]
	return owner, ok
}

func (tx *transaction) SetOwner(id EntityID, owner Identity) {
	tx.owners[id] = owner
}

func (tx *transaction) TotalCount() uint32 {
	if tx.total != nil {
		return *tx.total
	}
	return tx.base.total
}

func (tx *transaction) SetTotalCount(n uint32) {
	tx.total = &n
}

func (tx *transaction) OwnedCount(owner Identity) uint32 {
	if n, ok := tx.ownedCounts[owner]; ok {
		return n
	}
	return tx.base.ownedCounts[owner]
}

func (tx *transaction) SetOwnedCount(owner Identity, n uint32) {
	tx.ownedCounts[owner] = n
}

func (tx *transaction) CreaturesOwnedBy(owner Identity) []EntityID {
	seen := make(map[EntityID]struct{})
	for id := range tx.base.byOwner[owner] {
		if staged, ok := tx.owners[id]; ok && staged != owner {
			continue
		}
		seen[id] = struct{}{}
	}
	for id, staged := range tx.owners {
		if staged == owner {
			seen[id] = struct{}{}
		}
	}
	out := make([]EntityID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sortIDs(out)
	return out
}

func (tx *transaction) changeSet() ChangeSet {
	var changes ChangeSet
	if len(tx.inserted) > 0 {
		changes.Creatures = make([]Creature, 0, len(tx.inserted))
		for _, id := range tx.inserted {
			changes.Creatures = append(changes.Creatures, tx.creatures[id])
		}
	}
	if len(tx.owners) > 0 {
		changes.Owners = make(map[EntityID]Identity, len(tx.owners))
		for id, owner := range tx.owners {
			changes.Owners[id] = owner
		}
	}
	if len(tx.ownedCounts) > 0 {
		changes.OwnedCounts = make(map[Identity]uint32, len(tx.ownedCounts))
		for owner, n := range tx.ownedCounts {
			changes.OwnedCounts[owner] = n
		}
	}
	if tx.total != nil {
		n := *tx.total
		changes.TotalCount = &n
	}
	return changes
}

func sortIDs(ids []EntityID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
