package core

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"golang.org/x/crypto/blake2b"

	"kittycore/internal/infra/persistence/memory"
	"kittycore/pkg/domain"
)

const (
	alice domain.Identity = "alice"
	bob   domain.Identity = "bob"
)

func fixedEntropy(seed string, index uint32, sequence uint64) domain.FixedRandomness {
	return domain.FixedRandomness{Entropy: domain.Entropy{Seed: []byte(seed), OperationIndex: index, Sequence: sequence}}
}

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, domain.NewBlockRandomness([]byte("test-seed"), 0), opts...), store
}

// expectedKey hashes the entropy tuple without going through domain.EncodePayload.
func expectedKey(t *testing.T, seed []byte, caller domain.Identity, index uint32, sequence uint64) domain.Genome {
	t.Helper()
	var buf bytes.Buffer
	var n4 [4]byte
	var n8 [8]byte
	binary.LittleEndian.PutUint32(n4[:], uint32(len(seed)))
	buf.Write(n4[:])
	buf.Write(seed)
	binary.LittleEndian.PutUint32(n4[:], uint32(len(caller)))
	buf.Write(n4[:])
	buf.WriteString(string(caller))
	binary.LittleEndian.PutUint32(n4[:], index)
	buf.Write(n4[:])
	binary.LittleEndian.PutUint64(n8[:], sequence)
	buf.Write(n8[:])

	h, err := blake2b.New(16, nil)
	if err != nil {
		t.Fatalf("blake2b: %v", err)
	}
	h.Write(buf.Bytes())
	var out domain.Genome
	copy(out[:], h.Sum(nil))
	return out
}

func fill(b byte) domain.Genome {
	var g domain.Genome
	for i := range g {
		g[i] = b
	}
	return g
}

// seedParents imports two creatures owned by owner with the given genomes.
func seedParents(store *memory.Store, owner domain.Identity, father, mother domain.Genome) {
	store.ImportState(domain.Snapshot{
		Creatures:   []domain.Creature{{ID: 0, Genome: father}, {ID: 1, Genome: mother}},
		Owners:      map[domain.EntityID]domain.Identity{0: owner, 1: owner},
		OwnedCounts: map[domain.Identity]uint32{owner: 2},
		TotalCount:  2,
	})
}

// checkInvariants verifies contiguous ids and owner count bookkeeping.
func checkInvariants(t *testing.T, store domain.PersistentStore) {
	t.Helper()
	snap := store.ExportState()
	if err := snap.Validate(); err != nil {
		t.Fatalf("registry invariants violated: %v", err)
	}
}

type failingRandomness struct{}

var errNoEntropy = errors.New("entropy unavailable")

func (failingRandomness) Draw(context.Context) (domain.Entropy, error) {
	return domain.Entropy{}, errNoEntropy
}
