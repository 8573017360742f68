package domain

import (
	"context"
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Entropy is the per-invocation input supplied by the host. It is fully
// deterministic: anyone who knows these values in advance can predict the
// derived genome, so it must not be treated as unpredictable randomness.
type Entropy struct {
	Seed           []byte `json:"seed"`
	OperationIndex uint32 `json:"operation_index"`
	Sequence       uint64 `json:"sequence"`
}

// RandomnessSource supplies Entropy for each transition.
type RandomnessSource interface {
	Draw(ctx context.Context) (Entropy, error)
}

// EncodePayload serializes the (seed, caller, operation index, sequence) tuple
// hashed by DeriveKey. Variable-length fields carry a little-endian uint32
// length prefix; integers are little-endian.
func EncodePayload(e Entropy, caller Identity) []byte {
	buf := make([]byte, 0, 4+len(e.Seed)+4+len(caller)+4+8)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Seed)))
	buf = append(buf, e.Seed...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(caller)))
	buf = append(buf, caller...)
	buf = binary.LittleEndian.AppendUint32(buf, e.OperationIndex)
	buf = binary.LittleEndian.AppendUint64(buf, e.Sequence)
	return buf
}

// DeriveKey hashes the entropy tuple for caller with BLAKE2b-128. Creation uses
// the result as the genome; breeding uses it as the mixing key.
func DeriveKey(e Entropy, caller Identity) Genome {
	h, err := blake2b.New(GenomeSize, nil)
	if err != nil {
		// only reachable with an invalid digest size or key
		panic(err)
	}
	_, _ = h.Write(EncodePayload(e, caller))
	var out Genome
	copy(out[:], h.Sum(nil))
	return out
}

// MixGenomes recombines two parent genomes byte by byte: position i takes the
// mother's byte when key[i] is even, otherwise the father's.
func MixGenomes(father, mother, key Genome) Genome {
	child := father
	for i := range child {
		if key[i]%2 == 0 {
			child[i] = mother[i]
		}
	}
	return child
}

// FixedRandomness always returns the same Entropy. Useful for replay and tests.
type FixedRandomness struct {
	Entropy Entropy
}

// Draw implements RandomnessSource.
func (f FixedRandomness) Draw(context.Context) (Entropy, error) {
	return cloneEntropy(f.Entropy), nil
}

// BlockRandomness models a batch-oriented host: every operation in a batch
// shares the batch seed and sequence number and receives the next operation
// index.
type BlockRandomness struct {
	mu       sync.Mutex
	seed     []byte
	sequence uint64
	next     uint32
}

// NewBlockRandomness starts at the given batch seed and sequence number.
func NewBlockRandomness(seed []byte, sequence uint64) *BlockRandomness {
	return &BlockRandomness{seed: append([]byte(nil), seed...), sequence: sequence}
}

// Draw implements RandomnessSource.
func (b *BlockRandomness) Draw(context.Context) (Entropy, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := Entropy{
		Seed:           append([]byte(nil), b.seed...),
		OperationIndex: b.next,
		Sequence:       b.sequence,
	}
	b.next++
	return e, nil
}

// NextBatch advances to the next sequence number with a fresh seed and resets
// the operation index.
func (b *BlockRandomness) NextBatch(seed []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seed = append([]byte(nil), seed...)
	b.sequence++
	b.next = 0
}

func cloneEntropy(e Entropy) Entropy {
	e.Seed = append([]byte(nil), e.Seed...)
	return e
}
