// Package domain defines the creature registry records, the storage contracts
// that transitions run against, and the deterministic genome primitives used by
// kittycore.
package domain

import (
	"encoding/hex"
	"fmt"
)

// GenomeSize is the fixed byte length of every genome and mixing key.
const GenomeSize = 16

// EntityID identifies a creature. Ids are assigned sequentially from zero.
type EntityID uint32

// Identity is an authenticated caller as handed to the engine by the host.
// The engine only compares identities for equality.
type Identity string

// Genome is the genetic payload carried by a creature.
type Genome [GenomeSize]byte

// String renders the genome as lowercase hex.
func (g Genome) String() string {
	return hex.EncodeToString(g[:])
}

// MarshalText implements encoding.TextMarshaler so genomes serialize as hex.
func (g Genome) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Genome) UnmarshalText(text []byte) error {
	decoded, err := ParseGenome(string(text))
	if err != nil {
		return err
	}
	*g = decoded
	return nil
}

// ParseGenome decodes a 32 character hex string into a Genome.
func ParseGenome(s string) (Genome, error) {
	var g Genome
	raw, err := hex.DecodeString(s)
	if err != nil {
		return g, fmt.Errorf("decode genome: %w", err)
	}
	if len(raw) != GenomeSize {
		return g, fmt.Errorf("genome must be %d bytes, got %d", GenomeSize, len(raw))
	}
	copy(g[:], raw)
	return g, nil
}

// Creature is an immutable registry record.
type Creature struct {
	ID     EntityID `json:"id"`
	Genome Genome   `json:"genome"`
}

// Counter names the registry counter involved in an overflow.
type Counter string

const (
	// CounterTotal is the global creature count.
	CounterTotal Counter = "total"
	// CounterOwned is the per-owner creature count.
	CounterOwned Counter = "owned"
)
