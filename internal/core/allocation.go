package core

import (
	"fmt"

	"kittycore/pkg/domain"
)

// allocate writes a new creature with the next sequential id, assigns it to
// owner and bumps both counters. Both counters are checked before any write
// is staged.
func allocate(tx domain.EntityStore, owner domain.Identity, genome domain.Genome) (domain.EntityID, error) {
	total := tx.TotalCount()
	nextTotal, err := domain.Increment(total, domain.CounterTotal, "")
	if err != nil {
		return 0, err
	}
	nextOwned, err := domain.Increment(tx.OwnedCount(owner), domain.CounterOwned, owner)
	if err != nil {
		return 0, err
	}

	id := domain.EntityID(total)
	if err := tx.Insert(domain.Creature{ID: id, Genome: genome}); err != nil {
		return 0, fmt.Errorf("allocate creature: %w", err)
	}
	tx.SetOwner(id, owner)
	tx.SetTotalCount(nextTotal)
	tx.SetOwnedCount(owner, nextOwned)
	return id, nil
}
