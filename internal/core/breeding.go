package core

import (
	"context"
	"fmt"

	"kittycore/pkg/domain"
)

// Parent roles reported in NotFoundError.
const (
	RoleFather = "father"
	RoleMother = "mother"
)

// Breed creates a child of father and mother owned by caller. Parents may be
// the same creature and need not belong to caller.
func (s *Service) Breed(ctx context.Context, caller domain.Identity, father, mother domain.EntityID) (domain.EntityID, error) {
	return s.run(ctx, OperationBreed, caller, func(ctx context.Context) (domain.EntityID, error) {
		entropy, err := s.randomness.Draw(ctx)
		if err != nil {
			return 0, fmt.Errorf("draw entropy: %w", err)
		}
		key := domain.DeriveKey(entropy, caller)

		var id domain.EntityID
		if _, err := s.store.RunInTransaction(ctx, func(tx domain.EntityStore) error {
			f, ok := tx.Get(father)
			if !ok {
				return domain.NotFoundError{Role: RoleFather, ID: father}
			}
			m, ok := tx.Get(mother)
			if !ok {
				return domain.NotFoundError{Role: RoleMother, ID: mother}
			}
			var err error
			id, err = allocate(tx, caller, domain.MixGenomes(f.Genome, m.Genome, key))
			return err
		}); err != nil {
			return 0, err
		}
		return id, nil
	})
}
