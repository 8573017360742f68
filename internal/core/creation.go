package core

import (
	"context"
	"fmt"

	"kittycore/pkg/domain"
)

// Create mints a creature for caller. Its genome is the key derived from the
// drawn entropy and caller; the id is the registry size before the call.
func (s *Service) Create(ctx context.Context, caller domain.Identity) (domain.EntityID, error) {
	return s.run(ctx, OperationCreate, caller, func(ctx context.Context) (domain.EntityID, error) {
		entropy, err := s.randomness.Draw(ctx)
		if err != nil {
			return 0, fmt.Errorf("draw entropy: %w", err)
		}
		genome := domain.DeriveKey(entropy, caller)

		var id domain.EntityID
		if _, err := s.store.RunInTransaction(ctx, func(tx domain.EntityStore) error {
			var err error
			id, err = allocate(tx, caller, genome)
			return err
		}); err != nil {
			return 0, err
		}
		return id, nil
	})
}
