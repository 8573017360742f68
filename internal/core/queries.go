package core

import (
	"context"

	"kittycore/pkg/domain"
)

// Creature returns the committed creature with id.
func (s *Service) Creature(ctx context.Context, id domain.EntityID) (domain.Creature, error) {
	var out domain.Creature
	err := s.store.View(ctx, func(v domain.EntityView) error {
		c, ok := v.Get(id)
		if !ok {
			return domain.NotFoundError{ID: id}
		}
		out = c
		return nil
	})
	return out, err
}

// OwnerOf returns the identity owning id.
func (s *Service) OwnerOf(ctx context.Context, id domain.EntityID) (domain.Identity, error) {
	var owner domain.Identity
	err := s.store.View(ctx, func(v domain.EntityView) error {
		o, ok := v.OwnerOf(id)
		if !ok {
			return domain.NotFoundError{ID: id}
		}
		owner = o
		return nil
	})
	return owner, err
}

// TotalCount returns the number of creatures ever created.
func (s *Service) TotalCount(ctx context.Context) (uint32, error) {
	var total uint32
	err := s.store.View(ctx, func(v domain.EntityView) error {
		total = v.TotalCount()
		return nil
	})
	return total, err
}

// OwnedCount returns how many creatures owner holds. Unknown owners hold zero.
func (s *Service) OwnedCount(ctx context.Context, owner domain.Identity) (uint32, error) {
	var n uint32
	err := s.store.View(ctx, func(v domain.EntityView) error {
		n = v.OwnedCount(owner)
		return nil
	})
	return n, err
}

// CreaturesOwnedBy lists the creatures owned by owner in id order.
func (s *Service) CreaturesOwnedBy(ctx context.Context, owner domain.Identity) ([]domain.Creature, error) {
	var out []domain.Creature
	err := s.store.View(ctx, func(v domain.EntityView) error {
		ids := v.CreaturesOwnedBy(owner)
		out = make([]domain.Creature, 0, len(ids))
		for _, id := range ids {
			if c, ok := v.Get(id); ok {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}
