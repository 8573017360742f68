package core

import (
	"context"
	"fmt"
	"sort"

	"kittycore/pkg/domain"
)

// NewSingleOwnerRule returns the rule requiring every inserted creature to
// have an owner and every ownership record to name an existing creature.
func NewSingleOwnerRule() domain.Rule {
	return singleOwnerRule{}
}

type singleOwnerRule struct{}

func (singleOwnerRule) Name() string { return RuleSingleOwner }

func (singleOwnerRule) Evaluate(_ context.Context, view domain.EntityView, changes domain.ChangeSet) (domain.Result, error) {
	res := domain.Result{}
	for _, c := range changes.Creatures {
		if _, ok := view.OwnerOf(c.ID); !ok {
			id := c.ID
			res.Violations = append(res.Violations, domain.Violation{
				Rule:       RuleSingleOwner,
				Message:    fmt.Sprintf("creature %d has no owner", id),
				CreatureID: &id,
			})
		}
	}
	for id := range changes.Owners {
		if !view.Exists(id) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:       RuleSingleOwner,
				Message:    fmt.Sprintf("owner assigned to unknown creature %d", id),
				CreatureID: &id,
			})
		}
	}
	return res, nil
}

// NewOwnedCountRule returns the rule requiring the owned count of every
// identity touched by a transaction to equal the creatures it owns.
func NewOwnedCountRule() domain.Rule {
	return ownedCountRule{}
}

type ownedCountRule struct{}

func (ownedCountRule) Name() string { return RuleOwnedCount }

func (ownedCountRule) Evaluate(_ context.Context, view domain.EntityView, changes domain.ChangeSet) (domain.Result, error) {
	touched := make(map[domain.Identity]struct{}, len(changes.OwnedCounts)+len(changes.Owners))
	for owner := range changes.OwnedCounts {
		touched[owner] = struct{}{}
	}
	for _, owner := range changes.Owners {
		touched[owner] = struct{}{}
	}
	owners := make([]domain.Identity, 0, len(touched))
	for owner := range touched {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	res := domain.Result{}
	for _, owner := range owners {
		held := len(view.CreaturesOwnedBy(owner))
		if count := view.OwnedCount(owner); uint64(count) != uint64(held) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:    RuleOwnedCount,
				Message: fmt.Sprintf("owned count for %q is %d but %d creatures are owned", owner, count, held),
			})
		}
	}
	return res, nil
}
