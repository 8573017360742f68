package core

import (
	"context"
	"fmt"
	"sort"

	"kittycore/pkg/domain"
)

// NewContiguousIDsRule returns the rule requiring that a transaction only
// appends creatures directly after the committed range and that the total
// count covers exactly the ids in use.
func NewContiguousIDsRule() domain.Rule {
	return contiguousIDsRule{}
}

type contiguousIDsRule struct{}

func (contiguousIDsRule) Name() string { return RuleContiguousIDs }

func (contiguousIDsRule) Evaluate(_ context.Context, view domain.EntityView, changes domain.ChangeSet) (domain.Result, error) {
	if len(changes.Creatures) == 0 && changes.TotalCount == nil {
		return domain.Result{}, nil
	}
	res := domain.Result{}
	block := func(id *domain.EntityID, format string, args ...any) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:       RuleContiguousIDs,
			Message:    fmt.Sprintf(format, args...),
			CreatureID: id,
		})
	}

	total := uint64(view.TotalCount())
	inserted := uint64(len(changes.Creatures))
	if inserted > total {
		block(nil, "%d creatures inserted but total count is %d", inserted, total)
		return res, nil
	}
	first := total - inserted
	ids := make([]domain.EntityID, 0, len(changes.Creatures))
	for _, c := range changes.Creatures {
		ids = append(ids, c.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i, id := range ids {
		if uint64(id) != first+uint64(i) {
			block(&id, "creature %d is outside the appended range [%d, %d)", id, first, total)
		}
	}
	// the committed range must end right before the first appended id
	if first > 0 && !view.Exists(domain.EntityID(first-1)) {
		block(nil, "no creature below id %d", first)
	}
	if view.Exists(domain.EntityID(total)) {
		block(nil, "creature %d exists beyond total count %d", total, total)
	}
	return res, nil
}
