package core

import "kittycore/pkg/domain"

// Rule names reported in violations.
const (
	RuleContiguousIDs = "contiguous_ids"
	RuleSingleOwner   = "single_owner"
	RuleOwnedCount    = "owned_count"
)

// NewDefaultRulesEngine builds a rules engine enforcing the registry
// invariants on every staged change set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewContiguousIDsRule())
	engine.Register(NewSingleOwnerRule())
	engine.Register(NewOwnedCountRule())
	return engine
}
