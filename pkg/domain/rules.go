package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrRuleViolation matches RuleViolationError with errors.Is.
var ErrRuleViolation = errors.New("transaction blocked by rules")

// Rule defines an evaluation executed within a transaction boundary. The view
// reflects the staged writes of the transaction.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view EntityView, changes ChangeSet) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view EntityView, changes ChangeSet) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule       string
	Message    string
	CreatureID *EntityID
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// Blocked reports whether any rule refused the transaction.
func (r Result) Blocked() bool { return len(r.Violations) > 0 }

// RuleViolationError is returned when a transaction is refused by its rules.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	msgs := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		msgs = append(msgs, v.Rule+": "+v.Message)
	}
	return ErrRuleViolation.Error() + ": " + strings.Join(msgs, "; ")
}

// Is reports whether target is ErrRuleViolation.
func (e RuleViolationError) Is(target error) bool { return target == ErrRuleViolation }
