package domain

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type staticRule struct {
	name   string
	result Result
	err    error
	calls  int
}

func (r *staticRule) Name() string { return r.name }

func (r *staticRule) Evaluate(context.Context, EntityView, ChangeSet) (Result, error) {
	r.calls++
	return r.result, r.err
}

func TestRulesEngineMergesResults(t *testing.T) {
	engine := NewRulesEngine()
	clean := &staticRule{name: "clean"}
	id := EntityID(4)
	dirty := &staticRule{name: "dirty", result: Result{Violations: []Violation{{Rule: "dirty", Message: "bad id", CreatureID: &id}}}}
	engine.Register(clean)
	engine.Register(dirty)

	res, err := engine.Evaluate(context.Background(), nil, ChangeSet{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !res.Blocked() || len(res.Violations) != 1 || *res.Violations[0].CreatureID != 4 {
		t.Fatalf("unexpected result %+v", res)
	}
	if clean.calls != 1 || dirty.calls != 1 {
		t.Fatalf("expected each rule to run once")
	}
	if got := engine.Rules(); len(got) != 2 || got[0].Name() != "clean" {
		t.Fatalf("unexpected rules %v", got)
	}
}

func TestRulesEngineStopsOnError(t *testing.T) {
	engine := NewRulesEngine()
	boom := errors.New("boom")
	failing := &staticRule{name: "failing", err: boom}
	after := &staticRule{name: "after"}
	engine.Register(failing)
	engine.Register(after)

	if _, err := engine.Evaluate(context.Background(), nil, ChangeSet{}); !errors.Is(err, boom) {
		t.Fatalf("expected rule error, got %v", err)
	}
	if after.calls != 0 {
		t.Fatalf("rules after a failure should not run")
	}
}

func TestRuleViolationError(t *testing.T) {
	var empty Result
	if empty.Blocked() {
		t.Fatalf("empty result should not block")
	}
	empty.Merge(Result{})
	err := error(RuleViolationError{Result: Result{Violations: []Violation{{Rule: "contiguous_ids", Message: "gap at 3"}}}})
	if !errors.Is(err, ErrRuleViolation) {
		t.Fatalf("expected ErrRuleViolation match")
	}
	if !strings.Contains(err.Error(), "contiguous_ids: gap at 3") {
		t.Fatalf("unexpected message %q", err)
	}
}
