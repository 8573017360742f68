package core

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"kittycore/internal/infra/persistence/memory"
	"kittycore/pkg/domain"
)

func newRuledStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore(memory.WithRulesEngine(NewDefaultRulesEngine()))
	seedParents(store, alice, fill(0x01), fill(0x02))
	return store
}

func TestDefaultRulesEngineRegistersRegistryRules(t *testing.T) {
	var names []string
	for _, rule := range NewDefaultRulesEngine().Rules() {
		names = append(names, rule.Name())
	}
	want := []string{RuleContiguousIDs, RuleSingleOwner, RuleOwnedCount}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected rules %v, got %v", want, names)
	}
}

func TestRulesRejectInconsistentTransactions(t *testing.T) {
	cases := []struct {
		name    string
		rule    string
		message string
		fn      func(tx domain.EntityStore) error
	}{
		{
			name: "gap in ids", rule: RuleContiguousIDs, message: "no creature below id 3",
			fn: func(tx domain.EntityStore) error {
				if err := tx.Insert(domain.Creature{ID: 3}); err != nil {
					return err
				}
				tx.SetOwner(3, alice)
				tx.SetTotalCount(4)
				tx.SetOwnedCount(alice, 3)
				return nil
			},
		},
		{
			name: "total not advanced", rule: RuleContiguousIDs, message: "outside the appended range",
			fn: func(tx domain.EntityStore) error {
				if err := tx.Insert(domain.Creature{ID: 2}); err != nil {
					return err
				}
				tx.SetOwner(2, alice)
				tx.SetOwnedCount(alice, 3)
				return nil
			},
		},
		{
			name: "total shrinks", rule: RuleContiguousIDs, message: "exists beyond total count",
			fn: func(tx domain.EntityStore) error {
				tx.SetTotalCount(1)
				return nil
			},
		},
		{
			name: "creature without owner", rule: RuleSingleOwner, message: "creature 2 has no owner",
			fn: func(tx domain.EntityStore) error {
				if err := tx.Insert(domain.Creature{ID: 2}); err != nil {
					return err
				}
				tx.SetTotalCount(3)
				return nil
			},
		},
		{
			name: "owner of unknown creature", rule: RuleSingleOwner, message: "unknown creature 7",
			fn: func(tx domain.EntityStore) error {
				tx.SetOwner(7, bob)
				tx.SetOwnedCount(bob, 1)
				return nil
			},
		},
		{
			name: "owned count not bumped", rule: RuleOwnedCount, message: `owned count for "bob" is 0 but 1`,
			fn: func(tx domain.EntityStore) error {
				if err := tx.Insert(domain.Creature{ID: 2}); err != nil {
					return err
				}
				tx.SetOwner(2, bob)
				tx.SetTotalCount(3)
				return nil
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newRuledStore(t)
			before := store.ExportState()
			_, err := store.RunInTransaction(context.Background(), tc.fn)
			if !errors.Is(err, domain.ErrRuleViolation) {
				t.Fatalf("expected rule violation, got %v", err)
			}
			var violation domain.RuleViolationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected RuleViolationError, got %T", err)
			}
			var matched bool
			for _, v := range violation.Result.Violations {
				if v.Rule == tc.rule && strings.Contains(v.Message, tc.message) {
					matched = true
				}
			}
			if !matched {
				t.Fatalf("expected %s violation containing %q, got %+v", tc.rule, tc.message, violation.Result.Violations)
			}
			if got := store.ExportState(); !reflect.DeepEqual(got, before) {
				t.Fatalf("rejected transaction changed state:\n got %+v\nwant %+v", got, before)
			}
		})
	}
}

func TestTransitionsPassRegistryRules(t *testing.T) {
	ctx := context.Background()
	store := newRuledStore(t)
	svc := NewService(store, domain.NewBlockRandomness([]byte("rules"), 0))

	if _, err := svc.Create(ctx, bob); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Breed(ctx, bob, 0, 1); err != nil {
		t.Fatalf("breed: %v", err)
	}
	if _, err := svc.Breed(ctx, alice, 2, 2); err != nil {
		t.Fatalf("self breed: %v", err)
	}
	checkInvariants(t, store)
	if got := store.ExportState(); got.TotalCount != 5 || got.OwnedCounts[bob] != 2 || got.OwnedCounts[alice] != 3 {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestRuleViolationIsLoggedAsFailure(t *testing.T) {
	log := &captureLogger{}
	store := memory.NewStore(memory.WithRulesEngine(NewDefaultRulesEngine()))
	// total says two creatures exist but none do, so the next id leaves a gap
	store.ImportState(domain.Snapshot{TotalCount: 2})
	svc := NewService(store, domain.NewBlockRandomness([]byte("rules"), 0), WithLogger(log))

	_, err := svc.Create(context.Background(), alice)
	if !errors.Is(err, domain.ErrRuleViolation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(log.calls) != 1 || log.calls[0] != "e:transition failed" {
		t.Fatalf("unexpected log calls %v", log.calls)
	}
	if got := store.ExportState(); got.TotalCount != 2 || len(got.Creatures) != 0 {
		t.Fatalf("rejected create changed state %+v", got)
	}
}
