package domain

import (
	"strings"
	"testing"
)

func validSnapshot() Snapshot {
	return Snapshot{
		Creatures:   []Creature{{ID: 1}, {ID: 0}},
		Owners:      map[EntityID]Identity{0: "alice", 1: "bob"},
		OwnedCounts: map[Identity]uint32{"alice": 1, "bob": 1},
		TotalCount:  2,
	}
}

func TestSnapshotNormalize(t *testing.T) {
	n := Snapshot{Creatures: []Creature{{ID: 3}, {ID: 1}}}.Normalize()
	if n.Owners == nil || n.OwnedCounts == nil {
		t.Fatalf("expected maps to be filled")
	}
	if n.Creatures[0].ID != 1 || n.Creatures[1].ID != 3 {
		t.Fatalf("expected creatures ordered by id, got %+v", n.Creatures)
	}
}

func TestSnapshotValidate(t *testing.T) {
	if err := validSnapshot().Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}
	if err := (Snapshot{}).Validate(); err != nil {
		t.Fatalf("empty snapshot rejected: %v", err)
	}

	cases := map[string]func(*Snapshot){
		"creatures but total": func(s *Snapshot) { s.TotalCount = 3 },
		"not contiguous":      func(s *Snapshot) { s.Creatures[0].ID = 5 },
		"has no owner":        func(s *Snapshot) { delete(s.Owners, 1); s.OwnedCounts["bob"] = 0 },
		"unknown creatures":   func(s *Snapshot) { s.Owners[9] = "bob" },
		"owners map says":     func(s *Snapshot) { s.OwnedCounts["alice"] = 2 },
		"is missing":          func(s *Snapshot) { delete(s.OwnedCounts, "bob") },
	}
	for want, mutate := range cases {
		s := validSnapshot()
		mutate(&s)
		err := s.Validate()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error containing %q, got %v", want, err)
		}
	}
}

func TestChangeSetEmpty(t *testing.T) {
	if !(ChangeSet{}).Empty() {
		t.Fatalf("zero change set should be empty")
	}
	total := uint32(1)
	if (ChangeSet{TotalCount: &total}).Empty() {
		t.Fatalf("total write is a change")
	}
}
