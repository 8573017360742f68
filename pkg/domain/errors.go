package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCountOverflow is returned when a counter cannot take another increment.
	ErrCountOverflow = errors.New("count overflow")
	// ErrNotFound is returned when a referenced creature does not exist.
	ErrNotFound = errors.New("creature not found")
	// ErrCreatureExists is returned by EntityStore.Insert for an occupied id.
	ErrCreatureExists = errors.New("creature already exists")
)

// CountOverflowError names the counter that would wrap.
type CountOverflowError struct {
	Counter Counter
	Owner   Identity
}

func (e CountOverflowError) Error() string {
	if e.Counter == CounterOwned {
		return fmt.Sprintf("%s count for %q would overflow", e.Counter, e.Owner)
	}
	return fmt.Sprintf("%s count would overflow", e.Counter)
}

// Is lets errors.Is match ErrCountOverflow.
func (e CountOverflowError) Is(target error) bool {
	return target == ErrCountOverflow
}

// NotFoundError reports a missing creature and the role it was referenced in
// (father, mother, or lookup).
type NotFoundError struct {
	Role string
	ID   EntityID
}

func (e NotFoundError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("creature %d not found", e.ID)
	}
	return fmt.Sprintf("%s creature %d not found", e.Role, e.ID)
}

// Is lets errors.Is match ErrNotFound.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
