package domain

import "math"

// Increment returns n+1, or a CountOverflowError when n is already at the
// maximum representable value. Both transitions allocate through it.
func Increment(n uint32, counter Counter, owner Identity) (uint32, error) {
	if n == math.MaxUint32 {
		return n, CountOverflowError{Counter: counter, Owner: owner}
	}
	return n + 1, nil
}
