// Package primitives defines the ordinal types shared across the consensus
// codebase, such as slots and epochs.
package primitives

import "math/bits"

// Slot represents a single slot.
type Slot uint64

// Add increments the slot by x, saturating at the maximum value on overflow.
func (s Slot) Add(x uint64) Slot {
	sum, carry := bits.Add64(uint64(s), x, 0)
	if carry != 0 {
		return Slot(1<<64 - 1)
	}
	return Slot(sum)
}

// Sub decrements the slot by x, saturating at zero on underflow.
func (s Slot) Sub(x uint64) Slot {
	if uint64(s) < x {
		return 0
	}
	return Slot(uint64(s) - x)
}

// Uint64 returns the slot as an unsigned integer.
func (s Slot) Uint64() uint64 {
	return uint64(s)
}
