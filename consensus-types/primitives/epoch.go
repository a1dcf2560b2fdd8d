package primitives

// Epoch represents a single epoch ordinal.
type Epoch uint64

// Add increments the epoch by x.
func (e Epoch) Add(x uint64) Epoch {
	return Epoch(uint64(e) + x)
}

// Uint64 returns the epoch as an unsigned integer.
func (e Epoch) Uint64() uint64 {
	return uint64(e)
}
