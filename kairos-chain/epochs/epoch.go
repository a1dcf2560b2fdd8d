// Package epochs tracks the epoch changes signalled across all seen forks
// and resolves which epoch governs block production and validation for any
// fork and slot.
package epochs

import (
	"github.com/kairosnetwork/kairos/config/params"
	types "github.com/kairosnetwork/kairos/consensus-types/primitives"
)

// Authority is one member of an epoch's validator set together with its
// voting weight.
type Authority struct {
	PublicKey []byte `json:"public_key"`
	Weight    uint64 `json:"weight"`
}

// Epoch describes the consensus parameters in force from StartSlot onward.
// The tracker only inspects StartSlot; every other field is opaque
// pass-through data that round-trips unchanged. Descriptors are immutable
// once imported: queries always return copies.
type Epoch struct {
	Index       types.Epoch `json:"index"`
	StartSlot   types.Slot  `json:"start_slot"`
	Duration    uint64      `json:"duration"`
	Authorities []Authority `json:"authorities"`
	Randomness  [32]byte    `json:"randomness"`
}

// EndSlot returns the first slot past the epoch's slot range.
func (e *Epoch) EndSlot() types.Slot {
	return e.StartSlot.Add(e.Duration)
}

// Copy returns a deep copy of the descriptor.
func (e *Epoch) Copy() *Epoch {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Authorities = make([]Authority, len(e.Authorities))
	for i, a := range e.Authorities {
		cp.Authorities[i] = Authority{
			PublicKey: append([]byte{}, a.PublicKey...),
			Weight:    a.Weight,
		}
	}
	return &cp
}

// GenesisEpoch returns the descriptor governing slots on chains where no
// epoch change has been signalled yet, built from the chain config.
func GenesisEpoch() *Epoch {
	cfg := params.KairosConfig()
	authorities := make([]Authority, 0, len(cfg.GenesisAuthorityKeys))
	for _, key := range cfg.GenesisAuthorityKeys {
		authorities = append(authorities, Authority{
			PublicKey: append([]byte{}, key...),
			Weight:    cfg.GenesisAuthorityWeight,
		})
	}
	return &Epoch{
		Index:       cfg.GenesisEpoch,
		StartSlot:   cfg.GenesisSlot,
		Duration:    cfg.SlotsPerEpoch.Uint64(),
		Authorities: authorities,
		Randomness:  cfg.GenesisRandomness,
	}
}
