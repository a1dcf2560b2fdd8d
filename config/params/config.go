// Package params defines the constant configuration values a Kairos node
// participates in the chain with.
package params

import (
	"sync"

	types "github.com/kairosnetwork/kairos/consensus-types/primitives"
)

// ChainConfig contains constant configs for a node to participate in the
// Kairos chain.
type ChainConfig struct {
	ConfigName             string     // ConfigName for human readable output.
	SecondsPerSlot         uint64     // SecondsPerSlot is how many seconds are in a single slot.
	SlotsPerEpoch          types.Slot // SlotsPerEpoch is the number of slots in an epoch.
	GenesisSlot            types.Slot // GenesisSlot represents the first canonical slot.
	GenesisEpoch           types.Epoch
	GenesisAuthorityWeight uint64   // GenesisAuthorityWeight is the voting weight assigned to each genesis authority.
	GenesisAuthorityKeys   [][]byte // GenesisAuthorityKeys are the public keys of the genesis authority set.
	GenesisRandomness      [32]byte // GenesisRandomness seeds slot assignment before the first on-chain update.

	EpochQueryCacheSize int    // EpochQueryCacheSize bounds the resolved-epoch cache.
	DatabaseFileName    string // DatabaseFileName is the chain database file name.
}

var chainConfig = MainnetConfig()
var chainConfigLock sync.RWMutex

// KairosConfig retrieves the chain config.
func KairosConfig() *ChainConfig {
	chainConfigLock.RLock()
	defer chainConfigLock.RUnlock()
	return chainConfig
}

// OverrideKairosConfig replaces the config. The preferred pattern is to call
// KairosConfig().Copy(), change the specific parameters, and then call
// OverrideKairosConfig(c). Any subsequent calls to params.KairosConfig() will
// return this new configuration.
func OverrideKairosConfig(c *ChainConfig) {
	chainConfigLock.Lock()
	defer chainConfigLock.Unlock()
	chainConfig = c
}

// Copy returns a deep copy of the config object.
func (c *ChainConfig) Copy() *ChainConfig {
	chainConfigLock.RLock()
	defer chainConfigLock.RUnlock()
	config := *c
	config.GenesisAuthorityKeys = make([][]byte, len(c.GenesisAuthorityKeys))
	for i, key := range c.GenesisAuthorityKeys {
		config.GenesisAuthorityKeys[i] = append([]byte{}, key...)
	}
	return &config
}
