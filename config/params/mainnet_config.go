package params

// mainnetChainConfig holds the parameters the main network launched with.
var mainnetChainConfig = &ChainConfig{
	ConfigName:             "mainnet",
	SecondsPerSlot:         6,
	SlotsPerEpoch:          2400,
	GenesisSlot:            0,
	GenesisEpoch:           0,
	GenesisAuthorityWeight: 1,
	GenesisAuthorityKeys:   [][]byte{},
	GenesisRandomness:      [32]byte{},

	EpochQueryCacheSize: 64,
	DatabaseFileName:    "kairoschain.db",
}

// MainnetConfig returns the configuration to be used in the main network.
func MainnetConfig() *ChainConfig {
	return mainnetChainConfig
}

// MinimalTestConfig returns a low slot-count configuration useful in tests.
func MinimalTestConfig() *ChainConfig {
	cfg := MainnetConfig().Copy()
	cfg.ConfigName = "minimal"
	cfg.SlotsPerEpoch = 8
	cfg.EpochQueryCacheSize = 8
	return cfg
}
