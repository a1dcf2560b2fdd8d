package kv

// The schema defines the buckets and keys the store keeps chain data under.
var (
	epochChangesBucket  = []byte("epoch-changes")
	chainMetadataBucket = []byte("chain-metadata")

	// Keys.
	epochChangesKey        = []byte("epoch-changes-tree")
	finalizedCheckpointKey = []byte("finalized-checkpoint")
)
