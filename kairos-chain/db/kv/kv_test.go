package kv

import (
	"context"
	"testing"

	"github.com/kairosnetwork/kairos/kairos-chain/epochs"
	"github.com/kairosnetwork/kairos/testing/assert"
	"github.com/kairosnetwork/kairos/testing/require"
)

// setupDB instantiates and returns a Store instance backed by a temporary
// directory.
func setupDB(t testing.TB) *Store {
	db, err := NewKVStore(t.TempDir())
	require.NoError(t, err, "Failed to instantiate DB")
	t.Cleanup(func() {
		require.NoError(t, db.Close(), "Failed to close database")
	})
	return db
}

func blockRoot(s string) [32]byte {
	var r [32]byte
	copy(r[:], s)
	return r
}

func testOracle(parents map[[32]byte][32]byte) epochs.IsDescendantFn {
	return func(_ context.Context, ancestor, descendant [32]byte) (bool, error) {
		cur := descendant
		for {
			parent, ok := parents[cur]
			if !ok {
				return false, nil
			}
			if parent == ancestor {
				return true, nil
			}
			cur = parent
		}
	}
}

func TestStore_EpochChanges_RoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	oracle := testOracle(map[[32]byte][32]byte{
		blockRoot("B"): blockRoot("G"),
	})

	// Nothing persisted yet.
	loaded, err := db.EpochChanges(ctx)
	require.NoError(t, err)
	require.Equal(t, true, loaded == nil)

	ec := epochs.New()
	require.NoError(t, ec.Import(ctx, blockRoot("G"), 0, &epochs.Epoch{
		Index:       0,
		StartSlot:   0,
		Duration:    100,
		Authorities: []epochs.Authority{{PublicKey: []byte{0xaa}, Weight: 1}},
	}, oracle))
	require.NoError(t, ec.Import(ctx, blockRoot("B"), 1, &epochs.Epoch{
		Index:     1,
		StartSlot: 100,
		Duration:  100,
	}, oracle))
	require.NoError(t, db.SaveEpochChanges(ctx, ec))

	loaded, err = db.EpochChanges(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 2, loaded.NodeCount())

	// The restored forest answers queries like the original.
	want, err := ec.EpochForChildOf(ctx, blockRoot("B"), 1, 120, oracle)
	require.NoError(t, err)
	got, err := loaded.EpochForChildOf(ctx, blockRoot("B"), 1, 120, oracle)
	require.NoError(t, err)
	assert.DeepEqual(t, want, got)
}

func TestStore_EpochChanges_OverwriteKeepsLatest(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	oracle := testOracle(nil)

	ec := epochs.New()
	require.NoError(t, ec.Import(ctx, blockRoot("G"), 0, &epochs.Epoch{StartSlot: 0, Duration: 100}, oracle))
	require.NoError(t, db.SaveEpochChanges(ctx, ec))

	pruned, err := ec.PruneFinalized(ctx, blockRoot("G"), 0, oracle)
	require.NoError(t, err)
	require.Equal(t, false, pruned)
	require.NoError(t, ec.Import(ctx, blockRoot("H"), 0, &epochs.Epoch{StartSlot: 50, Duration: 100}, oracle))
	require.NoError(t, db.SaveEpochChanges(ctx, ec))

	loaded, err := db.EpochChanges(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 2, loaded.NodeCount())
}

func TestStore_FinalizedCheckpoint_RoundTrip(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	loaded, err := db.FinalizedCheckpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, true, loaded == nil)

	checkpoint := &Checkpoint{Root: blockRoot("B"), Number: 42}
	require.NoError(t, db.SaveFinalizedCheckpoint(ctx, checkpoint))

	loaded, err = db.FinalizedCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.DeepEqual(t, checkpoint, loaded)
}

func TestStore_DatabasePath(t *testing.T) {
	dirPath := t.TempDir()
	db, err := NewKVStore(dirPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()
	assert.Equal(t, dirPath, db.DatabasePath())
}

func TestStore_ClearDB(t *testing.T) {
	db, err := NewKVStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.ClearDB())
}
