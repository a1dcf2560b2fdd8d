package epochs

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kairosnetwork/kairos/config/params"
	types "github.com/kairosnetwork/kairos/consensus-types/primitives"
	"github.com/kairosnetwork/kairos/testing/assert"
	"github.com/kairosnetwork/kairos/testing/require"
)

func TestNewShared_CacheSizeFloor(t *testing.T) {
	params.SetupTestConfigCleanup(t)
	cfg := params.KairosConfig().Copy()
	cfg.EpochQueryCacheSize = 0
	params.OverrideKairosConfig(cfg)

	// A zero configured size still yields a working single-entry cache.
	shared, err := NewShared(setupTracker(t))
	require.NoError(t, err)

	epoch, err := shared.EpochForChildOf(context.Background(), blockRoot("B"), 2, 120, testOracle(testChain))
	require.NoError(t, err)
	require.NotNil(t, epoch)
	assert.Equal(t, 1, shared.cache.Len())
}

func TestSharedEpochChanges_QueryCacheLifecycle(t *testing.T) {
	inner := setupTracker(t)
	shared, err := NewShared(inner)
	require.NoError(t, err)
	ctx := context.Background()
	oracle := testOracle(testChain)

	epoch, err := shared.EpochForChildOf(ctx, blockRoot("B"), 2, 120, oracle)
	require.NoError(t, err)
	require.NotNil(t, epoch)
	require.Equal(t, 1, shared.cache.Len())

	// A second query is served from the cache and still returns a copy.
	cached, err := shared.EpochForChildOf(ctx, blockRoot("B"), 2, 120, oracle)
	require.NoError(t, err)
	require.NotNil(t, cached)
	cached.Authorities[0].Weight = 99
	again, err := shared.EpochForChildOf(ctx, blockRoot("B"), 2, 120, oracle)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), again.Authorities[0].Weight)

	// Mutations invalidate every cached entry.
	require.NoError(t, shared.Import(ctx, blockRoot("D"), 3, testEpoch(3, 200), chainWith(map[[32]byte][32]byte{blockRoot("D"): blockRoot("B")})))
	assert.Equal(t, 0, shared.cache.Len())
}

func TestSharedEpochChanges_CachesGenesisFallback(t *testing.T) {
	shared, err := NewShared(nil)
	require.NoError(t, err)
	ctx := context.Background()
	oracle := testOracle(testChain)

	epoch, err := shared.EpochForChildOf(ctx, blockRoot("B"), 2, 120, oracle)
	require.NoError(t, err)
	require.Equal(t, true, epoch == nil)
	require.Equal(t, 1, shared.cache.Len())

	epoch, err = shared.EpochForChildOf(ctx, blockRoot("B"), 2, 120, oracle)
	require.NoError(t, err)
	assert.Equal(t, true, epoch == nil)
}

func TestSharedEpochChanges_PrunePurgesOnlyWhenPruned(t *testing.T) {
	shared, err := NewShared(setupTracker(t))
	require.NoError(t, err)
	ctx := context.Background()
	oracle := testOracle(testChain)

	_, err = shared.EpochForChildOf(ctx, blockRoot("B"), 2, 120, oracle)
	require.NoError(t, err)
	require.Equal(t, 1, shared.cache.Len())

	pruned, err := shared.PruneFinalized(ctx, blockRoot("B"), 2, oracle)
	require.NoError(t, err)
	require.Equal(t, true, pruned)
	require.Equal(t, 0, shared.cache.Len())

	// A no-op prune keeps the cache intact.
	_, err = shared.EpochForChildOf(ctx, blockRoot("B"), 2, 120, oracle)
	require.NoError(t, err)
	pruned, err = shared.PruneFinalized(ctx, blockRoot("B"), 2, oracle)
	require.NoError(t, err)
	require.Equal(t, false, pruned)
	assert.Equal(t, 1, shared.cache.Len())
}

func TestSharedEpochChanges_Do(t *testing.T) {
	shared, err := NewShared(nil)
	require.NoError(t, err)
	ctx := context.Background()
	oracle := testOracle(testChain)

	// Import and resolve against a consistent tree in one critical section.
	var resolved *Epoch
	require.NoError(t, shared.Do(func(ec *EpochChanges) error {
		if err := ec.Import(ctx, blockRoot("G"), 0, testEpoch(0, 0), oracle); err != nil {
			return err
		}
		var innerErr error
		resolved, innerErr = ec.EpochForChildOf(ctx, blockRoot("G"), 0, 10, oracle)
		return innerErr
	}))
	require.NotNil(t, resolved)
	assert.Equal(t, types.Epoch(0), resolved.Index)
}

func TestSharedEpochChanges_ConcurrentAccess(t *testing.T) {
	shared, err := NewShared(nil)
	require.NoError(t, err)
	ctx := context.Background()

	// A linear chain of 16 blocks, each signalling a new epoch.
	parents := make(map[[32]byte][32]byte)
	roots := make([][32]byte, 17)
	roots[0] = blockRoot("genesis")
	for i := 1; i <= 16; i++ {
		roots[i] = blockRoot(fmt.Sprintf("block-%d", i))
		parents[roots[i]] = roots[i-1]
	}
	oracle := testOracle(parents)

	var wg sync.WaitGroup
	for i := 0; i <= 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			err := shared.Import(ctx, roots[i], uint64(i), testEpoch(types.Epoch(i), types.Slot(i*100)), oracle)
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := shared.EpochForChildOf(ctx, roots[i], uint64(i), types.Slot(i*100), oracle)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 17, shared.inner.NodeCount())
	epoch, err := shared.EpochForChildOf(ctx, roots[16], 16, 1600, oracle)
	require.NoError(t, err)
	require.NotNil(t, epoch)
	assert.Equal(t, types.Epoch(16), epoch.Index)
}

// chainWith extends the standard test chain with extra parent links.
func chainWith(extra map[[32]byte][32]byte) IsDescendantFn {
	parents := make(map[[32]byte][32]byte, len(testChain)+len(extra))
	for child, parent := range testChain {
		parents[child] = parent
	}
	for child, parent := range extra {
		parents[child] = parent
	}
	return testOracle(parents)
}
