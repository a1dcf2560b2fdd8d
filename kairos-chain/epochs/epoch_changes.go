package epochs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"

	types "github.com/kairosnetwork/kairos/consensus-types/primitives"
	"github.com/kairosnetwork/kairos/container/forktree"
)

// IsDescendantFn is the ancestry oracle consumed by every operation,
// answering whether one block descends from another. It is backed by the
// header database and must answer correctly for any two blocks previously
// imported or queried.
type IsDescendantFn = forktree.IsDescendantFn[[32]byte]

// EpochChanges is the tree of epoch changes across all seen forks. Each node
// records the hash and number of the block signalling an epoch change and
// the epoch that was signalled at that block.
type EpochChanges struct {
	tree *forktree.Tree[[32]byte, uint64, *Epoch]
}

// New creates an empty epoch-change tracker.
func New() *EpochChanges {
	return &EpochChanges{
		tree: forktree.New[[32]byte, uint64, *Epoch](),
	}
}

// NodeCount returns the number of epoch changes tracked across all forks.
func (ec *EpochChanges) NodeCount() int {
	return ec.tree.NodeCount()
}

// Import records that epoch was signalled at the block (root, number). The
// descriptor's StartSlot is the slot its rules take effect at, which need
// not be the signalling block's slot. Importing the same block twice fails
// with forktree.ErrDuplicateNode.
func (ec *EpochChanges) Import(ctx context.Context, root [32]byte, number uint64, epoch *Epoch, isDescendantOf IsDescendantFn) error {
	ctx, span := trace.StartSpan(ctx, "epochs.Import")
	defer span.End()

	if epoch == nil {
		return errNilEpoch
	}
	if err := ec.tree.Insert(ctx, root, number, epoch.Copy(), isDescendantOf); err != nil {
		return err
	}
	importedCount.Inc()
	nodeCountGauge.Set(float64(ec.tree.NodeCount()))
	log.WithFields(logrus.Fields{
		"root":      fmt.Sprintf("%#x", root),
		"number":    number,
		"startSlot": epoch.StartSlot,
	}).Debug("Imported epoch change")
	return nil
}

// EpochForChildOf finds the epoch governing a hypothetical child of the
// block (parentRoot, parentNumber) produced at the given slot: the most
// recently signalled epoch on the chain up to and including the parent whose
// start slot has passed relative to slot. Returns nil when no signalled
// epoch applies, in which case the genesis epoch governs.
func (ec *EpochChanges) EpochForChildOf(ctx context.Context, parentRoot [32]byte, parentNumber uint64, slot types.Slot, isDescendantOf IsDescendantFn) (*Epoch, error) {
	ctx, span := trace.StartSpan(ctx, "epochs.EpochForChildOf")
	defer span.End()

	// The ancestor search is strict, so an epoch signalled at the parent
	// itself would be skipped when querying through the parent directly.
	// Query through a synthetic child of the parent instead. The child's
	// number saturates rather than wrapping to 0, which would fail the
	// number gate for every node in the tree.
	head := hypotheticalChild(parentRoot)
	childNumber := parentNumber + 1
	if childNumber == 0 {
		childNumber = math.MaxUint64
	}
	node, err := ec.tree.FindAncestorWhere(ctx, head, childNumber, descendsThroughParent(parentRoot, head, isDescendantOf),
		func(e *Epoch) bool { return e.StartSlot <= slot })
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}
	return node.Payload.Copy(), nil
}

// PruneFinalized discards epoch changes on forks incompatible with the
// finalized block (root, number), keeping the most recent change at or below
// the finalized block since its descendants may still be governed by it.
// Returns whether anything was pruned, so callers can persist the structure
// only when it changed.
func (ec *EpochChanges) PruneFinalized(ctx context.Context, root [32]byte, number uint64, isDescendantOf IsDescendantFn) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "epochs.PruneFinalized")
	defer span.End()

	pruned, err := ec.tree.Prune(ctx, root, number, isDescendantOf)
	if err != nil {
		return false, err
	}
	if pruned {
		prunedCount.Inc()
		nodeCountGauge.Set(float64(ec.tree.NodeCount()))
		log.WithFields(logrus.Fields{
			"root":   fmt.Sprintf("%#x", root),
			"number": number,
		}).Debug("Pruned epoch changes for finalized block")
	}
	return pruned, nil
}

// hypotheticalChild derives a query point that is treated as a proper
// descendant of parentRoot and can collide with no real block: the high bit
// of the first hash byte is flipped, which a strong 256-bit hash makes safe
// to rely on up to cryptographically negligible odds.
func hypotheticalChild(parentRoot [32]byte) [32]byte {
	child := parentRoot
	child[0] ^= 0x80
	return child
}

// descendsThroughParent adapts the caller's oracle to the synthetic query
// point: a real block is an ancestor of the synthetic child exactly when it
// is the parent itself or an ancestor of the parent.
func descendsThroughParent(parentRoot, child [32]byte, isDescendantOf IsDescendantFn) IsDescendantFn {
	return func(ctx context.Context, ancestor, descendant [32]byte) (bool, error) {
		if descendant == child {
			if ancestor == parentRoot {
				return true, nil
			}
			return isDescendantOf(ctx, ancestor, parentRoot)
		}
		return isDescendantOf(ctx, ancestor, descendant)
	}
}

// MarshalJSON encodes the full forest, payloads included.
func (ec *EpochChanges) MarshalJSON() ([]byte, error) {
	return json.Marshal(ec.tree)
}

// UnmarshalJSON decodes a forest previously produced by MarshalJSON.
func (ec *EpochChanges) UnmarshalJSON(data []byte) error {
	tree := forktree.New[[32]byte, uint64, *Epoch]()
	if err := json.Unmarshal(data, tree); err != nil {
		return err
	}
	ec.tree = tree
	return nil
}
