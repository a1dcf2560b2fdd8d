package epochs

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/kairosnetwork/kairos/config/params"
	types "github.com/kairosnetwork/kairos/consensus-types/primitives"
)

// queryKey identifies one resolved epoch query. The parent root pins the
// fork; the parent number is implied by the root.
type queryKey struct {
	parentRoot [32]byte
	slot       types.Slot
}

// SharedEpochChanges serializes access to one EpochChanges instance across
// the block import pipeline, the authoring path and the verification path.
// Every operation takes the exclusive lock, queries included: a resolution
// racing an in-flight import must never observe a partially updated tree.
// The lock is held for the duration of a single operation, which includes
// any header lookups the ancestry oracle performs.
//
// Resolved queries are cached until the next mutation. The cache lives and
// dies under the same lock as the tree, so it can never serve an answer the
// current tree shape would not.
type SharedEpochChanges struct {
	lock  sync.Mutex
	inner *EpochChanges
	cache *lru.Cache
}

// NewShared wraps an epoch-change tracker for shared use. A nil inner
// tracker starts empty.
func NewShared(inner *EpochChanges) (*SharedEpochChanges, error) {
	if inner == nil {
		inner = New()
	}
	size := params.KairosConfig().EpochQueryCacheSize
	if size <= 0 {
		size = 1
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "could not create epoch query cache")
	}
	return &SharedEpochChanges{
		inner: inner,
		cache: cache,
	}, nil
}

// Import records an epoch signalled at the given block and invalidates the
// query cache.
func (s *SharedEpochChanges) Import(ctx context.Context, root [32]byte, number uint64, epoch *Epoch, isDescendantOf IsDescendantFn) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.inner.Import(ctx, root, number, epoch, isDescendantOf); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

// EpochForChildOf resolves the epoch governing a child of the given parent
// at the given slot, consulting the query cache first.
func (s *SharedEpochChanges) EpochForChildOf(ctx context.Context, parentRoot [32]byte, parentNumber uint64, slot types.Slot, isDescendantOf IsDescendantFn) (*Epoch, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	key := queryKey{parentRoot: parentRoot, slot: slot}
	if cached, ok := s.cache.Get(key); ok {
		queryCacheHit.Inc()
		return cached.(*Epoch).Copy(), nil
	}
	queryCacheMiss.Inc()

	epoch, err := s.inner.EpochForChildOf(ctx, parentRoot, parentNumber, slot, isDescendantOf)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, epoch.Copy())
	return epoch, nil
}

// PruneFinalized prunes epoch data unreachable from the finalized block and
// invalidates the query cache when anything was dropped.
func (s *SharedEpochChanges) PruneFinalized(ctx context.Context, root [32]byte, number uint64, isDescendantOf IsDescendantFn) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	pruned, err := s.inner.PruneFinalized(ctx, root, number, isDescendantOf)
	if err != nil {
		return false, err
	}
	if pruned {
		s.cache.Purge()
	}
	return pruned, nil
}

// Do runs fn with the exclusive lock held, for callers that need several
// operations against a consistent tree, such as persisting the structure
// right after mutating it. The query cache is invalidated afterwards since
// fn may have mutated the tree.
func (s *SharedEpochChanges) Do(fn func(*EpochChanges) error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	defer s.cache.Purge()
	return fn(s.inner)
}
