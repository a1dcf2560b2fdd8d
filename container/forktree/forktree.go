// Package forktree implements a forest of ancestry-ordered block trees.
//
// Each node records the block at which some payload was signalled, keyed by
// block hash and number. The forest never inspects chain storage itself:
// every operation receives an ancestry oracle answering whether one block
// descends from another. Nodes are held in a flat arena with index-based
// child lists, which keeps the structure free of pointer aliasing and makes
// it a plain serializable value.
package forktree

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// NonExistentNode is the sentinel arena index for a missing node.
const NonExistentNode = ^uint64(0)

// IsDescendantFn answers whether descendant descends from ancestor. It is
// supplied by the caller on every operation and is typically backed by the
// header database. Oracle failures abort the enclosing operation without
// mutating the tree and are returned wrapped; use errors.Is to recover the
// original error.
type IsDescendantFn[H any] func(ctx context.Context, ancestor, descendant H) (bool, error)

// Unsigned constrains the block number type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Node is a copy of a tree entry returned by queries. Mutating it has no
// effect on the tree.
type Node[H comparable, N Unsigned, V any] struct {
	Hash    H
	Number  N
	Payload V
}

type treeNode[H comparable, N Unsigned, V any] struct {
	hash     H
	number   N
	payload  V
	children []uint64
}

// Tree is a forest of disjoint block trees. Roots are pairwise
// non-ancestor-related and every non-root node's parent is its nearest
// ancestor present at insertion time. The zero value is not usable; call New.
type Tree[H comparable, N Unsigned, V any] struct {
	nodes   []treeNode[H, N, V]
	roots   []uint64
	indices map[H]uint64
}

// New creates an empty tree.
func New[H comparable, N Unsigned, V any]() *Tree[H, N, V] {
	return &Tree[H, N, V]{
		indices: make(map[H]uint64),
	}
}

// NodeCount returns the number of nodes in the forest.
func (t *Tree[H, N, V]) NodeCount() int {
	return len(t.nodes)
}

// HasNode returns true if a block with the given hash was inserted.
func (t *Tree[H, N, V]) HasNode(hash H) bool {
	_, ok := t.indices[hash]
	return ok
}

// isAncestor reports whether the node at idx is a strict ancestor of
// (hash, number). The block number is used as a fast pre-filter so the
// oracle is only consulted for nodes that could possibly qualify.
func (t *Tree[H, N, V]) isAncestor(ctx context.Context, idx uint64, hash H, number N, isDescendantOf IsDescendantFn[H]) (bool, error) {
	n := &t.nodes[idx]
	if n.hash == hash || n.number >= number {
		return false, nil
	}
	ok, err := isDescendantOf(ctx, n.hash, hash)
	if err != nil {
		return false, errors.Wrap(err, "could not determine ancestry")
	}
	return ok, nil
}

// ancestorPath returns the arena indices of the chain of nodes leading to
// the deepest strict ancestor of (hash, number), walking from the roots and
// choosing at each level the at most one child that is an ancestor of the
// query point. The returned path is empty when no node in the forest is an
// ancestor of the query point. Read-only.
func (t *Tree[H, N, V]) ancestorPath(ctx context.Context, hash H, number N, isDescendantOf IsDescendantFn[H]) ([]uint64, error) {
	var path []uint64
	candidates := t.roots
	for {
		next := NonExistentNode
		for _, idx := range candidates {
			ok, err := t.isAncestor(ctx, idx, hash, number, isDescendantOf)
			if err != nil {
				return nil, err
			}
			if ok {
				next = idx
				break
			}
		}
		if next == NonExistentNode {
			return path, nil
		}
		path = append(path, next)
		candidates = t.nodes[next].children
	}
}

// descendantsOf returns the subset of candidates that descend from
// (hash, number), erroring if the oracle claims a descendant whose number
// does not exceed the claimed ancestor's. Read-only.
func (t *Tree[H, N, V]) descendantsOf(ctx context.Context, candidates []uint64, hash H, number N, isDescendantOf IsDescendantFn[H]) ([]uint64, error) {
	var moved []uint64
	for _, idx := range candidates {
		n := &t.nodes[idx]
		ok, err := isDescendantOf(ctx, hash, n.hash)
		if err != nil {
			return nil, errors.Wrap(err, "could not determine ancestry")
		}
		if !ok {
			continue
		}
		if n.number <= number {
			return nil, ErrInvalidAncestry
		}
		moved = append(moved, idx)
	}
	return moved, nil
}

// Insert adds a new node for the block (hash, number) carrying payload. The
// node is attached beneath its nearest ancestor already in the forest, or
// becomes a new root when it has none. Siblings that descend from the new
// node are re-homed beneath it, so a later insert can fill in an
// intermediate point between previously disjoint nodes. Inserting a block
// that is already present fails with ErrDuplicateNode. All ancestry answers
// are gathered before the forest is touched, so a failing oracle leaves the
// forest unchanged.
func (t *Tree[H, N, V]) Insert(ctx context.Context, hash H, number N, payload V, isDescendantOf IsDescendantFn[H]) error {
	if _, ok := t.indices[hash]; ok {
		return ErrDuplicateNode
	}

	path, err := t.ancestorPath(ctx, hash, number, isDescendantOf)
	if err != nil {
		return err
	}

	siblings := t.roots
	parent := NonExistentNode
	if len(path) > 0 {
		parent = path[len(path)-1]
		siblings = t.nodes[parent].children
	}
	moved, err := t.descendantsOf(ctx, siblings, hash, number, isDescendantOf)
	if err != nil {
		return err
	}

	newIdx := uint64(len(t.nodes))
	t.nodes = append(t.nodes, treeNode[H, N, V]{
		hash:     hash,
		number:   number,
		payload:  payload,
		children: moved,
	})
	t.indices[hash] = newIdx
	if parent == NonExistentNode {
		t.roots = append(removeIndices(t.roots, moved), newIdx)
	} else {
		t.nodes[parent].children = append(removeIndices(t.nodes[parent].children, moved), newIdx)
	}
	return nil
}

// FindAncestorWhere returns a copy of the deepest node that is a strict
// ancestor of (hash, number) and whose payload satisfies predicate, or nil
// when no ancestor node satisfies it. Semantically this answers "of all
// signalled transitions on the chain leading to this query point, which is
// the most recent one meeting this condition". The query point itself is
// never a candidate; callers needing an inclusive match must query through a
// synthetic descendant of the block they mean to include.
func (t *Tree[H, N, V]) FindAncestorWhere(ctx context.Context, hash H, number N, isDescendantOf IsDescendantFn[H], predicate func(V) bool) (*Node[H, N, V], error) {
	path, err := t.ancestorPath(ctx, hash, number, isDescendantOf)
	if err != nil {
		return nil, err
	}
	best := NonExistentNode
	for _, idx := range path {
		if predicate(t.nodes[idx].payload) {
			best = idx
		}
	}
	if best == NonExistentNode {
		return nil, nil
	}
	n := &t.nodes[best]
	return &Node[H, N, V]{Hash: n.hash, Number: n.number, Payload: n.payload}, nil
}

// Prune discards every node incompatible with the finalized block
// (hash, number): nodes that are neither an ancestor of, nor equal to, nor a
// descendant of it. Among the finalized block's strict ancestors all but the
// most recent one are discarded as well; that one is retained as a new root
// because still-live descendants of the finalized block may not have passed
// it yet in predicate checks. Any node that survives either is that retained
// ancestor or descends from the finalized block, and hence from the retained
// ancestor, so no surviving fork can require a payload older than it.
// Returns whether any node was discarded. Oracle answers are gathered before
// the forest is touched.
func (t *Tree[H, N, V]) Prune(ctx context.Context, hash H, number N, isDescendantOf IsDescendantFn[H]) (bool, error) {
	if len(t.nodes) == 0 {
		return false, nil
	}

	retain := make([]bool, len(t.nodes))
	bestAncestor := NonExistentNode
	for idx := range t.nodes {
		n := &t.nodes[idx]
		switch {
		case n.hash == hash:
			retain[idx] = true
		case n.number > number:
			ok, err := isDescendantOf(ctx, hash, n.hash)
			if err != nil {
				return false, errors.Wrap(err, "could not determine ancestry")
			}
			retain[idx] = ok
		case n.number < number:
			ok, err := isDescendantOf(ctx, n.hash, hash)
			if err != nil {
				return false, errors.Wrap(err, "could not determine ancestry")
			}
			if !ok {
				continue
			}
			if bestAncestor != NonExistentNode && t.nodes[bestAncestor].number == n.number {
				// Two distinct blocks at the same height cannot both be
				// ancestors of the finalized block.
				return false, ErrInvalidAncestry
			}
			if bestAncestor == NonExistentNode || n.number > t.nodes[bestAncestor].number {
				bestAncestor = uint64(idx)
			}
		}
	}
	if bestAncestor != NonExistentNode {
		retain[bestAncestor] = true
	}

	retained := 0
	for _, keep := range retain {
		if keep {
			retained++
		}
	}
	if retained == len(t.nodes) {
		return false, nil
	}
	t.compact(retain, retained)
	return true, nil
}

// compact rebuilds the arena keeping only the flagged nodes, remapping child
// indices and recomputing the root set.
func (t *Tree[H, N, V]) compact(retain []bool, retained int) {
	remap := make([]uint64, len(t.nodes))
	nodes := make([]treeNode[H, N, V], 0, retained)
	indices := make(map[H]uint64, retained)
	for idx := range t.nodes {
		if !retain[idx] {
			continue
		}
		remap[idx] = uint64(len(nodes))
		indices[t.nodes[idx].hash] = remap[idx]
		nodes = append(nodes, t.nodes[idx])
	}

	isChild := make([]bool, len(nodes))
	for i := range nodes {
		var children []uint64
		for _, c := range nodes[i].children {
			if retain[c] {
				children = append(children, remap[c])
			}
		}
		nodes[i].children = children
		for _, c := range children {
			isChild[c] = true
		}
	}

	var roots []uint64
	for i := range nodes {
		if !isChild[i] {
			roots = append(roots, uint64(i))
		}
	}

	t.nodes = nodes
	t.roots = roots
	t.indices = indices
}

// removeIndices returns indices with every element of remove filtered out,
// preserving order.
func removeIndices(indices, remove []uint64) []uint64 {
	if len(remove) == 0 {
		return indices
	}
	drop := make(map[uint64]bool, len(remove))
	for _, idx := range remove {
		drop[idx] = true
	}
	kept := make([]uint64, 0, len(indices))
	for _, idx := range indices {
		if !drop[idx] {
			kept = append(kept, idx)
		}
	}
	return kept
}

type marshalNode[H comparable, N Unsigned, V any] struct {
	Hash     H        `json:"hash"`
	Number   N        `json:"number"`
	Payload  V        `json:"payload"`
	Children []uint64 `json:"children"`
}

type marshalTree[H comparable, N Unsigned, V any] struct {
	Nodes []marshalNode[H, N, V] `json:"nodes"`
	Roots []uint64               `json:"roots"`
}

// MarshalJSON encodes the forest as its flat arena form.
func (t *Tree[H, N, V]) MarshalJSON() ([]byte, error) {
	enc := marshalTree[H, N, V]{
		Nodes: make([]marshalNode[H, N, V], len(t.nodes)),
		Roots: t.roots,
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		enc.Nodes[i] = marshalNode[H, N, V]{
			Hash:     n.hash,
			Number:   n.number,
			Payload:  n.payload,
			Children: n.children,
		}
	}
	return json.Marshal(enc)
}

// UnmarshalJSON decodes a forest previously produced by MarshalJSON,
// validating arena indices.
func (t *Tree[H, N, V]) UnmarshalJSON(data []byte) error {
	var dec marshalTree[H, N, V]
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}
	nodes := make([]treeNode[H, N, V], len(dec.Nodes))
	indices := make(map[H]uint64, len(dec.Nodes))
	for i, n := range dec.Nodes {
		for _, c := range n.Children {
			if c >= uint64(len(dec.Nodes)) {
				return errMalformedEncoding
			}
		}
		if _, ok := indices[n.Hash]; ok {
			return errMalformedEncoding
		}
		nodes[i] = treeNode[H, N, V]{
			hash:     n.Hash,
			number:   n.Number,
			payload:  n.Payload,
			children: n.Children,
		}
		indices[n.Hash] = uint64(i)
	}
	for _, r := range dec.Roots {
		if r >= uint64(len(dec.Nodes)) {
			return errMalformedEncoding
		}
	}
	t.nodes = nodes
	t.roots = dec.Roots
	t.indices = indices
	return nil
}
