package merkletree

import (
	"bytes"
	"sort"

	"github.com/payrox/manifest-core/pkg/coreerr"
	"github.com/payrox/manifest-core/pkg/hashing"
)

// Build constructs a Merkle tree from an unsorted set of leaves. Leaves
// are sorted lexicographically by their 32-byte value before the tree is
// built; the sort permutation is recorded on the returned Tree so callers
// can reorder companion route data to match.
//
// An empty leaf set returns an EmptyRouteSet error and a nil tree.
func Build(leaves []hashing.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, coreerr.New(coreerr.KindEmptyRouteSet, "cannot build a merkle tree from zero leaves")
	}

	perm := make([]int, len(leaves))
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(i, j int) bool {
		return bytes.Compare(leaves[perm[i]][:], leaves[perm[j]][:]) < 0
	})

	sorted := make([]hashing.Hash, len(leaves))
	for i, srcIdx := range perm {
		sorted[i] = leaves[srcIdx]
	}

	levels := [][]hashing.Hash{sorted}
	current := sorted
	for len(current) > 1 {
		next := make([]hashing.Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, hashing.PairHash(left, right))
		}
		levels = append(levels, next)
		current = next
	}

	return &Tree{
		Leaves:      sorted,
		Root:        current[0],
		Permutation: perm,
		levels:      levels,
	}, nil
}

// Proof generates an inclusion proof for the leaf at sorted index i.
func (t *Tree) Proof(leafIndex int) (*Proof, error) {
	if leafIndex < 0 || leafIndex >= len(t.Leaves) {
		return nil, coreerr.Newf(coreerr.KindInvalidHashInput, "leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(t.Leaves)).WithContext("leafIndex", leafIndex)
	}

	var siblings []hashing.Hash
	var isRight []bool
	index := leafIndex

	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]

		siblingIndex := index ^ 1
		right := index%2 == 1
		if siblingIndex >= len(nodes) {
			// odd-length level: the last node is its own sibling
			siblingIndex = index
		}

		siblings = append(siblings, nodes[siblingIndex])
		isRight = append(isRight, right)
		index /= 2
	}

	return &Proof{
		LeafIndex: leafIndex,
		Leaf:      t.Leaves[leafIndex],
		Siblings:  siblings,
		IsRight:   isRight,
	}, nil
}

// Proofs generates an inclusion proof for every leaf, in leaf order.
func (t *Tree) Proofs() ([]*Proof, error) {
	proofs := make([]*Proof, len(t.Leaves))
	for i := range t.Leaves {
		p, err := t.Proof(i)
		if err != nil {
			return nil, err
		}
		proofs[i] = p
	}
	return proofs, nil
}

// Levels exposes the full level structure, leaves first, root last. Used
// by the manifest composer to emit the Merkle sidecar's `tree[][]` field.
func (t *Tree) Levels() [][]hashing.Hash {
	return t.levels
}

// Verify recomputes the root from a leaf and its proof, walking
// `parent = pairHash(left, right)` with (left, right) chosen by IsRight at
// each step, and reports whether the result equals root.
func Verify(leaf hashing.Hash, proof *Proof, root hashing.Hash) bool {
	if proof == nil {
		return false
	}
	running := leaf
	for i, sibling := range proof.Siblings {
		if proof.IsRight[i] {
			running = hashing.PairHash(sibling, running)
		} else {
			running = hashing.PairHash(running, sibling)
		}
	}
	return running == root
}
