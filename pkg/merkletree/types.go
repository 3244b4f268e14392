// Package merkletree builds an ordered-pair Merkle tree over a sorted,
// deduplicated set of 32-byte leaves and generates OpenZeppelin-compatible
// inclusion proofs. Hashing is keccak256 with ordered-pair hashing
// (keccak256(left||right)) and duplicate-last padding for odd-length
// levels — never sorted-pair hashing, which would produce incompatible
// proofs.
//
// Adapted from the teacher's node-acknowledgement Merkle tree: same tree
// construction and proof-walk shape, generalized to take pre-hashed route
// leaves and to track the leaf sort permutation so callers can reorder
// routes to match leaf order.
package merkletree

import "github.com/payrox/manifest-core/pkg/hashing"

// Tree is an ordered list of levels; Levels[0] is the sorted leaf set and
// each subsequent level halves the previous by ordered-pair hashing.
type Tree struct {
	// Leaves is the sorted leaf set (level 0).
	Leaves []hashing.Hash

	// Root is the single element of the final level. The zero hash if
	// Leaves is empty.
	Root hashing.Hash

	// Permutation[i] is the index, in the caller's original (pre-sort)
	// leaf order, of the leaf that now sits at sorted position i. Callers
	// use this to reorder companion data (routes) to match leaf order.
	Permutation []int

	levels [][]hashing.Hash
}

// Proof is an OpenZeppelin-compatible ordered-pair inclusion proof: the
// sibling hash encountered at each level from leaf to root, paired with a
// direction bit recording whether that sibling was the right-hand node.
type Proof struct {
	LeafIndex int
	Leaf      hashing.Hash
	Siblings  []hashing.Hash
	IsRight   []bool
}
