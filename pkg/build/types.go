package build

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/payrox/manifest-core/pkg/hashing"
)

// MerkleSidecar is the merkle artifact written alongside the manifest:
// the root, the sorted leaves, a proof per leaf, the full level
// structure, and per-leaf metadata for human-facing reports.
type MerkleSidecar struct {
	Root         hashing.Hash     `json:"root"`
	Leaves       []hashing.Hash   `json:"leaves"`
	Proofs       []LeafProof      `json:"proofs"`
	Tree         [][]hashing.Hash `json:"tree"`
	LeafMetadata []LeafMetadata   `json:"leafMetadata"`
}

// LeafProof is the JSON-serializable form of a merkletree.Proof.
type LeafProof struct {
	LeafIndex int            `json:"leafIndex"`
	Leaf      hashing.Hash   `json:"leaf"`
	Siblings  []hashing.Hash `json:"siblings"`
	IsRight   []bool         `json:"isRight"`
}

// LeafMetadata describes the route a leaf was derived from, for
// human-facing tooling that needs to map a proof back to a facet.
type LeafMetadata struct {
	Selector  hashing.Selector `json:"selector"`
	Facet     common.Address   `json:"facet"`
	Codehash  hashing.Hash     `json:"codehash"`
	FacetName string           `json:"facetName"`
}

// ChunkMap is one entry per facet, used by deploy tooling to know what to
// deploy where without re-parsing the full manifest.
type ChunkMap map[string]ChunkEntry

// ChunkEntry is one facet's deployment chunk.
type ChunkEntry struct {
	Address  common.Address `json:"address"`
	Salt     hashing.Hash   `json:"salt"`
	Hash     hashing.Hash   `json:"hash"`
	Size     int            `json:"size"`
	GasLimit *uint64        `json:"gasLimit"`
}
