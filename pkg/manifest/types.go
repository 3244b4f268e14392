// Package manifest defines the release data model (§3 of the design):
// ReleaseConfig and FacetConfig as inputs, FacetEntry and Route as
// computed records, and Manifest as the final persisted artifact. It also
// implements the leaf encoder (§4.3).
package manifest

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/payrox/manifest-core/pkg/hashing"
)

// ReleaseConfig declares one logical release. At least one facet is
// required; deployment holds optional per-facet salt overrides keyed by
// facet name.
type ReleaseConfig struct {
	Version     string                  `json:"version"`
	Description string                  `json:"description,omitempty"`
	Facets      []FacetConfig           `json:"facets"`
	Deployment  map[string]SaltOverride `json:"deployment,omitempty"`
}

// SaltOverride is an explicit 32-byte salt recorded in the release config
// for one facet, overriding the default (runtime-hash-derived) salt.
type SaltOverride struct {
	Salt hashing.Hash `json:"salt"`
}

// FacetConfig is one entry per facet in a release.
type FacetConfig struct {
	Name      string             `json:"name"`
	Contract  string             `json:"contract"`
	Selectors []hashing.Selector `json:"selectors,omitempty"`
	Priority  int                `json:"priority,omitempty"`
	GasLimit  *uint64            `json:"gasLimit,omitempty"`
}

// FacetArtifact is resolved by the external artifact store from a
// FacetConfig's Contract identifier.
type FacetArtifact struct {
	CreationBytecode []byte
	RuntimeBytecode  []byte
	Interface        []FunctionDescriptor
}

// FunctionDescriptor is one function entry of a facet's interface
// description, used by the selector deriver when no explicit selector
// list is given. Constructors, fallback, and receive entries must be
// excluded by the resolver.
type FunctionDescriptor struct {
	Name   string
	Inputs []string // canonical Solidity parameter types
}

// FacetEntry is the computed per-facet record produced by the address
// planner.
type FacetEntry struct {
	Name             string             `json:"name"`
	Contract         string             `json:"contract"`
	Creation         []byte             `json:"-"`
	Runtime          []byte             `json:"-"`
	RuntimeHash      hashing.Hash       `json:"bytecodeHash"`
	RuntimeSize      int                `json:"bytecodeSize"`
	Salt             hashing.Hash       `json:"salt"`
	InitCodeHash     hashing.Hash       `json:"-"`
	PredictedAddress common.Address     `json:"-"`
	Address          common.Address     `json:"address"`
	Selectors        []hashing.Selector `json:"selectors"`
	Priority         int                `json:"priority"`
	GasLimit         *uint64            `json:"gasLimit"`
}

// Route is one (selector, facet, codehash) binding.
type Route struct {
	Selector hashing.Selector `json:"selector"`
	Facet    common.Address   `json:"facet"`
	Codehash hashing.Hash     `json:"codehash"`
}

// Leaf computes the canonical leaf hash for a route:
// keccak256(abiEncode(["bytes4","address","bytes32"], [selector, facet,
// codehash])).
func (r Route) Leaf() (hashing.Hash, error) {
	encoded, err := hashing.EncodeRouteLeafInput(r.Selector, r.Facet, r.Codehash)
	if err != nil {
		return hashing.Hash{}, err
	}
	return hashing.Keccak256(encoded), nil
}

// NetworkRef names the network a manifest was built for.
type NetworkRef struct {
	Name    string `json:"name"`
	ChainID uint64 `json:"chainId"`
}

// ManifestFacet is the manifest's persisted per-facet record (§3).
type ManifestFacet struct {
	Name         string             `json:"name"`
	Contract     string             `json:"contract"`
	Address      common.Address     `json:"address"`
	Salt         hashing.Hash       `json:"salt"`
	BytecodeHash hashing.Hash       `json:"bytecodeHash"`
	BytecodeSize int                `json:"bytecodeSize"`
	Selectors    []hashing.Selector `json:"selectors"`
	Priority     int                `json:"priority"`
	GasLimit     *uint64            `json:"gasLimit"`
}

// Manifest is the final persisted record (§3). Field order and names are
// fixed by the design; serialization uses the hex codecs in pkg/hashing
// and the indented JSON writer in pkg/store.
type Manifest struct {
	Version      string          `json:"version"`
	Timestamp    string          `json:"timestamp"`
	Description  string          `json:"description,omitempty"`
	Network      NetworkRef      `json:"network"`
	Factory      common.Address  `json:"factory"`
	Facets       []ManifestFacet `json:"facets"`
	Routes       []Route         `json:"routes"`
	MerkleRoot   hashing.Hash    `json:"merkleRoot"`
	ManifestHash hashing.Hash    `json:"manifestHash"`
	PreviousHash *hashing.Hash   `json:"previousHash,omitempty"`
	Signature    *Signature      `json:"signature,omitempty"`
}

// Signature is an optional EIP-712-style typed-data signature over the
// canonical manifest message.
type Signature struct {
	R []byte `json:"r"`
	S []byte `json:"s"`
	V uint8  `json:"v"`
}
