// Package build implements the manifest composer (§4.6): it runs the
// address planner over every facet, assembles the route list under
// Merkle-leaf order, computes the canonical manifest hash, and persists
// the manifest, Merkle sidecar, and chunk-map artifacts atomically.
package build

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/payrox/manifest-core/pkg/config"
	"github.com/payrox/manifest-core/pkg/coreerr"
	"github.com/payrox/manifest-core/pkg/hashing"
	"github.com/payrox/manifest-core/pkg/manifest"
	"github.com/payrox/manifest-core/pkg/merkletree"
	"github.com/payrox/manifest-core/pkg/planner"
	"github.com/payrox/manifest-core/pkg/store"
)

// Paths names the three artifact locations the composer writes to.
type Paths struct {
	Manifest string
	Merkle   string
	ChunkMap string
}

// Options carries the inputs that are not part of the release config
// itself: the target network, the CREATE2 factory, the (optional)
// dispatcher address, and the collaborators that resolve facet artifacts
// and previously-deployed addresses.
type Options struct {
	Network      manifest.NetworkRef
	Factory      common.Address
	Dispatcher   common.Address // zero address if pre-dispatcher
	Resolver     planner.ArtifactResolver
	Deployed     planner.DeployedAddressLookup // nil if no address map available
	PreviousHash *hashing.Hash
	Store        store.Store
	Paths        Paths
	Logger       *zap.Logger
}

// Result bundles everything Compose produced, in case a caller wants the
// in-memory values without re-reading what was just written.
type Result struct {
	Manifest manifest.Manifest
	Merkle   MerkleSidecar
	Chunks   ChunkMap
}

// Compose runs the full build pipeline described in §4.6 and persists its
// three artifacts. It is fail-fast: the first fatal error aborts before
// anything is written.
func Compose(cfg manifest.ReleaseConfig, opts Options) (*Result, error) {
	if len(cfg.Facets) == 0 {
		return nil, coreerr.New(coreerr.KindMissingManifestField, "release config declares no facets")
	}

	network := opts.Network
	if network.Name == "" {
		if name, err := config.NetworkName(config.ChainID(network.ChainID)); err == nil {
			network.Name = name
		}
	}

	entries := make([]*manifest.FacetEntry, 0, len(cfg.Facets))
	for _, facetCfg := range cfg.Facets {
		var override *hashing.Hash
		if so, ok := cfg.Deployment[facetCfg.Name]; ok {
			s := so.Salt
			override = &s
		}

		entry, err := planner.Plan(facetCfg, override, opts.Resolver, opts.Deployed, network.ChainID, opts.Factory, opts.Logger)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	routes, err := routesFromEntries(entries)
	if err != nil {
		return nil, err
	}

	leaves := make([]hashing.Hash, len(routes))
	for i, r := range routes {
		leaf, err := r.Leaf()
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}

	tree, err := merkletree.Build(leaves)
	if err != nil {
		return nil, err
	}

	sortedRoutes := make([]manifest.Route, len(routes))
	for sortedIdx, origIdx := range tree.Permutation {
		sortedRoutes[sortedIdx] = routes[origIdx]
	}

	proofs, err := tree.Proofs()
	if err != nil {
		return nil, err
	}

	facetByAddress := make(map[common.Address]string, len(entries))
	for _, e := range entries {
		facetByAddress[e.Address] = e.Name
	}

	leafMetadata := make([]LeafMetadata, len(sortedRoutes))
	leafProofs := make([]LeafProof, len(proofs))
	for i, r := range sortedRoutes {
		leafMetadata[i] = LeafMetadata{
			Selector:  r.Selector,
			Facet:     r.Facet,
			Codehash:  r.Codehash,
			FacetName: facetByAddress[r.Facet],
		}
		leafProofs[i] = LeafProof{
			LeafIndex: proofs[i].LeafIndex,
			Leaf:      proofs[i].Leaf,
			Siblings:  proofs[i].Siblings,
			IsRight:   proofs[i].IsRight,
		}
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)

	manifestFacets := make([]manifest.ManifestFacet, len(entries))
	chunks := make(ChunkMap, len(entries))
	for i, e := range entries {
		manifestFacets[i] = manifest.ManifestFacet{
			Name:         e.Name,
			Contract:     e.Contract,
			Address:      e.Address,
			Salt:         e.Salt,
			BytecodeHash: e.RuntimeHash,
			BytecodeSize: e.RuntimeSize,
			Selectors:    e.Selectors,
			Priority:     e.Priority,
			GasLimit:     e.GasLimit,
		}
		chunks[e.Name] = ChunkEntry{
			Address:  e.Address,
			Salt:     e.Salt,
			Hash:     e.RuntimeHash,
			Size:     e.RuntimeSize,
			GasLimit: e.GasLimit,
		}
	}

	manifestHashInput, err := hashing.EncodeManifestTuple(
		cfg.Version,
		fmt.Sprintf("%d", network.ChainID),
		opts.Factory,
		opts.Dispatcher,
		tree.Root,
		uint64(len(sortedRoutes)),
		uint64(len(entries)),
		timestamp,
	)
	if err != nil {
		return nil, err
	}
	manifestHash := hashing.Keccak256(manifestHashInput)

	m := manifest.Manifest{
		Version:      cfg.Version,
		Timestamp:    timestamp,
		Description:  cfg.Description,
		Network:      network,
		Factory:      opts.Factory,
		Facets:       manifestFacets,
		Routes:       sortedRoutes,
		MerkleRoot:   tree.Root,
		ManifestHash: manifestHash,
		PreviousHash: opts.PreviousHash,
	}

	sidecar := MerkleSidecar{
		Root:         tree.Root,
		Leaves:       tree.Leaves,
		Proofs:       leafProofs,
		Tree:         tree.Levels(),
		LeafMetadata: leafMetadata,
	}

	if opts.Logger != nil {
		opts.Logger.Sugar().Infow("composed manifest",
			zap.String("version", cfg.Version),
			zap.Int("facets", len(entries)),
			zap.Int("routes", len(sortedRoutes)),
			zap.String("merkleRoot", fmt.Sprintf("0x%x", tree.Root)),
		)
	}

	if opts.Store != nil {
		if err := opts.Store.SaveArtifact(opts.Paths.Manifest, m); err != nil {
			return nil, err
		}
		if err := opts.Store.WriteJSON(opts.Paths.Merkle, sidecar, store.WriteOptions{Backup: true}); err != nil {
			return nil, err
		}
		if err := opts.Store.WriteJSON(opts.Paths.ChunkMap, chunks, store.WriteOptions{Backup: true}); err != nil {
			return nil, err
		}
	}

	return &Result{Manifest: m, Merkle: sidecar, Chunks: chunks}, nil
}

// routesFromEntries expands every facet's selectors into routes and
// enforces global selector uniqueness (invariant §3.3).
func routesFromEntries(entries []*manifest.FacetEntry) ([]manifest.Route, error) {
	seen := make(map[hashing.Selector]string)
	var routes []manifest.Route

	for _, e := range entries {
		for _, sel := range e.Selectors {
			if owner, ok := seen[sel]; ok {
				return nil, coreerr.Newf(coreerr.KindDuplicateSelector, "selector %x claimed by both %q and %q", sel, owner, e.Name).
					WithContext("selector", fmt.Sprintf("0x%x", sel)).
					WithContext("facets", [2]string{owner, e.Name})
			}
			seen[sel] = e.Name

			routes = append(routes, manifest.Route{
				Selector: sel,
				Facet:    e.Address,
				Codehash: e.RuntimeHash,
			})
		}
	}

	return routes, nil
}
