// Package planner implements the deterministic address planner (§4.4):
// given a factory address, a facet's creation/runtime bytecode, and its
// constructor-salt rules, it computes the facet's predicted CREATE2
// address and assembles the rest of its FacetEntry.
package planner

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/payrox/manifest-core/pkg/coreerr"
	"github.com/payrox/manifest-core/pkg/hashing"
	"github.com/payrox/manifest-core/pkg/manifest"
	"github.com/payrox/manifest-core/pkg/selector"
)

// ArtifactResolver resolves a facet's Contract identifier to its compiled
// artifact. Resolution failures are surfaced as ArtifactUnresolved.
type ArtifactResolver interface {
	Resolve(contract string) (*manifest.FacetArtifact, error)
}

// DeployedAddressLookup reports a previously recorded deployed address for
// a facet name on a given chain, if one exists. Used only to prefer a
// real deployed address in FacetEntry.Address while the predicted address
// and salt are still recorded for downstream verification (design §4.4.6).
type DeployedAddressLookup interface {
	DeployedAddress(facetName string, chainID uint64) (common.Address, bool)
}

// Plan computes the FacetEntry for one facet.
func Plan(
	cfg manifest.FacetConfig,
	saltOverride *hashing.Hash,
	resolver ArtifactResolver,
	deployed DeployedAddressLookup,
	chainID uint64,
	factory common.Address,
	logger *zap.Logger,
) (*manifest.FacetEntry, error) {
	artifact, err := resolver.Resolve(cfg.Contract)
	if err != nil {
		wrapped := errors.Wrapf(err, "resolve contract %q", cfg.Contract)
		return nil, coreerr.Newf(coreerr.KindArtifactUnresolved, "%v", wrapped).WithContext("contract", cfg.Contract)
	}

	if len(artifact.RuntimeBytecode) == 0 {
		return nil, coreerr.New(coreerr.KindEmptyRuntimeBytecode, "facet runtime bytecode is empty").WithContext("facet", cfg.Name)
	}

	runtimeHash := hashing.Keccak256(artifact.RuntimeBytecode)
	initCodeHash := hashing.Keccak256(artifact.CreationBytecode)

	salt := runtimeHash
	if saltOverride != nil {
		salt = *saltOverride
	}

	predicted := hashing.Create2Address(factory, salt, initCodeHash)

	address := predicted
	if deployed != nil {
		if recorded, ok := deployed.DeployedAddress(cfg.Name, chainID); ok {
			address = recorded
		}
	}

	sels, err := deriveSelectors(cfg, artifact)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Sugar().Debugw("planned facet",
			zap.String("facet", cfg.Name),
			zap.String("contract", cfg.Contract),
			zap.String("predictedAddress", predicted.Hex()),
			zap.String("address", address.Hex()),
			zap.Int("selectorCount", len(sels)),
		)
	}

	return &manifest.FacetEntry{
		Name:             cfg.Name,
		Contract:         cfg.Contract,
		Creation:         artifact.CreationBytecode,
		Runtime:          artifact.RuntimeBytecode,
		RuntimeHash:      runtimeHash,
		RuntimeSize:      len(artifact.RuntimeBytecode),
		Salt:             salt,
		InitCodeHash:     initCodeHash,
		PredictedAddress: predicted,
		Address:          address,
		Selectors:        sels,
		Priority:         cfg.Priority,
		GasLimit:         cfg.GasLimit,
	}, nil
}

func deriveSelectors(cfg manifest.FacetConfig, artifact *manifest.FacetArtifact) ([]hashing.Selector, error) {
	fns := make([]selector.Function, len(artifact.Interface))
	for i, fn := range artifact.Interface {
		params := make([]selector.Param, len(fn.Inputs))
		for j, t := range fn.Inputs {
			params[j] = selector.Param{Type: t}
		}
		fns[i] = selector.Function{Name: fn.Name, Inputs: params}
	}

	sels, err := selector.Derive(fns, cfg.Selectors)
	if err != nil {
		return nil, withFacetContext(err, cfg.Name)
	}
	return sels, nil
}

func withFacetContext(err error, facetName string) error {
	if ce, ok := err.(*coreerr.Error); ok {
		return ce.WithContext("facet", facetName)
	}
	return err
}
