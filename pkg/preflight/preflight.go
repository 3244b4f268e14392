// Package preflight implements the preflight validator (§4.7): it reads a
// persisted manifest back, re-derives every hash and ordering invariant
// from scratch, and — network permitting — compares the result against
// on-chain state across a bounded-fanout set of target networks.
//
// Adapted from the teacher's registerOperator/contractCaller flow: an
// interface boundary (NetworkAccessor here, ContractCaller there) kept
// deliberately thin so the validator itself stays free of RPC-client
// details, plus the same "accumulate, never unwind" error-handling shape
// the teacher's operator registration command uses for per-item failures.
package preflight

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/payrox/manifest-core/pkg/config"
	"github.com/payrox/manifest-core/pkg/coreerr"
	"github.com/payrox/manifest-core/pkg/hashing"
	"github.com/payrox/manifest-core/pkg/manifest"
	"github.com/payrox/manifest-core/pkg/merkletree"
	"github.com/payrox/manifest-core/pkg/planner"
	"github.com/payrox/manifest-core/pkg/selector"
	"github.com/payrox/manifest-core/pkg/store"
)

// activeManifestHashSelector is the 4-byte selector for the dispatcher's
// read-only `activeManifestHash()` accessor (design §6, point 9).
var activeManifestHashSelector = selector.Function{Name: "activeManifestHash"}.Selector()

const (
	minGasEstimate        = 1
	maxGasEstimate        = 10_000_000
	minGasPerByte         = 1
	maxGasPerByte         = 1000
	defaultMaxConcurrency = 4
)

// Options carries the validator's collaborators: the artifact resolver
// used to recompute bytecode hashes (step 6), the persistence contract
// the manifest is read from and the report is written to, and the
// bounded-fanout knobs for the network fan-out (§5).
type Options struct {
	Resolver       planner.ArtifactResolver
	Store          store.Store
	ReportPath     string        // "" skips writing a report
	MaxConcurrency int           // <=0 defaults to defaultMaxConcurrency
	Limiter        *rate.Limiter // nil disables RPC rate limiting
	Logger         *zap.Logger
}

// Run loads the manifest at manifestPath and validates it against every
// target network, in parallel with bounded fan-out. It returns a Report
// whose Passed field is the conjunction over all networks' Passed fields.
func Run(ctx context.Context, manifestPath string, targets []Target, opts Options) (*Report, error) {
	if opts.Store == nil {
		return nil, coreerr.New(coreerr.KindFileOperationError, "preflight requires a store to read the manifest from")
	}

	var m manifest.Manifest
	if err := opts.Store.ReadJSON(manifestPath, &m); err != nil {
		return nil, err
	}
	if err := requireManifestFields(m); err != nil {
		return nil, err
	}

	globalChecks, globalErrors, recomputedMerkleRoot := validateGlobal(m)

	concurrency := opts.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}
	sem := make(chan struct{}, concurrency)

	results := make([]PreflightValidation, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target Target) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = validateNetwork(ctx, m, target, recomputedMerkleRoot, globalChecks, globalErrors, opts)
		}(i, target)
	}
	wg.Wait()

	// Sort by network name: goroutine completion order must never affect
	// output bytes (§5).
	sort.Slice(results, func(i, j int) bool { return results[i].NetworkName < results[j].NetworkName })

	passed := true
	for _, r := range results {
		if !r.Passed {
			passed = false
			break
		}
	}

	report := &Report{
		ManifestPath: manifestPath,
		Passed:       passed,
		Networks:     results,
	}

	if opts.Store != nil && opts.ReportPath != "" {
		if err := opts.Store.WriteJSON(opts.ReportPath, report, store.WriteOptions{Backup: true}); err != nil {
			return nil, err
		}
	}

	if opts.Logger != nil {
		opts.Logger.Sugar().Infow("preflight complete",
			zap.Bool("passed", passed),
			zap.Int("networks", len(results)),
		)
	}

	return report, nil
}

func requireManifestFields(m manifest.Manifest) error {
	if m.Version == "" {
		return coreerr.New(coreerr.KindMissingManifestField, "manifest is missing version")
	}
	if len(m.Facets) == 0 {
		return coreerr.New(coreerr.KindMissingManifestField, "manifest declares no facets")
	}
	if len(m.Routes) == 0 {
		return coreerr.New(coreerr.KindMissingManifestField, "manifest declares no routes")
	}
	if m.MerkleRoot == (hashing.Hash{}) {
		return coreerr.New(coreerr.KindMissingManifestField, "manifest is missing merkleRoot")
	}
	if m.ManifestHash == (hashing.Hash{}) {
		return coreerr.New(coreerr.KindMissingManifestField, "manifest is missing manifestHash")
	}
	return nil
}

// validateGlobal performs the network-independent checks (steps 2, 4,
// 5): these are recomputed once and shared by every network's record,
// since they do not depend on chainId or the dispatcher address.
func validateGlobal(m manifest.Manifest) (checks map[Check]bool, errs []string, merkleRoot hashing.Hash) {
	checks = make(map[Check]bool)

	leaves := make([]hashing.Hash, len(m.Routes))
	for i, r := range m.Routes {
		leaf, err := r.Leaf()
		if err != nil {
			errs = append(errs, "recompute leaf "+strconv.Itoa(i)+": "+err.Error())
			continue
		}
		leaves[i] = leaf
	}

	tree, err := merkletree.Build(leaves)
	if err != nil {
		errs = append(errs, err.Error())
		checks[CheckMerkleRoot] = false
	} else {
		merkleRoot = tree.Root
		checks[CheckMerkleRoot] = tree.Root == m.MerkleRoot
		if !checks[CheckMerkleRoot] {
			errs = append(errs, coreerr.New(coreerr.KindMerkleRootMismatch, "recomputed merkle root does not match stored value").Error())
		}
	}

	checks[CheckSelectorsSorted] = true
	seen := make(map[hashing.Selector]string)
	checks[CheckSelectorsUnique] = true
	for _, f := range m.Facets {
		if !selector.IsSorted(f.Selectors) {
			checks[CheckSelectorsSorted] = false
			errs = append(errs, coreerr.New(coreerr.KindSelectorNotSorted, "facet "+f.Name+" has unsorted selectors").Error())
		}
		for _, sel := range f.Selectors {
			if owner, ok := seen[sel]; ok {
				checks[CheckSelectorsUnique] = false
				errs = append(errs, coreerr.Newf(coreerr.KindSelectorDuplicateAcrossFacets, "selector claimed by both %q and %q", owner, f.Name).Error())
				continue
			}
			seen[sel] = f.Name
		}
	}

	checks[CheckPreviousHash] = m.PreviousHash == nil || len(m.PreviousHash) == 32

	return checks, errs, merkleRoot
}

// validateNetwork performs the per-network checks: the manifestHash
// recompute (chainId- and dispatcher-dependent), the bytecode/codehash
// recompute (step 6), the gas-estimate band (step 7), the optional
// signature check (step 8), and the on-chain comparison (step 9).
func validateNetwork(
	ctx context.Context,
	m manifest.Manifest,
	target Target,
	recomputedMerkleRoot hashing.Hash,
	globalChecks map[Check]bool,
	globalErrors []string,
	opts Options,
) PreflightValidation {
	result := PreflightValidation{
		NetworkName:    target.Name,
		ChainID:        target.ChainID,
		Checks:         make(map[Check]bool, len(globalChecks)+4),
		ComputedHashes: make(map[ComputedHash]hashing.Hash, 3),
		Errors:         append([]string{}, globalErrors...),
	}
	for k, v := range globalChecks {
		result.Checks[k] = v
	}
	result.ComputedHashes[ComputedMerkleRoot] = recomputedMerkleRoot

	// State machine (§4.7): NotStarted -> Checking -> {Passed|Failed}. The
	// Checking state is this function's body; Passed/Failed is result.Passed
	// once every check below has run.

	manifestHashInput, err := hashing.EncodeManifestTuple(
		m.Version,
		strconv.FormatUint(target.ChainID, 10),
		m.Factory,
		target.DispatcherAddress,
		m.MerkleRoot,
		uint64(len(m.Routes)),
		uint64(len(m.Facets)),
		m.Timestamp,
	)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.Checks[CheckManifestHash] = false
	} else {
		recomputed := hashing.Keccak256(manifestHashInput)
		result.ComputedHashes[ComputedManifestHash] = recomputed
		result.Checks[CheckManifestHash] = recomputed == m.ManifestHash
		if !result.Checks[CheckManifestHash] {
			result.Errors = append(result.Errors, coreerr.New(coreerr.KindManifestHashMismatch, "recomputed manifest hash does not match stored value").Error())
		}
	}

	codehashOK, gasOK, warnings, errs := validateFacets(m.Facets, opts.Resolver)
	result.Checks[CheckCodehashes] = codehashOK
	result.Checks[CheckGasEstimates] = gasOK
	result.Warnings = append(result.Warnings, warnings...)
	result.Errors = append(result.Errors, errs...)

	if m.Signature != nil {
		domain := config.NewSignatureDomain(config.ChainID(target.ChainID), target.DispatcherAddress.Hex())
		digest := typedDataDigest(domain, m.Version, m.MerkleRoot, m.ManifestHash, m.Timestamp)
		signer, err := recoverSigner(digest, m.Signature.R, m.Signature.S, m.Signature.V)
		if err != nil {
			result.Checks[CheckSignature] = false
			result.Errors = append(result.Errors, coreerr.Newf(coreerr.KindSignatureInvalid, "recover signer: %v", err).Error())
		} else {
			result.Checks[CheckSignature] = true
			result.Signer = &signer
		}
	}

	if target.Accessor != nil {
		validateOnChain(ctx, &result, m, target, opts)
	}

	result.Passed = allChecksPassed(result.Checks)
	return result
}

// validateFacets re-hashes and re-sizes every facet's runtime bytecode
// (step 6) and checks its recorded gas estimate (step 7, warning-only).
func validateFacets(facets []manifest.ManifestFacet, resolver planner.ArtifactResolver) (codehashOK, gasOK bool, warnings, errs []string) {
	codehashOK = true
	gasOK = true

	if resolver == nil {
		return codehashOK, gasOK, warnings, errs
	}

	for _, f := range facets {
		artifact, err := resolver.Resolve(f.Contract)
		if err != nil {
			codehashOK = false
			wrapped := errors.Wrapf(err, "resolve %q for preflight", f.Contract)
			errs = append(errs, coreerr.Newf(coreerr.KindArtifactUnresolved, "%v", wrapped).Error())
			continue
		}

		recomputedHash := hashing.Keccak256(artifact.RuntimeBytecode)
		if recomputedHash != f.BytecodeHash || len(artifact.RuntimeBytecode) != f.BytecodeSize {
			codehashOK = false
			errs = append(errs, coreerr.Newf(coreerr.KindCodehashMismatch, "facet %q: recomputed codehash or size does not match manifest", f.Name).Error())
		}

		if f.GasLimit != nil {
			gl := *f.GasLimit
			if gl < minGasEstimate || gl > maxGasEstimate {
				warnings = append(warnings, coreerr.Newf(coreerr.KindInvalidHashInput, "facet %q: gas limit %d outside [%d, %d]", f.Name, gl, minGasEstimate, maxGasEstimate).Error())
			} else if f.BytecodeSize > 0 {
				ratio := gl / uint64(f.BytecodeSize)
				if ratio < minGasPerByte || ratio > maxGasPerByte {
					warnings = append(warnings, coreerr.Newf(coreerr.KindInvalidHashInput, "facet %q: gas/byte ratio %d outside [%d, %d]", f.Name, ratio, minGasPerByte, maxGasPerByte).Error())
				}
			}
		}
	}

	return codehashOK, gasOK, warnings, errs
}

// validateOnChain performs step 9: if the dispatcher has bytecode at the
// target network, read its active manifest hash and compare. Absence of
// the dispatcher is a warning, not an error (S6).
func validateOnChain(ctx context.Context, result *PreflightValidation, m manifest.Manifest, target Target, opts Options) {
	if opts.Limiter != nil {
		if err := opts.Limiter.Wait(ctx); err != nil {
			result.Warnings = append(result.Warnings, "rate limiter: "+err.Error())
			return
		}
	}

	code, err := target.Accessor.GetCode(ctx, target.DispatcherAddress)
	if err != nil {
		result.Warnings = append(result.Warnings, "getCode("+target.Name+"): "+err.Error())
		return
	}
	if len(code) == 0 {
		result.Warnings = append(result.Warnings, "dispatcher not yet deployed on "+target.Name)
		return
	}

	if opts.Limiter != nil {
		if err := opts.Limiter.Wait(ctx); err != nil {
			result.Warnings = append(result.Warnings, "rate limiter: "+err.Error())
			return
		}
	}

	out, err := target.Accessor.Call(ctx, target.DispatcherAddress, activeManifestHashSelector[:])
	if err != nil {
		result.Errors = append(result.Errors, "call activeManifestHash("+target.Name+"): "+err.Error())
		result.Checks[CheckDispatcherOnline] = false
		return
	}
	if len(out) != 32 {
		result.Errors = append(result.Errors, "activeManifestHash returned unexpected length on "+target.Name)
		result.Checks[CheckDispatcherOnline] = false
		return
	}

	var onChainHash hashing.Hash
	copy(onChainHash[:], out)
	result.ComputedHashes[ComputedOnChainHash] = onChainHash
	result.Checks[CheckDispatcherOnline] = onChainHash == m.ManifestHash
	if !result.Checks[CheckDispatcherOnline] {
		result.Errors = append(result.Errors, coreerr.New(coreerr.KindOnChainHashMismatch, "on-chain manifest hash does not match the manifest's own hash").Error())
	}
}

func allChecksPassed(checks map[Check]bool) bool {
	for _, ok := range checks {
		if !ok {
			return false
		}
	}
	return true
}

// NewRateLimiter constructs the rate limiter Options.Limiter expects,
// bounding how fast the validator issues getCode/call RPCs per network. A
// non-positive rate disables limiting.
func NewRateLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
