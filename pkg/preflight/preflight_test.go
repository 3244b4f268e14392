package preflight

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/payrox/manifest-core/pkg/build"
	"github.com/payrox/manifest-core/pkg/hashing"
	"github.com/payrox/manifest-core/pkg/manifest"
	"github.com/payrox/manifest-core/pkg/store"
)

type fakeResolver struct {
	artifacts map[string]*manifest.FacetArtifact
}

func (f *fakeResolver) Resolve(contract string) (*manifest.FacetArtifact, error) {
	a, ok := f.artifacts[contract]
	if !ok {
		return nil, errNotFound(contract)
	}
	return a, nil
}

type errNotFound string

func (e errNotFound) Error() string { return "not found: " + string(e) }

type fakeAccessor struct {
	code     []byte
	callResp []byte
	callErr  error
}

func (f *fakeAccessor) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	return f.code, nil
}

func (f *fakeAccessor) Call(ctx context.Context, address common.Address, calldata []byte) ([]byte, error) {
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callResp, nil
}

// buildFixtureManifest runs the composer over two facets and returns the
// result plus the resolver so preflight can recompute the same codehashes.
func buildFixtureManifest(t *testing.T, factory, dispatcher common.Address, chainID uint64) (*build.Result, *fakeResolver, store.Store, string) {
	t.Helper()
	cfg := manifest.ReleaseConfig{
		Version: "1.0.0",
		Facets: []manifest.FacetConfig{
			{Name: "A", Contract: "A", Selectors: []hashing.Selector{{0xaa, 0xaa, 0xaa, 0xaa}}},
			{Name: "B", Contract: "B", Selectors: []hashing.Selector{{0xbb, 0xbb, 0xbb, 0xbb}}},
		},
	}
	resolver := &fakeResolver{artifacts: map[string]*manifest.FacetArtifact{
		"A": {CreationBytecode: []byte{0x60, 0x01}, RuntimeBytecode: []byte{0x60, 0x02}},
		"B": {CreationBytecode: []byte{0x60, 0x03}, RuntimeBytecode: []byte{0x60, 0x04}},
	}}

	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)

	manifestPath := filepath.Join(dir, "manifest.json")
	opts := build.Options{
		Network:    manifest.NetworkRef{Name: "anvil", ChainID: chainID},
		Factory:    factory,
		Dispatcher: dispatcher,
		Resolver:   resolver,
		Store:      st,
		Paths: build.Paths{
			Manifest: manifestPath,
			Merkle:   filepath.Join(dir, "merkle.json"),
			ChunkMap: filepath.Join(dir, "chunks.json"),
		},
	}

	result, err := build.Compose(cfg, opts)
	require.NoError(t, err)
	return result, resolver, st, manifestPath
}

func TestRunRoundTripOfflinePasses(t *testing.T) {
	// Testable property 9: write, read back, re-run preflight offline.
	factory := common.HexToAddress("0x0000000000000000000000000000000000000001")
	dispatcher := common.HexToAddress("0x0000000000000000000000000000000000000002")
	result, resolver, st, manifestPath := buildFixtureManifest(t, factory, dispatcher, 31337)

	targets := []Target{
		{
			Name:              "anvil",
			ChainID:           31337,
			DispatcherAddress: dispatcher,
			Accessor:          &fakeAccessor{code: nil}, // not yet deployed
		},
	}

	report, err := Run(context.Background(), manifestPath, targets, Options{
		Resolver:       resolver,
		Store:          st,
		ReportPath:     filepath.Join(filepath.Dir(manifestPath), "preflight.json"),
		MaxConcurrency: 2,
	})
	require.NoError(t, err)
	require.True(t, report.Passed)
	require.Len(t, report.Networks, 1)

	net := report.Networks[0]
	require.Equal(t, result.Manifest.MerkleRoot, net.ComputedHashes[ComputedMerkleRoot])
	require.Equal(t, result.Manifest.ManifestHash, net.ComputedHashes[ComputedManifestHash])
	require.True(t, net.Checks[CheckMerkleRoot])
	require.True(t, net.Checks[CheckManifestHash])
	require.True(t, net.Checks[CheckCodehashes])
	require.Contains(t, net.Warnings, "dispatcher not yet deployed on anvil")

	var written Report
	require.NoError(t, st.ReadJSON(filepath.Join(filepath.Dir(manifestPath), "preflight.json"), &written))
	require.True(t, written.Passed)
}

func TestRunOnChainMismatchFails(t *testing.T) {
	// Scenario S6.
	factory := common.HexToAddress("0x0000000000000000000000000000000000000001")
	dispatcher := common.HexToAddress("0x0000000000000000000000000000000000000002")
	_, resolver, st, manifestPath := buildFixtureManifest(t, factory, dispatcher, 31337)

	wrongHash := hashing.Keccak256([]byte("not the manifest hash"))

	targets := []Target{
		{
			Name:              "mismatched",
			ChainID:           31337,
			DispatcherAddress: dispatcher,
			Accessor:          &fakeAccessor{code: []byte{0x60, 0x00}, callResp: wrongHash[:]},
		},
		{
			Name:              "absent",
			ChainID:           31337,
			DispatcherAddress: dispatcher,
			Accessor:          &fakeAccessor{code: nil},
		},
	}

	report, err := Run(context.Background(), manifestPath, targets, Options{
		Resolver: resolver,
		Store:    st,
	})
	require.NoError(t, err)
	require.False(t, report.Passed)
	require.Len(t, report.Networks, 2)

	// Sorted by name: "absent" before "mismatched".
	absent := report.Networks[0]
	mismatched := report.Networks[1]

	require.Equal(t, "absent", absent.NetworkName)
	require.True(t, absent.Passed)
	require.Contains(t, absent.Warnings, "dispatcher not yet deployed on absent")

	require.Equal(t, "mismatched", mismatched.NetworkName)
	require.False(t, mismatched.Passed)
	require.False(t, mismatched.Checks[CheckDispatcherOnline])
	found := false
	for _, e := range mismatched.Errors {
		if strings.Contains(e, "OnChainHashMismatch") {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunOutOfBandGasLimitIsWarningOnly(t *testing.T) {
	// spec.md point 7: gas-estimate checks are a warning band, never fatal.
	factory := common.HexToAddress("0x0000000000000000000000000000000000000001")
	dispatcher := common.HexToAddress("0x0000000000000000000000000000000000000002")

	tooHigh := uint64(maxGasEstimate + 1)
	cfg := manifest.ReleaseConfig{
		Version: "1.0.0",
		Facets: []manifest.FacetConfig{
			{Name: "A", Contract: "A", Selectors: []hashing.Selector{{0xaa, 0xaa, 0xaa, 0xaa}}, GasLimit: &tooHigh},
		},
	}
	resolver := &fakeResolver{artifacts: map[string]*manifest.FacetArtifact{
		"A": {CreationBytecode: []byte{0x60, 0x01}, RuntimeBytecode: []byte{0x60, 0x02}},
	}}

	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)

	manifestPath := filepath.Join(dir, "manifest.json")
	_, err = build.Compose(cfg, build.Options{
		Network:    manifest.NetworkRef{Name: "anvil", ChainID: 31337},
		Factory:    factory,
		Dispatcher: dispatcher,
		Resolver:   resolver,
		Store:      st,
		Paths: build.Paths{
			Manifest: manifestPath,
			Merkle:   filepath.Join(dir, "merkle.json"),
			ChunkMap: filepath.Join(dir, "chunks.json"),
		},
	})
	require.NoError(t, err)

	targets := []Target{
		{
			Name:              "anvil",
			ChainID:           31337,
			DispatcherAddress: dispatcher,
			Accessor:          &fakeAccessor{code: nil},
		},
	}

	report, err := Run(context.Background(), manifestPath, targets, Options{
		Resolver: resolver,
		Store:    st,
	})
	require.NoError(t, err)
	require.True(t, report.Passed)

	net := report.Networks[0]
	require.True(t, net.Passed)
	require.True(t, net.Checks[CheckGasEstimates])
	found := false
	for _, w := range net.Warnings {
		if strings.Contains(w, "gas limit") && strings.Contains(w, "outside") {
			found = true
		}
	}
	require.True(t, found)
}

func TestRunFailsOnMissingManifestField(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, st.WriteJSON(path, manifest.Manifest{}, store.WriteOptions{}))

	_, err = Run(context.Background(), path, nil, Options{Store: st})
	require.Error(t, err)
	require.Contains(t, err.Error(), "MissingManifestField")
}
