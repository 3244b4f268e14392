package planner

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/payrox/manifest-core/pkg/hashing"
	"github.com/payrox/manifest-core/pkg/manifest"
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

type notFoundErr string

func (e notFoundErr) Error() string { return "contract not found: " + string(e) }
func errNotFound(contract string) error { return notFoundErr(contract) }

func TestPlanSingleFacetSingleSelector(t *testing.T) {
	// Scenario S1 from the design's test suite.
	factory := common.HexToAddress("0x0000000000000000000000000000000000000001")
	artifact := &manifest.FacetArtifact{
		CreationBytecode: []byte{0x60, 0x00},
		RuntimeBytecode:  []byte{0x60, 0x80},
	}
	cfg := manifest.FacetConfig{
		Name:      "FacetA",
		Contract:  "FacetA",
		Selectors: []hashing.Selector{{0x12, 0x34, 0x56, 0x78}},
	}
	resolver := &fakeResolver{artifacts: map[string]*manifest.FacetArtifact{"FacetA": artifact}}

	entry, err := Plan(cfg, nil, resolver, nil, 31337, factory, nil)
	require.NoError(t, err)

	wantRuntimeHash := hashing.Keccak256(artifact.RuntimeBytecode)
	require.Equal(t, wantRuntimeHash, entry.RuntimeHash)
	require.Equal(t, wantRuntimeHash, entry.Salt) // no override -> salt == runtimeHash

	wantInitCodeHash := hashing.Keccak256(artifact.CreationBytecode)
	wantAddr := hashing.Create2Address(factory, wantRuntimeHash, wantInitCodeHash)
	require.Equal(t, wantAddr, entry.PredictedAddress)
	require.Equal(t, wantAddr, entry.Address) // no recorded deployed address
	require.Equal(t, []hashing.Selector{{0x12, 0x34, 0x56, 0x78}}, entry.Selectors)
}

func TestPlanSaltOverrideChangesOnlyThatFacet(t *testing.T) {
	// Scenario S3.
	factory := common.HexToAddress("0x01")
	resolver := &fakeResolver{artifacts: map[string]*manifest.FacetArtifact{
		"A": {CreationBytecode: []byte{0x01}, RuntimeBytecode: []byte{0x02}},
		"B": {CreationBytecode: []byte{0x03}, RuntimeBytecode: []byte{0x04}},
	}}

	cfgA := manifest.FacetConfig{Name: "A", Contract: "A", Selectors: []hashing.Selector{{0xaa, 0xaa, 0xaa, 0xaa}}}
	cfgB := manifest.FacetConfig{Name: "B", Contract: "B", Selectors: []hashing.Selector{{0xcc, 0xcc, 0xcc, 0xcc}}}

	entryA1, err := Plan(cfgA, nil, resolver, nil, 31337, factory, nil)
	require.NoError(t, err)
	entryB1, err := Plan(cfgB, nil, resolver, nil, 31337, factory, nil)
	require.NoError(t, err)

	override := hashing.Keccak256([]byte{0x11})
	entryA2, err := Plan(cfgA, &override, resolver, nil, 31337, factory, nil)
	require.NoError(t, err)
	entryB2, err := Plan(cfgB, nil, resolver, nil, 31337, factory, nil)
	require.NoError(t, err)

	require.NotEqual(t, entryA1.PredictedAddress, entryA2.PredictedAddress)
	require.Equal(t, entryB1.PredictedAddress, entryB2.PredictedAddress)
	require.Equal(t, override, entryA2.Salt)
}

func TestPlanEmptyRuntimeFails(t *testing.T) {
	// Scenario S4.
	factory := common.HexToAddress("0x01")
	resolver := &fakeResolver{artifacts: map[string]*manifest.FacetArtifact{
		"Empty": {CreationBytecode: []byte{0x01}, RuntimeBytecode: nil},
	}}
	cfg := manifest.FacetConfig{Name: "Empty", Contract: "Empty"}

	_, err := Plan(cfg, nil, resolver, nil, 31337, factory, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "EmptyRuntimeBytecode")
}

func TestPlanUnresolvedContractFails(t *testing.T) {
	resolver := &fakeResolver{artifacts: map[string]*manifest.FacetArtifact{}}
	cfg := manifest.FacetConfig{Name: "Ghost", Contract: "Ghost"}

	_, err := Plan(cfg, nil, resolver, nil, 31337, common.HexToAddress("0x01"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ArtifactUnresolved")
}

type fakeDeployedLookup struct {
	addr common.Address
}

func (f fakeDeployedLookup) DeployedAddress(facetName string, chainID uint64) (common.Address, bool) {
	return f.addr, true
}

func TestPlanPrefersRecordedDeployedAddressButKeepsPredicted(t *testing.T) {
	factory := common.HexToAddress("0x01")
	resolver := &fakeResolver{artifacts: map[string]*manifest.FacetArtifact{
		"A": {CreationBytecode: []byte{0x01}, RuntimeBytecode: []byte{0x02}},
	}}
	cfg := manifest.FacetConfig{Name: "A", Contract: "A", Selectors: []hashing.Selector{{1, 2, 3, 4}}}

	deployed := fakeDeployedLookup{addr: common.HexToAddress("0x00000000000000000000000000000000009999")}
	entry, err := Plan(cfg, nil, resolver, deployed, 31337, factory, nil)
	require.NoError(t, err)

	require.Equal(t, deployed.addr, entry.Address)
	require.NotEqual(t, deployed.addr, entry.PredictedAddress)
}
