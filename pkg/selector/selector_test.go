package selector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/payrox/manifest-core/pkg/hashing"
)

func TestFunctionSignatureCanonicalizesUint(t *testing.T) {
	fn := Function{Name: "transfer", Inputs: []Param{{Type: "address"}, {Type: "uint"}}}
	require.Equal(t, "transfer(address,uint256)", fn.Signature())
}

func TestDeriveFromInterface(t *testing.T) {
	fns := []Function{
		{Name: "balanceOf", Inputs: []Param{{Type: "address"}}},
		{Name: "totalSupply"},
	}
	sels, err := Derive(fns, nil)
	require.NoError(t, err)
	require.Len(t, sels, 2)
	require.True(t, IsSorted(sels))
}

func TestDeriveExplicitTakesPrecedence(t *testing.T) {
	fns := []Function{{Name: "shouldNotBeUsed"}}
	explicit := []hashing.Selector{{0x12, 0x34, 0x56, 0x78}}

	sels, err := Derive(fns, explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, sels)
}

func TestDeriveDedupsAndSorts(t *testing.T) {
	explicit := []hashing.Selector{
		{0xbb, 0xbb, 0xbb, 0xbb},
		{0xaa, 0xaa, 0xaa, 0xaa},
		{0xaa, 0xaa, 0xaa, 0xaa},
	}
	sels, err := Derive(nil, explicit)
	require.NoError(t, err)
	require.Equal(t, []hashing.Selector{{0xaa, 0xaa, 0xaa, 0xaa}, {0xbb, 0xbb, 0xbb, 0xbb}}, sels)
}

func TestDeriveEmptyFails(t *testing.T) {
	_, err := Derive(nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "EmptySelectorSet")
}

func TestIsSortedRejectsOutOfOrder(t *testing.T) {
	sels := []hashing.Selector{{0x02}, {0x01}}
	require.False(t, IsSorted(sels))
}
