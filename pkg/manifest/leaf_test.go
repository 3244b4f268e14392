package manifest

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/payrox/manifest-core/pkg/hashing"
)

func TestLeafDeterministic(t *testing.T) {
	route := Route{
		Selector: hashing.Selector{0x12, 0x34, 0x56, 0x78},
		Facet:    common.HexToAddress("0x01"),
		Codehash: hashing.Keccak256([]byte{0x60, 0x80}),
	}

	a, err := route.Leaf()
	require.NoError(t, err)
	b, err := route.Leaf()
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestLeafChangesWithAnyField(t *testing.T) {
	base := Route{
		Selector: hashing.Selector{0x12, 0x34, 0x56, 0x78},
		Facet:    common.HexToAddress("0x01"),
		Codehash: hashing.Keccak256([]byte{0x60, 0x80}),
	}
	baseLeaf, err := base.Leaf()
	require.NoError(t, err)

	diffSelector := base
	diffSelector.Selector = hashing.Selector{0, 0, 0, 1}
	l, err := diffSelector.Leaf()
	require.NoError(t, err)
	require.NotEqual(t, baseLeaf, l)

	diffFacet := base
	diffFacet.Facet = common.HexToAddress("0x02")
	l, err = diffFacet.Leaf()
	require.NoError(t, err)
	require.NotEqual(t, baseLeaf, l)

	diffCodehash := base
	diffCodehash.Codehash = hashing.Keccak256([]byte{0x61})
	l, err = diffCodehash.Leaf()
	require.NoError(t, err)
	require.NotEqual(t, baseLeaf, l)
}
