// Package hashing provides the pure cryptographic primitives the rest of
// the manifest core builds on: keccak256, fixed-tuple ABI encoding,
// byte concatenation, and CREATE2 address derivation. Nothing in
// this package performs I/O.
package hashing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/payrox/manifest-core/pkg/coreerr"
)

// Hash is a 32-byte digest. It is a named array type, the same pattern
// go-ethereum uses for common.Hash, so it packs through the ABI encoder
// unchanged while still carrying its own JSON representation below.
type Hash [32]byte

// Selector is a 4-byte function selector.
type Selector [4]byte

// Keccak256 hashes arbitrary data with keccak256, the same primitive the
// teacher's merkle package uses for Solidity-compatible hashing.
func Keccak256(data ...[]byte) Hash {
	return Hash(crypto.Keccak256Hash(data...))
}

// PairHash computes keccak256(left || right), preserving argument order.
// This is the ordered-pair construction the Merkle builder requires; it
// must never be confused with a sorted-pair hash.
func PairHash(left, right Hash) Hash {
	return Keccak256(left[:], right[:])
}

// Concat concatenates byte slices without copying more than necessary.
func Concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Create2Address derives the CREATE2 contract address:
// lower20(keccak256(0xff || factory || salt || initCodeHash)).
func Create2Address(factory common.Address, salt Hash, initCodeHash Hash) common.Address {
	data := Concat([]byte{0xff}, factory.Bytes(), salt[:], initCodeHash[:])
	full := Keccak256(data)
	var addr common.Address
	copy(addr[:], full[12:])
	return addr
}

// EncodeRouteLeafInput ABI-encodes the fixed (bytes4, address, bytes32)
// tuple used by the leaf encoder, each value left-padded to 32 bytes,
// matching Solidity's ABI encoding of a function-argument tuple.
func EncodeRouteLeafInput(selector Selector, facet common.Address, codehash Hash) ([]byte, error) {
	return abiEncode(
		[]string{"bytes4", "address", "bytes32"},
		[]any{selector, facet, codehash},
	)
}

// EncodeManifestTuple ABI-encodes the fixed 8-tuple used for the canonical
// manifest hash: (string, string, address, address, bytes32, uint256,
// uint256, string).
func EncodeManifestTuple(
	version string,
	chainID string,
	factory common.Address,
	dispatcher common.Address,
	merkleRoot Hash,
	entryCount uint64,
	chunkCount uint64,
	timestamp string,
) ([]byte, error) {
	return abiEncode(
		[]string{"string", "string", "address", "address", "bytes32", "uint256", "uint256", "string"},
		[]any{version, chainID, factory, dispatcher, merkleRoot, new(big.Int).SetUint64(entryCount), new(big.Int).SetUint64(chunkCount), timestamp},
	)
}

// EncodeSignatureMessage ABI-encodes the signature message tuple
// (string version, bytes32 merkleRoot, bytes32 manifestHash, string
// timestamp) with standard ABI encoding. This is not the EIP-712 struct
// encoding: the preflight validator computes the typed-data struct hash
// itself in pkg/preflight/eip712.go.
func EncodeSignatureMessage(version string, merkleRoot, manifestHash Hash, timestamp string) ([]byte, error) {
	return abiEncode(
		[]string{"string", "bytes32", "bytes32", "string"},
		[]any{version, merkleRoot, manifestHash, timestamp},
	)
}

func abiEncode(types []string, values []any) ([]byte, error) {
	if len(types) != len(values) {
		return nil, coreerr.New(coreerr.KindInvalidHashInput, "type/value count mismatch")
	}
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		abiType, err := abi.NewType(t, "", nil)
		if err != nil {
			return nil, coreerr.Newf(coreerr.KindInvalidHashInput, "invalid abi type %q: %v", t, err)
		}
		args = append(args, abi.Argument{Type: abiType})
	}
	packed, err := args.Pack(values...)
	if err != nil {
		return nil, coreerr.Newf(coreerr.KindInvalidHashInput, "abi pack failed: %v", err)
	}
	return packed, nil
}
