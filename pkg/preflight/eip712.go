package preflight

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/payrox/manifest-core/pkg/config"
	"github.com/payrox/manifest-core/pkg/hashing"
)

var errInvalidSignatureComponent = errors.New("preflight: signature r/s component exceeds 32 bytes")

// EIP-712 type hashes for the fixed domain and message types named in the
// design (§6): `EIP712Domain(string name,string version,uint256 chainId,
// address verifyingContract)` and `Manifest(string version,bytes32
// merkleRoot,bytes32 manifestHash,string timestamp)`.
var (
	domainTypeHash   = hashing.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	manifestTypeHash = hashing.Keccak256([]byte("Manifest(string version,bytes32 merkleRoot,bytes32 manifestHash,string timestamp)"))
)

// domainSeparator hashes the EIP-712 domain struct. Dynamic fields (name,
// version) are encoded as the hash of their content, per the EIP-712
// struct-encoding rule, never as raw ABI-packed strings.
func domainSeparator(domain config.SignatureDomain) hashing.Hash {
	chainWord := common.LeftPadBytes(new(big.Int).SetUint64(uint64(domain.ChainID)).Bytes(), 32)
	verifyingContract := common.HexToAddress(domain.VerifyingContract)
	contractWord := common.LeftPadBytes(verifyingContract.Bytes(), 32)

	nameHash := hashing.Keccak256([]byte(domain.Name))
	versionHash := hashing.Keccak256([]byte(domain.Version))

	data := hashing.Concat(domainTypeHash[:], nameHash[:], versionHash[:], chainWord, contractWord)
	return hashing.Keccak256(data)
}

// manifestStructHash hashes the Manifest message struct for the typed-data
// signature (design §6).
func manifestStructHash(version string, merkleRoot, manifestHash hashing.Hash, timestamp string) hashing.Hash {
	versionHash := hashing.Keccak256([]byte(version))
	timestampHash := hashing.Keccak256([]byte(timestamp))
	data := hashing.Concat(manifestTypeHash[:], versionHash[:], merkleRoot[:], manifestHash[:], timestampHash[:])
	return hashing.Keccak256(data)
}

// typedDataDigest computes the final EIP-712 digest:
// keccak256(0x19 0x01 || domainSeparator || structHash).
func typedDataDigest(domain config.SignatureDomain, version string, merkleRoot, manifestHash hashing.Hash, timestamp string) hashing.Hash {
	sep := domainSeparator(domain)
	msg := manifestStructHash(version, merkleRoot, manifestHash, timestamp)
	return hashing.Keccak256([]byte{0x19, 0x01}, sep[:], msg[:])
}

// recoverSigner recovers the signer address from a 65-byte (r||s||v)
// signature over digest. v must already be normalized to a 0/1 recovery
// id, matching go-ethereum's crypto.Ecrecover convention rather than the
// raw 27/28 Ethereum JSON-RPC convention.
func recoverSigner(digest hashing.Hash, r, s []byte, v uint8) (common.Address, error) {
	if len(r) > 32 || len(s) > 32 {
		return common.Address{}, errInvalidSignatureComponent
	}

	sig := make([]byte, 65)
	copy(sig[32-len(r):32], r)
	copy(sig[64-len(s):64], s)
	sig[64] = v

	pubKey, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pubKey), nil
}
