package preflight

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/payrox/manifest-core/pkg/hashing"
)

// NetworkAccessor is the external network collaborator (design §6): per
// network, read bytecode at an address and call a contract read-only.
// The validator never writes on-chain.
type NetworkAccessor interface {
	GetCode(ctx context.Context, address common.Address) ([]byte, error)
	Call(ctx context.Context, address common.Address, calldata []byte) ([]byte, error)
}

// Target names one network to validate a manifest against: its chain ID
// (used to recompute the per-network manifestHash and EIP-712 domain),
// the dispatcher address on that chain (zero if not yet deployed there),
// and the accessor used to query it.
type Target struct {
	Name              string
	ChainID           uint64
	DispatcherAddress common.Address
	Accessor          NetworkAccessor
}

// Check names one boolean consistency check in a PreflightValidation.
type Check string

const (
	CheckMerkleRoot       Check = "merkleRootMatches"
	CheckManifestHash     Check = "manifestHashMatches"
	CheckSelectorsSorted  Check = "selectorsSorted"
	CheckSelectorsUnique  Check = "selectorsUnique"
	CheckPreviousHash     Check = "previousHashValid"
	CheckCodehashes       Check = "codehashesMatch"
	CheckGasEstimates     Check = "gasEstimatesValid"
	CheckSignature        Check = "signatureValid"
	CheckDispatcherOnline Check = "onChainHashMatches"
)

// ComputedHash names one keccak256 digest the validator recomputed from
// the persisted manifest, for inclusion in the report.
type ComputedHash string

const (
	ComputedMerkleRoot   ComputedHash = "merkleRoot"
	ComputedManifestHash ComputedHash = "manifestHash"
	ComputedOnChainHash  ComputedHash = "onChainManifestHash"
)

// PreflightValidation is the per-network record produced by Run (§4.7).
type PreflightValidation struct {
	NetworkName    string                        `json:"networkName"`
	ChainID        uint64                        `json:"chainId"`
	Passed         bool                          `json:"passed"`
	Checks         map[Check]bool                `json:"checks"`
	ComputedHashes map[ComputedHash]hashing.Hash `json:"computedHashes"`
	Signer         *common.Address               `json:"signer,omitempty"`
	Errors         []string                      `json:"errors"`
	Warnings       []string                      `json:"warnings"`
}

// Report is the full preflight result: one record per requested network,
// plus the overall conjunction.
type Report struct {
	ManifestPath string                `json:"manifestPath"`
	Passed       bool                  `json:"passed"`
	Networks     []PreflightValidation `json:"networks"`
}
