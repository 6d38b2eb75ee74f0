package crypto

import (
	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
)

// ChainVerifier routes signature verification to the scheme used by
// the chain's family. Chains whose wallets cannot sign arbitrary
// messages (Bitcoin wallet APIs and ICP identities in this product)
// are rejected outright.
type ChainVerifier struct {
	registry *chains.Registry
	evm      *EVMVerifier
	solana   *SolanaVerifier
}

// NewChainVerifier wires the per-family verifiers behind one dispatch
// point.
func NewChainVerifier(registry *chains.Registry) *ChainVerifier {
	return &ChainVerifier{
		registry: registry,
		evm:      NewEVMVerifier(),
		solana:   NewSolanaVerifier(),
	}
}

// SupportsSigning reports whether challenges can be signed by wallets
// on the given chain.
func (v *ChainVerifier) SupportsSigning(chain constants.ChainID) bool {
	switch v.registry.Family(chain) {
	case constants.FamilyEVM, constants.FamilySolana:
		return true
	}
	return false
}

// Verify checks signature over message against the claimed address,
// using the signing scheme of the chain's family.
func (v *ChainVerifier) Verify(chain constants.ChainID, address, message, signature string) error {
	switch v.registry.Family(chain) {
	case constants.FamilyEVM:
		return v.evm.Verify(chain, address, message, signature)
	case constants.FamilySolana:
		return v.solana.Verify(chain, address, message, signature)
	default:
		return wgerrors.ErrUnsupportedChain(chain)
	}
}
