package crypto

import (
	"crypto/ed25519"

	"github.com/gagliardetto/solana-go"

	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
)

// SolanaVerifier checks ed25519 signatures from Solana wallets. The
// wallet signs the raw challenge bytes; the address is the base58
// public key, so verification needs no recovery step.
type SolanaVerifier struct{}

// NewSolanaVerifier creates a verifier for Solana message signatures.
func NewSolanaVerifier() *SolanaVerifier {
	return &SolanaVerifier{}
}

// Verify checks that signature (base58) over message was produced by
// the key behind address.
func (v *SolanaVerifier) Verify(chain constants.ChainID, address, message, signature string) error {
	pubKey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return wgerrors.ErrInvalidSignature(chain).WithCause(err)
	}

	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return wgerrors.ErrInvalidSignature(chain).WithCause(err)
	}

	if !ed25519.Verify(ed25519.PublicKey(pubKey.Bytes()), []byte(message), sig[:]) {
		return wgerrors.ErrInvalidSignature(chain)
	}
	return nil
}
