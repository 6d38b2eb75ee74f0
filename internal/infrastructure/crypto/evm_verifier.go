package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
)

// EVMVerifier checks personal_sign signatures from EVM wallets. The
// wallet signs keccak256("\x19Ethereum Signed Message:\n" + len + msg)
// and returns 65 bytes of R || S || V hex-encoded. Verification
// recovers the signing public key and compares its address against the
// claimed one, so no public key ever needs to be stored.
type EVMVerifier struct{}

// NewEVMVerifier creates a verifier for personal_sign signatures.
func NewEVMVerifier() *EVMVerifier {
	return &EVMVerifier{}
}

// Verify recovers the signer of the personal_sign signature and checks
// it matches address. The chain parameter only labels the error; all
// EVM chains share the same signing scheme.
func (v *EVMVerifier) Verify(chain constants.ChainID, address, message, signature string) error {
	sig, err := decodeHexSignature(signature)
	if err != nil {
		return wgerrors.ErrInvalidSignature(chain).WithCause(err)
	}

	// Wallets emit R || S || V; RecoverCompact wants V || R || S with
	// V in the 27/28 range.
	compact := make([]byte, 65)
	compact[0] = normalizeRecoveryID(sig[64])
	copy(compact[1:], sig[:64])

	digest := PersonalSignDigest(message)

	pubKey, _, err := secp256k1ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return wgerrors.ErrInvalidSignature(chain).WithCause(err)
	}

	recovered := EthereumAddressFromPubKey(pubKey.SerializeUncompressed())
	if !strings.EqualFold(recovered, address) {
		return wgerrors.ErrInvalidSignature(chain)
	}
	return nil
}

// decodeHexSignature parses a 65-byte hex signature, with or without
// the 0x prefix.
func decodeHexSignature(signature string) ([]byte, error) {
	trimmed := strings.TrimPrefix(signature, "0x")
	sig, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("signature is not valid hex: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("expected 65-byte signature, got %d", len(sig))
	}
	return sig, nil
}

// normalizeRecoveryID maps the V byte into the legacy 27/28 range that
// compact recovery expects. Wallets variously emit 0/1 or 27/28.
func normalizeRecoveryID(v byte) byte {
	if v < 27 {
		return v + 27
	}
	return v
}

// PersonalSignDigest hashes message the way personal_sign does.
// Signers and verifiers must agree on this exact construction.
func PersonalSignDigest(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(prefixed))
	return h.Sum(nil)
}

// EthereumAddressFromPubKey derives the 0x-prefixed address from a
// 65-byte uncompressed secp256k1 public key.
func EthereumAddressFromPubKey(uncompressed []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed[1:])
	digest := h.Sum(nil)
	return "0x" + hex.EncodeToString(digest[12:])
}
