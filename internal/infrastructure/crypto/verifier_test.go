package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
)

// evmSign produces a personal_sign style signature (R || S || V hex)
// for message, plus the signer's address.
func evmSign(t *testing.T, message string) (address, signature string) {
	t.Helper()

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	compact := secp256k1ecdsa.SignCompact(priv, PersonalSignDigest(message), false)

	// SignCompact returns V || R || S; wallets emit R || S || V.
	wire := make([]byte, 65)
	copy(wire[:64], compact[1:])
	wire[64] = compact[0]

	address = EthereumAddressFromPubKey(priv.PubKey().SerializeUncompressed())
	return address, "0x" + hex.EncodeToString(wire)
}

func solanaSign(t *testing.T, message string) (address, signature string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sig := ed25519.Sign(priv, []byte(message))
	return base58.Encode(pub), base58.Encode(sig)
}

func TestEVMVerifier_ValidSignature(t *testing.T) {
	message := "WalletGate Strategy Execution Authorization\nStrategy ID: strat-1"
	address, signature := evmSign(t, message)

	verifier := NewEVMVerifier()
	assert.NoError(t, verifier.Verify(constants.ChainEthereum, address, message, signature))
}

func TestEVMVerifier_AddressCaseInsensitive(t *testing.T) {
	message := "case test"
	address, signature := evmSign(t, message)

	verifier := NewEVMVerifier()
	// Wallets report EIP-55 checksummed addresses; recovery yields
	// lowercase. Comparison must ignore case.
	upper := "0x" + toUpperHex(address[2:])
	assert.NoError(t, verifier.Verify(constants.ChainEthereum, upper, message, signature))
}

func toUpperHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func TestEVMVerifier_ZeroBasedRecoveryID(t *testing.T) {
	message := "v byte test"
	address, signature := evmSign(t, message)

	// Rewrite the trailing V byte from 27/28 to 0/1.
	raw, err := hex.DecodeString(signature[2:])
	require.NoError(t, err)
	raw[64] -= 27
	rewritten := "0x" + hex.EncodeToString(raw)

	verifier := NewEVMVerifier()
	assert.NoError(t, verifier.Verify(constants.ChainEthereum, address, message, rewritten))
}

func TestEVMVerifier_Rejections(t *testing.T) {
	message := "signed message"
	address, signature := evmSign(t, message)
	otherAddress, _ := evmSign(t, message)

	verifier := NewEVMVerifier()

	tests := []struct {
		name      string
		address   string
		message   string
		signature string
	}{
		{name: "different message", address: address, message: "tampered message", signature: signature},
		{name: "different address", address: otherAddress, message: message, signature: signature},
		{name: "not hex", address: address, message: message, signature: "0xzzzz"},
		{name: "too short", address: address, message: message, signature: "0xabcdef"},
		{name: "empty", address: address, message: message, signature: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.Verify(constants.ChainEthereum, tt.address, tt.message, tt.signature)
			assert.True(t, wgerrors.IsCode(err, constants.ErrCodeAuthInvalidSignature),
				"expected invalid signature error, got %v", err)
		})
	}
}

func TestSolanaVerifier_ValidSignature(t *testing.T) {
	message := "WalletGate Strategy Execution Authorization\nStrategy ID: strat-2"
	address, signature := solanaSign(t, message)

	verifier := NewSolanaVerifier()
	assert.NoError(t, verifier.Verify(constants.ChainSolana, address, message, signature))
}

func TestSolanaVerifier_Rejections(t *testing.T) {
	message := "signed message"
	address, signature := solanaSign(t, message)
	otherAddress, _ := solanaSign(t, message)

	verifier := NewSolanaVerifier()

	tests := []struct {
		name      string
		address   string
		message   string
		signature string
	}{
		{name: "different message", address: address, message: "tampered", signature: signature},
		{name: "different address", address: otherAddress, message: message, signature: signature},
		{name: "not base58", address: address, message: message, signature: "0OIl"},
		{name: "empty", address: address, message: message, signature: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifier.Verify(constants.ChainSolana, tt.address, tt.message, tt.signature)
			assert.True(t, wgerrors.IsCode(err, constants.ErrCodeAuthInvalidSignature),
				"expected invalid signature error, got %v", err)
		})
	}
}

func TestChainVerifier_DispatchesByFamily(t *testing.T) {
	registry := chains.NewRegistry()
	verifier := NewChainVerifier(registry)

	message := "dispatch test"

	evmAddress, evmSig := evmSign(t, message)
	assert.NoError(t, verifier.Verify(constants.ChainPolygon, evmAddress, message, evmSig))
	assert.NoError(t, verifier.Verify(constants.ChainArbitrum, evmAddress, message, evmSig))

	solAddress, solSig := solanaSign(t, message)
	assert.NoError(t, verifier.Verify(constants.ChainSolana, solAddress, message, solSig))
}

func TestChainVerifier_UnsupportedChains(t *testing.T) {
	registry := chains.NewRegistry()
	verifier := NewChainVerifier(registry)

	for _, chain := range []constants.ChainID{constants.ChainBitcoin, constants.ChainICP, "Dogecoin"} {
		err := verifier.Verify(chain, "addr", "msg", "sig")
		assert.True(t, wgerrors.IsCode(err, constants.ErrCodeAuthUnsupportedChain),
			"chain %s should be rejected", chain)
		assert.False(t, verifier.SupportsSigning(chain))
	}

	assert.True(t, verifier.SupportsSigning(constants.ChainEthereum))
	assert.True(t, verifier.SupportsSigning(constants.ChainSolana))
}
