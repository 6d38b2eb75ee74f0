// Package providers holds the wallet provider and balance oracle
// implementations behind the domain collaborator interfaces. The
// simulated variants serve development and local deployments where no
// real wallet bridge or chain RPC endpoint is reachable; they hold
// real keys so the signatures they produce verify end to end.
package providers

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/mr-tron/base58"

	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/infrastructure/crypto"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

var _ service.WalletConnector = (*SimulatedConnector)(nil)

// signerKeys is the persisted key material of one simulated provider.
type signerKeys struct {
	// EVM is the hex-encoded secp256k1 private scalar.
	EVM string `json:"evm"`
	// Solana is the base64-encoded ed25519 seed.
	Solana string `json:"solana"`
}

// SimulatedConnector approves every connection and signing request
// with keys held in the secure store: one secp256k1 key shared by all
// EVM chains and one ed25519 key for Solana, mirroring how real
// wallets reuse one account across an address family. Keys are created
// on first use and survive restarts, so previously connected addresses
// keep signing. Chains outside those families are refused as
// unavailable.
type SimulatedConnector struct {
	source constants.WalletSource
	chains *chains.Registry
	logger logger.Logger

	evmKey     *secp256k1.PrivateKey
	evmAddress string

	solanaPriv    ed25519.PrivateKey
	solanaAddress string
}

// NewSimulatedConnector loads the source's keys from the store,
// generating and persisting them on first use.
func NewSimulatedConnector(ctx context.Context, source constants.WalletSource, chainRegistry *chains.Registry, store service.SecureStore, log logger.Logger) (*SimulatedConnector, error) {
	keys, err := loadOrCreateSignerKeys(ctx, store, source)
	if err != nil {
		return nil, err
	}

	evmScalar, err := hex.DecodeString(keys.EVM)
	if err != nil || len(evmScalar) != 32 {
		return nil, wgerrors.ErrInternal("persisted EVM signer key is malformed")
	}
	evmKey := secp256k1.PrivKeyFromBytes(evmScalar)

	seed, err := base64.StdEncoding.DecodeString(keys.Solana)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, wgerrors.ErrInternal("persisted Solana signer key is malformed")
	}
	solanaPriv := ed25519.NewKeyFromSeed(seed)

	return &SimulatedConnector{
		source:        source,
		chains:        chainRegistry,
		logger:        log.WithComponent("simulated_connector"),
		evmKey:        evmKey,
		evmAddress:    crypto.EthereumAddressFromPubKey(evmKey.PubKey().SerializeUncompressed()),
		solanaPriv:    solanaPriv,
		solanaAddress: base58.Encode(solanaPriv.Public().(ed25519.PublicKey)),
	}, nil
}

func loadOrCreateSignerKeys(ctx context.Context, store service.SecureStore, source constants.WalletSource) (*signerKeys, error) {
	storeKey := "simulated_signer_" + string(source)

	keys := &signerKeys{}
	found, err := store.Get(ctx, storeKey, keys)
	if err != nil {
		return nil, err
	}
	if found {
		return keys, nil
	}

	evmKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, wgerrors.ErrInternal("generating simulated EVM key").WithCause(err)
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, wgerrors.ErrInternal("generating simulated Solana key").WithCause(err)
	}

	keys = &signerKeys{
		EVM:    hex.EncodeToString(evmKey.Serialize()),
		Solana: base64.StdEncoding.EncodeToString(seed),
	}
	if err := store.Set(ctx, storeKey, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Connect reports the simulated account for the chain's family.
func (c *SimulatedConnector) Connect(ctx context.Context, chain constants.ChainID) (models.WalletAddress, error) {
	address, err := c.addressFor(chain)
	if err != nil {
		return models.WalletAddress{}, err
	}

	c.logger.Info(ctx, "Simulated wallet approved connection",
		logger.String("chain", string(chain)),
		logger.String("address", address),
	)
	return models.WalletAddress{Address: address}, nil
}

// SignMessage signs message with the family's key. EVM chains get a
// personal_sign R || S || V hex signature; Solana gets a base58
// ed25519 signature over the raw bytes.
func (c *SimulatedConnector) SignMessage(ctx context.Context, chain constants.ChainID, address, message string) (string, error) {
	var signature string
	switch c.chains.Family(chain) {
	case constants.FamilyEVM:
		compact := secp256k1ecdsa.SignCompact(c.evmKey, crypto.PersonalSignDigest(message), false)
		// SignCompact emits V || R || S; wallets emit R || S || V.
		wire := make([]byte, 65)
		copy(wire[:64], compact[1:])
		wire[64] = compact[0]
		signature = "0x" + hex.EncodeToString(wire)
	case constants.FamilySolana:
		signature = base58.Encode(ed25519.Sign(c.solanaPriv, []byte(message)))
	default:
		return "", wgerrors.ErrSourceUnavailable(chain, c.source)
	}

	c.logger.Info(ctx, "Simulated wallet signed challenge",
		logger.String("chain", string(chain)),
		logger.String("address", address),
	)
	return signature, nil
}

func (c *SimulatedConnector) addressFor(chain constants.ChainID) (string, error) {
	switch c.chains.Family(chain) {
	case constants.FamilyEVM:
		return c.evmAddress, nil
	case constants.FamilySolana:
		return c.solanaAddress, nil
	default:
		return "", wgerrors.ErrSourceUnavailable(chain, c.source)
	}
}
