// Package chains holds the static registry of supported blockchain networks:
// per-chain address validation, symbols, and chain-family lookup. Everything in
// this package is a pure function of its inputs; no network calls.
package chains

import (
	"regexp"
	"strings"

	btcbase58 "github.com/btcsuite/btcutil/base58"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/mr-tron/base58"

	"github.com/chainvault/walletgate/pkg/constants"
)

// ChainInfo describes one supported chain.
type ChainInfo struct {
	// ID is the canonical chain identifier.
	ID constants.ChainID

	// Symbol is the native gas token ticker.
	Symbol string

	// DisplayName is the human-readable network name.
	DisplayName string

	// Family groups chains sharing an address format and signing scheme.
	Family constants.ChainFamily

	validate func(address string) bool
}

// Registry is the static lookup table of supported chains.
type Registry struct {
	byID  map[constants.ChainID]ChainInfo
	order []constants.ChainID
}

var (
	evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

	// ICP principal text: five dash-separated base32 groups, e.g.
	// "ryjl3-tyaaa-aaaaa-aaaba-cai".
	icpPrincipalPattern = regexp.MustCompile(`^[a-z2-7]{5}(-[a-z2-7]{5}){3}-[a-z2-7]{3}$`)
)

// NewRegistry builds the registry with the nine supported chains.
func NewRegistry() *Registry {
	r := &Registry{byID: make(map[constants.ChainID]ChainInfo)}

	r.add(ChainInfo{ID: constants.ChainBitcoin, Symbol: "BTC", DisplayName: "Bitcoin", Family: constants.FamilyBitcoin, validate: validateBitcoinAddress})
	r.add(ChainInfo{ID: constants.ChainEthereum, Symbol: "ETH", DisplayName: "Ethereum", Family: constants.FamilyEVM, validate: validateEVMAddress})
	r.add(ChainInfo{ID: constants.ChainArbitrum, Symbol: "ETH", DisplayName: "Arbitrum One", Family: constants.FamilyEVM, validate: validateEVMAddress})
	r.add(ChainInfo{ID: constants.ChainOptimism, Symbol: "ETH", DisplayName: "Optimism", Family: constants.FamilyEVM, validate: validateEVMAddress})
	r.add(ChainInfo{ID: constants.ChainPolygon, Symbol: "MATIC", DisplayName: "Polygon", Family: constants.FamilyEVM, validate: validateEVMAddress})
	r.add(ChainInfo{ID: constants.ChainBase, Symbol: "ETH", DisplayName: "Base", Family: constants.FamilyEVM, validate: validateEVMAddress})
	r.add(ChainInfo{ID: constants.ChainAvalanche, Symbol: "AVAX", DisplayName: "Avalanche C-Chain", Family: constants.FamilyEVM, validate: validateEVMAddress})
	r.add(ChainInfo{ID: constants.ChainSolana, Symbol: "SOL", DisplayName: "Solana", Family: constants.FamilySolana, validate: validateSolanaAddress})
	r.add(ChainInfo{ID: constants.ChainICP, Symbol: "ICP", DisplayName: "Internet Computer", Family: constants.FamilyICP, validate: validateICPPrincipal})

	return r
}

func (r *Registry) add(info ChainInfo) {
	r.byID[info.ID] = info
	r.order = append(r.order, info.ID)
}

var chainIDByLower = func() map[string]constants.ChainID {
	m := make(map[string]constants.ChainID)
	for _, id := range NewRegistry().Supported() {
		m[strings.ToLower(string(id))] = id
	}
	return m
}()

// ParseChainID resolves a caller-supplied chain string onto its canonical
// identifier. Matching is case-insensitive, so "solana", "Solana", and
// "SOLANA" all resolve to ChainSolana; unknown values report false.
func ParseChainID(value string) (constants.ChainID, bool) {
	id, ok := chainIDByLower[strings.ToLower(value)]
	return id, ok
}

// Lookup returns the chain info and whether the chain is supported.
func (r *Registry) Lookup(chain constants.ChainID) (ChainInfo, bool) {
	info, ok := r.byID[chain]
	return info, ok
}

// Supported lists the supported chains in registration order.
func (r *Registry) Supported() []constants.ChainID {
	out := make([]constants.ChainID, len(r.order))
	copy(out, r.order)
	return out
}

// Validate reports whether the address satisfies the chain's exact format rule.
// Unknown chains validate nothing.
func (r *Registry) Validate(chain constants.ChainID, address string) bool {
	info, ok := r.byID[chain]
	if !ok {
		return false
	}
	return info.validate(address)
}

// IsEVM reports whether the chain belongs to the EVM family.
func (r *Registry) IsEVM(chain constants.ChainID) bool {
	info, ok := r.byID[chain]
	return ok && info.Family == constants.FamilyEVM
}

// Family returns the chain's family, empty for unknown chains.
func (r *Registry) Family(chain constants.ChainID) constants.ChainFamily {
	info, ok := r.byID[chain]
	if !ok {
		return ""
	}
	return info.Family
}

// bech32DataCharset is the data character set shared by bech32 and bech32m.
const bech32DataCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// validateBitcoinAddress accepts P2PKH ("1..."), P2SH ("3...") with a valid
// base58check checksum, bech32 segwit addresses with the "bc" prefix, and
// bech32m taproot addresses ("bc1p...").
func validateBitcoinAddress(address string) bool {
	if len(address) < 14 || len(address) > 90 {
		return false
	}

	switch address[0] {
	case '1', '3':
		payload, version, err := btcbase58.CheckDecode(address)
		if err != nil {
			return false
		}
		// P2PKH is version 0x00, P2SH is version 0x05; both carry a hash160.
		return (version == 0x00 || version == 0x05) && len(payload) == 20
	case 'b', 'B':
		// Taproot (P2TR) addresses carry a bech32m checksum, which the
		// bech32 decoder rejects; they are fixed at 62 characters of the
		// shared data charset.
		if strings.HasPrefix(address, "bc1p") {
			if len(address) != 62 {
				return false
			}
			for _, c := range address[4:] {
				if !strings.ContainsRune(bech32DataCharset, c) {
					return false
				}
			}
			return true
		}
		hrp, data, err := bech32.Decode(address)
		if err != nil {
			return false
		}
		return hrp == "bc" && len(data) > 0
	default:
		return false
	}
}

// validateEVMAddress accepts 0x followed by exactly 40 hex characters. Checksum
// casing is not enforced; chains accept all-lower and all-upper forms.
func validateEVMAddress(address string) bool {
	return evmAddressPattern.MatchString(address)
}

// validateSolanaAddress accepts base58 strings of 32 to 44 characters decoding
// to a 32-byte ed25519 public key.
func validateSolanaAddress(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	decoded, err := base58.Decode(address)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}

// validateICPPrincipal accepts the textual principal format of the Internet
// Computer.
func validateICPPrincipal(address string) bool {
	return icpPrincipalPattern.MatchString(address)
}
