// Package models defines the domain models for the WalletGate service.
// This file contains the multi-chain wallet aggregate and its invariants.
package models

import (
	"time"

	"github.com/chainvault/walletgate/pkg/constants"
)

// WalletAddress is one registered address on one chain. A wallet snapshot holds
// at most one WalletAddress per chain; the chain is the dedup key.
type WalletAddress struct {
	// Chain is the network this address belongs to.
	Chain constants.ChainID `json:"chain"`

	// Address is the chain-formatted address string. It must pass the chain's
	// format validator before entering the registry.
	Address string `json:"address"`

	// Balance is the last fetched balance as a decimal string. Empty means the
	// balance has never been fetched.
	Balance string `json:"balance,omitempty"`

	// IsConnected reports whether a live wallet provider backs this address.
	// Manually added addresses start disconnected.
	IsConnected bool `json:"is_connected"`

	// Source records how the address entered the registry.
	Source constants.WalletSource `json:"wallet_source"`

	// LastUpdated is the time of the last balance fetch or mutation.
	LastUpdated time.Time `json:"last_updated"`
}

// MultiChainWallet is the full wallet snapshot persisted after every mutation.
//
// Invariant: if Primary is set, it names a chain whose entry exists in Addresses
// with IsConnected == true. EnsurePrimary restores the invariant after any
// mutation that could break it.
type MultiChainWallet struct {
	// Addresses holds at most one entry per chain.
	Addresses []WalletAddress `json:"addresses"`

	// Primary is the chain of the primary address, nil when no connected
	// address exists.
	Primary *constants.ChainID `json:"primary,omitempty"`

	// LastSyncAt is the time of the last persisted mutation.
	LastSyncAt time.Time `json:"last_sync_at"`
}

// NewMultiChainWallet creates an empty wallet snapshot.
func NewMultiChainWallet() *MultiChainWallet {
	return &MultiChainWallet{
		Addresses:  make([]WalletAddress, 0),
		LastSyncAt: time.Now().UTC(),
	}
}

// Get returns the entry for the chain and whether it exists.
func (w *MultiChainWallet) Get(chain constants.ChainID) (WalletAddress, bool) {
	for _, a := range w.Addresses {
		if a.Chain == chain {
			return a, true
		}
	}
	return WalletAddress{}, false
}

// Has reports whether the chain has an entry.
func (w *MultiChainWallet) Has(chain constants.ChainID) bool {
	_, ok := w.Get(chain)
	return ok
}

// Upsert inserts or replaces the entry for entry.Chain and returns true when the
// entry was newly added. The first connected entry becomes primary when no
// primary is set.
func (w *MultiChainWallet) Upsert(entry WalletAddress) bool {
	for i, a := range w.Addresses {
		if a.Chain == entry.Chain {
			w.Addresses[i] = entry
			w.EnsurePrimary()
			return false
		}
	}
	w.Addresses = append(w.Addresses, entry)
	if w.Primary == nil && entry.IsConnected {
		chain := entry.Chain
		w.Primary = &chain
	}
	w.EnsurePrimary()
	return true
}

// Remove deletes the entry for the chain and returns whether it existed.
func (w *MultiChainWallet) Remove(chain constants.ChainID) bool {
	for i, a := range w.Addresses {
		if a.Chain == chain {
			w.Addresses = append(w.Addresses[:i], w.Addresses[i+1:]...)
			w.EnsurePrimary()
			return true
		}
	}
	return false
}

// SetConnected flips the connection flag for the chain and returns whether the
// entry existed.
func (w *MultiChainWallet) SetConnected(chain constants.ChainID, connected bool) bool {
	for i, a := range w.Addresses {
		if a.Chain == chain {
			w.Addresses[i].IsConnected = connected
			w.Addresses[i].LastUpdated = time.Now().UTC()
			w.EnsurePrimary()
			return true
		}
	}
	return false
}

// SetBalance records a fetched balance for the chain.
func (w *MultiChainWallet) SetBalance(chain constants.ChainID, balance string) bool {
	for i, a := range w.Addresses {
		if a.Chain == chain {
			w.Addresses[i].Balance = balance
			w.Addresses[i].LastUpdated = time.Now().UTC()
			return true
		}
	}
	return false
}

// EnsurePrimary restores the primary invariant: a set primary must name a
// present, connected entry. When the current primary is invalid, the first
// connected entry takes over; with none left, primary clears.
func (w *MultiChainWallet) EnsurePrimary() {
	if w.Primary != nil {
		if a, ok := w.Get(*w.Primary); ok && a.IsConnected {
			return
		}
		w.Primary = nil
	}
	for _, a := range w.Addresses {
		if a.IsConnected {
			chain := a.Chain
			w.Primary = &chain
			return
		}
	}
}

// PrimaryAddress returns the primary entry when the invariant holds.
func (w *MultiChainWallet) PrimaryAddress() (WalletAddress, bool) {
	if w.Primary == nil {
		return WalletAddress{}, false
	}
	return w.Get(*w.Primary)
}

// ConnectedChains lists the chains with connected entries.
func (w *MultiChainWallet) ConnectedChains() []constants.ChainID {
	chains := make([]constants.ChainID, 0, len(w.Addresses))
	for _, a := range w.Addresses {
		if a.IsConnected {
			chains = append(chains, a.Chain)
		}
	}
	return chains
}

// Clone returns a deep copy so listeners and callers can never mutate the
// registry's snapshot through a shared slice.
func (w *MultiChainWallet) Clone() *MultiChainWallet {
	cp := &MultiChainWallet{
		Addresses:  make([]WalletAddress, len(w.Addresses)),
		LastSyncAt: w.LastSyncAt,
	}
	copy(cp.Addresses, w.Addresses)
	if w.Primary != nil {
		chain := *w.Primary
		cp.Primary = &chain
	}
	return cp
}

// WalletEvent is the typed notification emitted after every persisted mutation.
type WalletEvent struct {
	// Type classifies the mutation.
	Type constants.WalletEventType `json:"type"`

	// Chain is the chain the mutation touched, empty for wallet-wide events.
	Chain constants.ChainID `json:"chain,omitempty"`

	// Wallet is a deep copy of the snapshot after the mutation.
	Wallet *MultiChainWallet `json:"wallet"`

	// At is the mutation time.
	At time.Time `json:"at"`
}
