// Package dto provides data transfer objects for the application layer.
package dto

import (
	"time"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
)

// WalletAddRequest registers a manually supplied address.
type WalletAddRequest struct {
	Chain   string `json:"chain" validate:"required,max=32,chain_format"`
	Address string `json:"address" validate:"required,min=1,max=128"`
}

// WalletConnectRequest asks a wallet provider for an address.
type WalletConnectRequest struct {
	Chain  string `json:"chain" validate:"required,max=32,chain_format"`
	Source string `json:"source" validate:"required,oneof=extension mobile hardware"`
}

// WalletEntryResponse is one registered address.
type WalletEntryResponse struct {
	Chain       string `json:"chain"`
	Address     string `json:"address"`
	Balance     string `json:"balance,omitempty"`
	IsConnected bool   `json:"is_connected"`
	Source      string `json:"wallet_source"`
	LastUpdated int64  `json:"last_updated"`
}

// WalletSnapshotResponse is the full wallet state.
type WalletSnapshotResponse struct {
	Addresses  []WalletEntryResponse `json:"addresses"`
	Primary    string                `json:"primary,omitempty"`
	LastSyncAt int64                 `json:"last_sync_at"`
}

// BalanceResponse is a single refreshed balance.
type BalanceResponse struct {
	Chain     string `json:"chain"`
	Balance   string `json:"balance"`
	FetchedAt int64  `json:"fetched_at"`
}

// NewWalletEntryResponse converts a domain entry.
func NewWalletEntryResponse(entry models.WalletAddress) WalletEntryResponse {
	return WalletEntryResponse{
		Chain:       string(entry.Chain),
		Address:     entry.Address,
		Balance:     entry.Balance,
		IsConnected: entry.IsConnected,
		Source:      string(entry.Source),
		LastUpdated: entry.LastUpdated.Unix(),
	}
}

// NewWalletSnapshotResponse converts a domain wallet snapshot.
func NewWalletSnapshotResponse(wallet *models.MultiChainWallet) *WalletSnapshotResponse {
	response := &WalletSnapshotResponse{
		Addresses:  make([]WalletEntryResponse, 0, len(wallet.Addresses)),
		LastSyncAt: wallet.LastSyncAt.Unix(),
	}
	for _, entry := range wallet.Addresses {
		response.Addresses = append(response.Addresses, NewWalletEntryResponse(entry))
	}
	if wallet.Primary != nil {
		response.Primary = string(*wallet.Primary)
	}
	return response
}

// NewBalanceResponse builds the refresh result payload.
func NewBalanceResponse(chain constants.ChainID, balance string, fetchedAt time.Time) *BalanceResponse {
	return &BalanceResponse{
		Chain:     string(chain),
		Balance:   balance,
		FetchedAt: fetchedAt.Unix(),
	}
}
