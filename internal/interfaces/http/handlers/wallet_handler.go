// Package handlers holds the gin handlers for the WalletGate REST API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainvault/walletgate/internal/application/dto"
	"github.com/chainvault/walletgate/internal/domain/chains"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/infrastructure/monitoring"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
	"github.com/chainvault/walletgate/pkg/utils"
)

// WalletHandler serves the wallet registry.
type WalletHandler struct {
	registry *domainservice.WalletRegistry
	metrics  *monitoring.Metrics
	logger   logger.Logger
}

// NewWalletHandler creates a WalletHandler. metrics may be nil.
func NewWalletHandler(registry *domainservice.WalletRegistry, metrics *monitoring.Metrics, log logger.Logger) *WalletHandler {
	return &WalletHandler{
		registry: registry,
		metrics:  metrics,
		logger:   log.WithComponent("wallet_handler"),
	}
}

// parseChain resolves a request chain string case-insensitively,
// replying with an unknown-chain error when it does not resolve.
func parseChain(c *gin.Context, value string) (constants.ChainID, bool) {
	chain, ok := chains.ParseChainID(value)
	if !ok {
		dto.SendError(c, wgerrors.ErrUnknownChain(constants.ChainID(value)))
	}
	return chain, ok
}

func (h *WalletHandler) recordOperation(operation string, chain constants.ChainID) {
	if h.metrics != nil {
		h.metrics.RecordWalletOperation(operation, chain)
	}
}

// List returns the current wallet snapshot.
func (h *WalletHandler) List(c *gin.Context) {
	snapshot, err := h.registry.Wallet(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewWalletSnapshotResponse(snapshot))
}

// Add registers a manually entered address.
func (h *WalletHandler) Add(c *gin.Context) {
	var req dto.WalletAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, wgerrors.ErrInvalidRequest("request body is not valid JSON").WithCause(err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		dto.SendError(c, err)
		return
	}

	chain, ok := parseChain(c, req.Chain)
	if !ok {
		return
	}
	if err := h.registry.AddManual(c.Request.Context(), chain, req.Address); err != nil {
		dto.SendError(c, err)
		return
	}
	h.recordOperation("add_manual", chain)

	snapshot, err := h.registry.Wallet(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	entry, _ := snapshot.Get(chain)
	dto.SendSuccess(c, http.StatusCreated, dto.NewWalletEntryResponse(entry))
}

// Connect asks a wallet provider for an address on the given chain and
// registers it. The call blocks until the provider answers.
func (h *WalletHandler) Connect(c *gin.Context) {
	var req dto.WalletConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, wgerrors.ErrInvalidRequest("request body is not valid JSON").WithCause(err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		dto.SendError(c, err)
		return
	}

	chain, ok := parseChain(c, req.Chain)
	if !ok {
		return
	}
	entry, err := h.registry.ConnectVia(c.Request.Context(), chain, constants.WalletSource(req.Source))
	if err != nil {
		dto.SendError(c, err)
		return
	}
	h.recordOperation("connect", chain)
	dto.SendSuccess(c, http.StatusOK, dto.NewWalletEntryResponse(entry))
}

// Disconnect flips the chain's entry to disconnected, keeping the
// address registered.
func (h *WalletHandler) Disconnect(c *gin.Context) {
	chain, ok := parseChain(c, c.Param("chain"))
	if !ok {
		return
	}
	if err := h.registry.Disconnect(c.Request.Context(), chain); err != nil {
		dto.SendError(c, err)
		return
	}
	h.recordOperation("disconnect", chain)

	snapshot, err := h.registry.Wallet(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewWalletSnapshotResponse(snapshot))
}

// Remove deletes the chain's entry.
func (h *WalletHandler) Remove(c *gin.Context) {
	chain, ok := parseChain(c, c.Param("chain"))
	if !ok {
		return
	}
	if err := h.registry.Remove(c.Request.Context(), chain); err != nil {
		dto.SendError(c, err)
		return
	}
	h.recordOperation("remove", chain)

	snapshot, err := h.registry.Wallet(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewWalletSnapshotResponse(snapshot))
}

// Refresh fetches a fresh balance for one chain, or serves the cached
// one while it is still live.
func (h *WalletHandler) Refresh(c *gin.Context) {
	chain, ok := parseChain(c, c.Param("chain"))
	if !ok {
		return
	}
	started := time.Now()

	balance, err := h.registry.RefreshBalance(c.Request.Context(), chain)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordBalanceRefresh(chain, "failure", time.Since(started))
		}
		dto.SendError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordBalanceRefresh(chain, "success", time.Since(started))
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewBalanceResponse(chain, balance, time.Now().UTC()))
}

// RefreshAll refreshes every registered chain in batches and returns
// the resulting snapshot. Chains that fail keep their previous
// balance.
func (h *WalletHandler) RefreshAll(c *gin.Context) {
	if err := h.registry.RefreshAll(c.Request.Context()); err != nil {
		dto.SendError(c, err)
		return
	}

	snapshot, err := h.registry.Wallet(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewWalletSnapshotResponse(snapshot))
}
