package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainvault/walletgate/internal/application/dto"
	"github.com/chainvault/walletgate/internal/domain/models"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
	"github.com/chainvault/walletgate/pkg/utils"
)

// PermissionsHandler serves the user execution policy.
type PermissionsHandler struct {
	guard  *domainservice.PermissionGuard
	logger logger.Logger
}

// NewPermissionsHandler creates a PermissionsHandler.
func NewPermissionsHandler(guard *domainservice.PermissionGuard, log logger.Logger) *PermissionsHandler {
	return &PermissionsHandler{
		guard:  guard,
		logger: log.WithComponent("permissions_handler"),
	}
}

// Get returns the stored policy plus today's spend.
func (h *PermissionsHandler) Get(c *gin.Context) {
	permissions, err := h.guard.Permissions(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	spent, err := h.guard.SpentToday(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewPermissionsResponse(permissions, spent))
}

// Put replaces the stored policy.
func (h *PermissionsHandler) Put(c *gin.Context) {
	var req dto.PermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, wgerrors.ErrInvalidRequest("request body is not valid JSON").WithCause(err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		dto.SendError(c, err)
		return
	}

	permissions := &models.UserPermissions{
		MaxDailyExecutionAmount: req.MaxDailyExecutionAmount,
	}
	for _, value := range req.AllowedChains {
		chain, ok := parseChain(c, value)
		if !ok {
			return
		}
		permissions.AllowedChains = append(permissions.AllowedChains, chain)
	}

	if err := h.guard.SetPermissions(c.Request.Context(), permissions); err != nil {
		dto.SendError(c, err)
		return
	}

	spent, err := h.guard.SpentToday(c.Request.Context())
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewPermissionsResponse(permissions, spent))
}
