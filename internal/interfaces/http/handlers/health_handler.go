package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainvault/walletgate/internal/application/dto"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/logger"
)

// HealthHandler answers liveness probes. Probes bypass the response
// envelope so external checkers can parse them without unwrapping.
type HealthHandler struct {
	store  domainservice.SecureStore
	logger logger.Logger
}

// NewHealthHandler creates a HealthHandler probing the given store.
func NewHealthHandler(store domainservice.SecureStore, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: log.WithComponent("health_handler"),
	}
}

// Healthz reports service and store health. A missing probe key is
// healthy; only a backend failure degrades the check.
func (h *HealthHandler) Healthz(c *gin.Context) {
	checks := map[string]string{"store": "ok"}
	status := "ok"
	code := http.StatusOK

	var probe string
	if _, err := h.store.Get(c.Request.Context(), "healthz_probe", &probe); err != nil {
		h.logger.Warn(c.Request.Context(), "Store health probe failed", logger.Error(err))
		checks["store"] = "unavailable"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, dto.HealthResponse{
		Status:    status,
		Version:   constants.ServiceVersion,
		Checks:    checks,
		Timestamp: time.Now().Unix(),
	})
}
