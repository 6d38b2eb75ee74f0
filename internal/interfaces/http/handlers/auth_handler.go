package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chainvault/walletgate/internal/application/dto"
	appservice "github.com/chainvault/walletgate/internal/application/service"
	"github.com/chainvault/walletgate/internal/domain/models"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/infrastructure/monitoring"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
	"github.com/chainvault/walletgate/pkg/utils"
)

// AuthHandler serves challenge issuance, signature submission, and
// strategy activation.
type AuthHandler struct {
	gate     appservice.ExecutionGate
	protocol *domainservice.AuthorizationProtocol
	metrics  *monitoring.Metrics
	logger   logger.Logger
}

// NewAuthHandler creates an AuthHandler. metrics may be nil.
func NewAuthHandler(gate appservice.ExecutionGate, protocol *domainservice.AuthorizationProtocol, metrics *monitoring.Metrics, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		gate:     gate,
		protocol: protocol,
		metrics:  metrics,
		logger:   log.WithComponent("auth_handler"),
	}
}

// CreateChallenge issues a signing challenge for an explicit chain and
// address.
func (h *AuthHandler) CreateChallenge(c *gin.Context) {
	var req dto.ChallengeCreateRequest
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
	challenge, err := h.protocol.CreateChallenge(c.Request.Context(), req.StrategyID, req.Amount, chain, req.Address)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordChallengeIssued(chain)
	}
	dto.SendSuccess(c, http.StatusCreated, dto.NewChallengeResponse(*challenge, time.Now().UTC()))
}

// GetChallenge reports a challenge and its derived status.
func (h *AuthHandler) GetChallenge(c *gin.Context) {
	id := c.Param("id")
	challenge, ok := h.protocol.Challenge(id)
	if !ok {
		dto.SendError(c, wgerrors.ErrChallengeNotFound(id))
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewChallengeResponse(challenge, time.Now().UTC()))
}

// SubmitSignature verifies a wallet signature over the challenge in
// the path and mints the single-use authorization.
func (h *AuthHandler) SubmitSignature(c *gin.Context) {
	var req dto.SignatureSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, wgerrors.ErrInvalidRequest("request body is not valid JSON").WithCause(err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		dto.SendError(c, err)
		return
	}

	authorization, err := h.protocol.SubmitSignature(c.Request.Context(), c.Param("id"), req.Signature)
	if err != nil {
		h.recordOutcome(err)
		dto.SendError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordChallengeOutcome("consumed")
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewAuthorizationResponse(authorization))
}

func (h *AuthHandler) recordOutcome(err error) {
	if h.metrics == nil {
		return
	}
	outcome := "rejected"
	if wgErr, ok := wgerrors.AsWGError(err); ok {
		switch wgErr.Code() {
		case constants.ErrCodeAuthNotFound:
			outcome = "not_found"
		case constants.ErrCodeAuthExpired:
			outcome = "expired"
		case constants.ErrCodeAuthAlreadyConsumed:
			outcome = "already_consumed"
		case constants.ErrCodeAuthInvalidSignature:
			outcome = "invalid_signature"
		}
	}
	h.metrics.RecordChallengeOutcome(outcome)
}

// Activate runs the full authorization and activation flow.
func (h *AuthHandler) Activate(c *gin.Context) {
	var req dto.ActivationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.SendError(c, wgerrors.ErrInvalidRequest("request body is not valid JSON").WithCause(err))
		return
	}

	response, err := h.gate.AuthorizeAndActivate(c.Request.Context(), &req)
	if err != nil {
		dto.SendError(c, err)
		return
	}
	dto.SendSuccess(c, http.StatusCreated, response)
}

// Session reports the session validated by the SessionAuth middleware.
func (h *AuthHandler) Session(c *gin.Context) {
	value, exists := c.Get(string(constants.ContextKeySession))
	if !exists {
		dto.SendError(c, wgerrors.ErrSessionInvalid("no session in request context"))
		return
	}
	session, ok := value.(*models.AuthSession)
	if !ok {
		dto.SendError(c, wgerrors.ErrInternal("session context entry has unexpected type"))
		return
	}
	dto.SendSuccess(c, http.StatusOK, dto.NewSessionResponse(session))
}
