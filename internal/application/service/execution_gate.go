// Package service provides application-level services that orchestrate
// the domain services behind the HTTP and CLI surfaces.
package service

import (
	"context"
	"time"

	"github.com/chainvault/walletgate/internal/application/dto"
	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/internal/domain/models"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/infrastructure/monitoring"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
	"github.com/chainvault/walletgate/pkg/utils"
)

// ExecutionGate is the only path to strategy activation. It refuses to
// execute anything without a verified wallet signature over a live
// challenge.
type ExecutionGate interface {
	// AuthorizeAndActivate runs the full flow: wallet presence check,
	// permission checks, challenge, wallet signature, verification,
	// execution, spend bookkeeping, session.
	AuthorizeAndActivate(ctx context.Context, req *dto.ActivationRequest) (*dto.ActivationResponse, error)

	// MissingWallets reports which of the required chains have no
	// registered address. An empty result means the gate's wallet
	// precondition holds.
	MissingWallets(ctx context.Context, required []constants.ChainID) ([]constants.ChainID, error)
}

type executionGateImpl struct {
	registry   *domainservice.WalletRegistry
	protocol   *domainservice.AuthorizationProtocol
	guard      *domainservice.PermissionGuard
	chains     *chains.Registry
	connectors map[constants.WalletSource]domainservice.WalletConnector
	executor   domainservice.StrategyExecutor
	audit      domainservice.AuditTrail
	metrics    *monitoring.Metrics
	logger     logger.Logger
	now        func() time.Time
}

// NewExecutionGate creates the gate over its collaborators. audit and
// metrics may be nil.
func NewExecutionGate(
	registry *domainservice.WalletRegistry,
	protocol *domainservice.AuthorizationProtocol,
	guard *domainservice.PermissionGuard,
	chainRegistry *chains.Registry,
	connectors map[constants.WalletSource]domainservice.WalletConnector,
	executor domainservice.StrategyExecutor,
	audit domainservice.AuditTrail,
	metrics *monitoring.Metrics,
	log logger.Logger,
) ExecutionGate {
	return &executionGateImpl{
		registry:   registry,
		protocol:   protocol,
		guard:      guard,
		chains:     chainRegistry,
		connectors: connectors,
		executor:   executor,
		audit:      audit,
		metrics:    metrics,
		logger:     log.WithComponent("execution_gate"),
		now:        time.Now,
	}
}

// resolveChains maps request chain strings onto registered chain ids,
// accepting any casing of the canonical identifier.
func (g *executionGateImpl) resolveChains(raw []string) ([]constants.ChainID, error) {
	resolved := make([]constants.ChainID, 0, len(raw))
	for _, value := range raw {
		chain, ok := chains.ParseChainID(value)
		if !ok {
			return nil, wgerrors.ErrUnknownChain(constants.ChainID(value))
		}
		resolved = append(resolved, chain)
	}
	return resolved, nil
}

func (g *executionGateImpl) MissingWallets(ctx context.Context, required []constants.ChainID) ([]constants.ChainID, error) {
	snapshot, err := g.registry.Wallet(ctx)
	if err != nil {
		return nil, err
	}

	missing := make([]constants.ChainID, 0)
	for _, chain := range required {
		if !snapshot.Has(chain) {
			missing = append(missing, chain)
		}
	}
	return missing, nil
}

func (g *executionGateImpl) record(ctx context.Context, eventType constants.AuditEventType, actor string, details map[string]any) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Record(ctx, eventType, actor, details); err != nil {
		g.logger.Warn(ctx, "Audit record failed", logger.Error(err))
	}
}

func (g *executionGateImpl) recordActivationMetric(result string, started time.Time) {
	if g.metrics == nil {
		return
	}
	g.metrics.RecordActivation(result, time.Since(started))
}

// activationResult maps an error to a bounded metric label.
func activationResult(err error) string {
	wgErr, ok := wgerrors.AsWGError(err)
	if !ok {
		return "internal"
	}
	switch wgErr.Code() {
	case constants.ErrCodeGateMissingWallets:
		return "missing_wallets"
	case constants.ErrCodeGateChainNotAllowed:
		return "chain_not_allowed"
	case constants.ErrCodeGateLimitExceeded:
		return "limit_exceeded"
	case constants.ErrCodeSignRejected, constants.ErrCodeConnectUserRejected:
		return "sign_rejected"
	case constants.ErrCodeAuthInvalidSignature:
		return "invalid_signature"
	case constants.ErrCodeAuthRateLimited:
		return "rate_limited"
	case constants.ErrCodeExecutionFailed:
		return "execution_failed"
	default:
		return "denied"
	}
}

func (g *executionGateImpl) AuthorizeAndActivate(ctx context.Context, req *dto.ActivationRequest) (*dto.ActivationResponse, error) {
	started := g.now()

	fail := func(err error) (*dto.ActivationResponse, error) {
		g.recordActivationMetric(activationResult(err), started)
		return nil, err
	}

	// 1. Validate the request payload.
	if err := utils.ValidateStruct(req); err != nil {
		return fail(err)
	}
	required, err := g.resolveChains(req.RequiredChains)
	if err != nil {
		return fail(err)
	}

	// 2. Wallet precondition: every required chain has an address.
	// This check is atomic; no challenge exists until it passes.
	snapshot, err := g.registry.Wallet(ctx)
	if err != nil {
		return fail(err)
	}
	missing := make([]constants.ChainID, 0)
	for _, chain := range required {
		if !snapshot.Has(chain) {
			missing = append(missing, chain)
		}
	}
	if len(missing) > 0 {
		g.logger.Warn(ctx, "Activation blocked by missing wallets",
			logger.String("strategy_id", req.StrategyID),
			logger.Any("missing_chains", missing),
		)
		return fail(wgerrors.ErrMissingWallets(missing))
	}

	// 3. Policy checks: allowed chains, then the daily cap.
	for _, chain := range required {
		if err := g.guard.EnsureChainAllowed(ctx, chain); err != nil {
			g.record(ctx, constants.EventTypeLimitRejected, req.UserID, map[string]any{
				"strategy_id": req.StrategyID,
				"chain":       string(chain),
				"reason":      "chain_not_allowed",
			})
			return fail(err)
		}
	}
	if err := g.guard.EnsureWithinDailyLimit(ctx, req.Amount); err != nil {
		g.record(ctx, constants.EventTypeLimitRejected, req.UserID, map[string]any{
			"strategy_id": req.StrategyID,
			"amount":      req.Amount,
			"reason":      "daily_limit",
		})
		return fail(err)
	}

	// 4. Issue the challenge against the primary signing wallet.
	signer, ok := snapshot.PrimaryAddress()
	if !ok {
		return fail(wgerrors.ErrInvalidRequest("no connected wallet available to sign"))
	}
	challenge, err := g.protocol.CreateChallenge(ctx, req.StrategyID, req.Amount, signer.Chain, signer.Address)
	if err != nil {
		return fail(err)
	}

	// 5. Obtain the wallet signature and verify it. A failed or
	// declined signature means nothing executes.
	connector, ok := g.connectors[signer.Source]
	if !ok || connector == nil {
		return fail(wgerrors.ErrSourceUnavailable(signer.Chain, signer.Source))
	}
	signature, err := connector.SignMessage(ctx, signer.Chain, signer.Address, challenge.ChallengeMessage)
	if err != nil {
		g.logger.Warn(ctx, "Wallet declined to sign",
			logger.String("strategy_id", req.StrategyID),
			logger.String("chain", string(signer.Chain)),
			logger.Error(err),
		)
		if wgErr, isWG := wgerrors.AsWGError(err); isWG {
			return fail(wgErr)
		}
		return fail(wgerrors.ErrSignRejected(signer.Chain, err.Error()))
	}
	authorization, err := g.protocol.SubmitSignature(ctx, challenge.ID, signature)
	if err != nil {
		return fail(err)
	}

	// 6. Execute, then settle bookkeeping: spend ledger, session,
	// audit trail.
	wallets := make([]models.WalletAddress, 0, len(required))
	for _, chain := range required {
		if entry, found := snapshot.Get(chain); found {
			wallets = append(wallets, entry)
		}
	}
	executionRef, err := g.executor.Execute(ctx, authorization, wallets)
	if err != nil {
		g.record(ctx, constants.EventTypeActivation, req.UserID, map[string]any{
			"strategy_id":      req.StrategyID,
			"authorization_id": authorization.ID,
			"result":           "execution_failed",
		})
		return fail(wgerrors.ErrExecutionFailed(req.StrategyID, err))
	}

	if err := g.guard.RecordSpend(ctx, req.Amount); err != nil {
		g.logger.Error(ctx, "Spend ledger update failed after execution", err,
			logger.String("strategy_id", req.StrategyID),
			logger.Float64("amount", req.Amount),
		)
	}

	session, err := g.protocol.IssueSession(ctx, req.UserID, req.StrategyID, authorization.ID)
	if err != nil {
		g.logger.Warn(ctx, "Session issuance failed, returning receipt without session",
			logger.Error(err),
		)
		session = nil
	}

	receipt := &models.ActivationReceipt{
		AuthorizationID: authorization.ID,
		StrategyID:      req.StrategyID,
		Amount:          req.Amount,
		ExecutionRef:    executionRef,
		ActivatedAt:     g.now().UTC(),
	}

	g.record(ctx, constants.EventTypeActivation, req.UserID, map[string]any{
		"strategy_id":      req.StrategyID,
		"authorization_id": authorization.ID,
		"execution_ref":    executionRef,
		"amount":           req.Amount,
		"result":           "success",
	})
	g.recordActivationMetric("success", started)
	g.logger.Info(ctx, "Strategy activated",
		logger.String("strategy_id", req.StrategyID),
		logger.String("authorization_id", authorization.ID),
		logger.String("execution_ref", executionRef),
	)

	return dto.NewActivationResponse(receipt, session), nil
}
