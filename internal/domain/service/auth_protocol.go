package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// AuthorizationProtocol issues signing challenges and turns verified
// signatures into single-use execution authorizations.
//
// Challenge lifecycle: issued -> consumed, or issued -> expired. The
// window is fixed at constants.ChallengeTTL and cannot be extended. A
// consumed challenge never authorizes again, and an invalid signature
// never consumes; the caller may retry until expiry.
type AuthorizationProtocol struct {
	verifier SignatureVerifier
	limiter  ChallengeLimiter
	sessions SessionManager
	audit    AuditTrail
	logger   logger.Logger

	mu         sync.Mutex
	challenges map[string]*models.AuthorizationChallenge

	now func() time.Time
}

// NewAuthorizationProtocol creates the protocol over its collaborators.
// audit may be nil when no trail is configured.
func NewAuthorizationProtocol(
	verifier SignatureVerifier,
	limiter ChallengeLimiter,
	sessions SessionManager,
	audit AuditTrail,
	log logger.Logger,
) *AuthorizationProtocol {
	return &AuthorizationProtocol{
		verifier:   verifier,
		limiter:    limiter,
		sessions:   sessions,
		audit:      audit,
		logger:     log.WithComponent("auth_protocol"),
		challenges: make(map[string]*models.AuthorizationChallenge),
		now:        time.Now,
	}
}

// record writes an audit event. Trail failures are logged and never
// fail the authorization flow.
func (p *AuthorizationProtocol) record(ctx context.Context, eventType constants.AuditEventType, actor string, details map[string]any) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Record(ctx, eventType, actor, details); err != nil {
		p.logger.Warn(ctx, "Audit record failed", logger.Error(err))
	}
}

// CreateChallenge issues a challenge binding (strategyID, amount) to
// the signing address. Chains without signature support are denied
// outright, and issuance is throttled per address.
func (p *AuthorizationProtocol) CreateChallenge(ctx context.Context, strategyID string, amount float64, chain constants.ChainID, address string) (*models.AuthorizationChallenge, error) {
	if strategyID == "" {
		return nil, wgerrors.ErrInvalidRequest("strategy id is required")
	}
	if amount <= 0 {
		return nil, wgerrors.ErrInvalidRequest("amount must be positive")
	}
	if !p.verifier.SupportsSigning(chain) {
		return nil, wgerrors.ErrUnsupportedChain(chain)
	}
	if !p.limiter.Allow(address) {
		p.logger.Warn(ctx, "Challenge issuance throttled",
			logger.String("address", address),
		)
		return nil, wgerrors.ErrChallengeRateLimited(address)
	}

	challenge := models.NewAuthorizationChallenge(uuid.NewString(), strategyID, amount, chain, address)

	p.mu.Lock()
	p.challenges[challenge.ID] = challenge
	p.mu.Unlock()

	p.logger.Info(ctx, "Challenge issued",
		logger.String("challenge_id", challenge.ID),
		logger.String("strategy_id", strategyID),
		logger.String("chain", string(chain)),
	)
	p.record(ctx, constants.EventTypeChallengeIssued, address, map[string]any{
		"challenge_id": challenge.ID,
		"strategy_id":  strategyID,
		"amount":       amount,
		"chain":        string(chain),
	})

	copied := *challenge
	return &copied, nil
}

// Challenge returns a copy of the challenge, if it exists. Expired
// entries are evicted on access and reported with their derived status
// so callers can distinguish expiry from an unknown id.
func (p *AuthorizationProtocol) Challenge(id string) (models.AuthorizationChallenge, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	challenge, ok := p.challenges[id]
	if !ok {
		return models.AuthorizationChallenge{}, false
	}
	copied := *challenge
	if challenge.IsExpired(p.now()) {
		delete(p.challenges, id)
	}
	return copied, true
}

// SubmitSignature verifies signature against the challenge and, when
// valid, consumes the challenge and mints an execution authorization.
// Signature verification runs outside the lock; consumption re-checks
// the challenge state, so two concurrent valid submissions mint at
// most one authorization.
func (p *AuthorizationProtocol) SubmitSignature(ctx context.Context, challengeID, signature string) (*models.ExecutionAuthorization, error) {
	p.mu.Lock()
	challenge, ok := p.challenges[challengeID]
	if !ok {
		p.mu.Unlock()
		return nil, wgerrors.ErrChallengeNotFound(challengeID)
	}
	if challenge.IsExpired(p.now()) {
		delete(p.challenges, challengeID)
		p.mu.Unlock()
		p.record(ctx, constants.EventTypeChallengeDenied, challenge.Address, map[string]any{
			"challenge_id": challengeID,
			"reason":       "expired",
		})
		return nil, wgerrors.ErrChallengeExpired(challengeID)
	}
	if challenge.Consumed {
		p.mu.Unlock()
		return nil, wgerrors.ErrChallengeAlreadyConsumed(challengeID)
	}
	pending := *challenge
	p.mu.Unlock()

	if err := p.verifier.Verify(pending.Chain, pending.Address, pending.ChallengeMessage, signature); err != nil {
		p.logger.Warn(ctx, "Signature verification failed",
			logger.String("challenge_id", challengeID),
			logger.String("chain", string(pending.Chain)),
			logger.Error(err),
		)
		p.record(ctx, constants.EventTypeChallengeDenied, pending.Address, map[string]any{
			"challenge_id": challengeID,
			"reason":       "invalid_signature",
		})
		if wgErr, isWG := wgerrors.AsWGError(err); isWG {
			return nil, wgErr
		}
		return nil, wgerrors.ErrInvalidSignature(pending.Chain).WithCause(err)
	}

	p.mu.Lock()
	challenge, ok = p.challenges[challengeID]
	switch {
	case !ok:
		p.mu.Unlock()
		return nil, wgerrors.ErrChallengeNotFound(challengeID)
	case challenge.IsExpired(p.now()):
		delete(p.challenges, challengeID)
		p.mu.Unlock()
		return nil, wgerrors.ErrChallengeExpired(challengeID)
	case challenge.Consumed:
		p.mu.Unlock()
		return nil, wgerrors.ErrChallengeAlreadyConsumed(challengeID)
	}
	challenge.Consumed = true
	p.mu.Unlock()

	authorization := &models.ExecutionAuthorization{
		ID:               uuid.NewString(),
		StrategyID:       challenge.StrategyID,
		Amount:           challenge.CapitalAmount,
		BoundChallengeID: challenge.ID,
		IssuedAt:         p.now().UTC(),
	}

	p.logger.Info(ctx, "Challenge consumed",
		logger.String("challenge_id", challengeID),
		logger.String("authorization_id", authorization.ID),
	)
	p.record(ctx, constants.EventTypeChallengeConsumed, challenge.Address, map[string]any{
		"challenge_id":     challengeID,
		"authorization_id": authorization.ID,
		"strategy_id":      challenge.StrategyID,
		"amount":           challenge.CapitalAmount,
	})
	return authorization, nil
}

// Sweep drops expired challenges and returns how many were removed.
// Consumed entries also leave the map once their window passes.
func (p *AuthorizationProtocol) Sweep(ctx context.Context) int {
	now := p.now()

	p.mu.Lock()
	removed := 0
	for id, challenge := range p.challenges {
		if challenge.IsExpired(now) {
			delete(p.challenges, id)
			removed++
		}
	}
	remaining := len(p.challenges)
	p.mu.Unlock()

	if removed > 0 {
		p.logger.Debug(ctx, "Swept expired challenges",
			logger.Int("removed", removed),
			logger.Int("remaining", remaining),
		)
	}
	return removed
}

// Pending returns the number of live challenges, consumed ones
// included until they expire.
func (p *AuthorizationProtocol) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.challenges)
}

// IssueSession mints a post-authorization session token so clients can
// poll status without re-signing.
func (p *AuthorizationProtocol) IssueSession(ctx context.Context, userID, strategyID, authorizationID string) (*models.AuthSession, error) {
	if p.sessions == nil {
		return nil, wgerrors.ErrInternal("session manager not configured")
	}
	return p.sessions.Issue(ctx, userID, strategyID, authorizationID, p.now())
}

// ValidateSession checks a session token and returns its decoded
// session.
func (p *AuthorizationProtocol) ValidateSession(ctx context.Context, token string) (*models.AuthSession, error) {
	if p.sessions == nil {
		return nil, wgerrors.ErrInternal("session manager not configured")
	}
	return p.sessions.Validate(ctx, token)
}
