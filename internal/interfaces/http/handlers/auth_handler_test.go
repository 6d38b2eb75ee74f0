package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chainvault/walletgate/internal/application/dto"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/domain/service/mocks"
	"github.com/chainvault/walletgate/internal/infrastructure/audit"
	"github.com/chainvault/walletgate/internal/infrastructure/crypto"
	"github.com/chainvault/walletgate/internal/infrastructure/ratelimit"
	"github.com/chainvault/walletgate/internal/interfaces/http/middleware"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
)

const testSolanaAddress = "DRpbCBMxVnDK7maPM5tGv6MvB3v1sRMC86PZ8okm21hy"

// mockExecutionGate stands in for the activation flow so handler tests
// stay focused on transport concerns.
type mockExecutionGate struct {
	mock.Mock
}

func (m *mockExecutionGate) AuthorizeAndActivate(ctx context.Context, req *dto.ActivationRequest) (*dto.ActivationResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ActivationResponse), args.Error(1)
}

func (m *mockExecutionGate) MissingWallets(ctx context.Context, chains []constants.ChainID) ([]constants.ChainID, error) {
	args := m.Called(ctx, chains)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]constants.ChainID), args.Error(1)
}

type authFixture struct {
	engine   *gin.Engine
	gate     *mockExecutionGate
	verifier *mocks.MockSignatureVerifier
	protocol *domainservice.AuthorizationProtocol
	signer   *crypto.SessionSigner
}

func newAuthFixture(t *testing.T, perMinute, burst int) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := quietLogger()
	verifier := &mocks.MockSignatureVerifier{}
	signer, err := crypto.NewSessionSigner("auth-handler-test-secret", constants.SessionTokenTTL, log)
	require.NoError(t, err)

	protocol := domainservice.NewAuthorizationProtocol(
		verifier,
		ratelimit.NewChallengeLimiter(perMinute, burst),
		signer,
		audit.NoopTrail{},
		log,
	)
	gate := &mockExecutionGate{}
	handler := NewAuthHandler(gate, protocol, nil, log)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	challenges := v1.Group("/challenges")
	{
		challenges.POST("", handler.CreateChallenge)
		challenges.GET("/:id", handler.GetChallenge)
		challenges.POST("/:id/signature", handler.SubmitSignature)
	}
	v1.POST("/activations", handler.Activate)
	v1.GET("/sessions/me", middleware.SessionAuth(signer, log), handler.Session)

	return &authFixture{engine: engine, gate: gate, verifier: verifier, protocol: protocol, signer: signer}
}

func (f *authFixture) issueChallenge(t *testing.T) dto.ChallengeResponse {
	t.Helper()
	rec, envelope := performJSON(t, f.engine, http.MethodPost, "/api/v1/challenges",
		dto.ChallengeCreateRequest{StrategyID: "momentum-2", Amount: 250, Chain: "solana", Address: testSolanaAddress})
	require.Equal(t, http.StatusCreated, rec.Code)

	var challenge dto.ChallengeResponse
	dataAs(t, envelope, &challenge)
	return challenge
}

func TestAuthHandler_CreateChallenge(t *testing.T) {
	f := newAuthFixture(t, 60, 10)
	f.verifier.On("SupportsSigning", constants.ChainSolana).Return(true)

	challenge := f.issueChallenge(t)
	assert.NotEmpty(t, challenge.ID)
	assert.Equal(t, "momentum-2", challenge.StrategyID)
	assert.Equal(t, 250.0, challenge.Amount)
	assert.Equal(t, string(constants.ChallengeStatusIssued), challenge.Status)
	assert.Contains(t, challenge.Message, "momentum-2")
	assert.Greater(t, challenge.ExpiresAt, challenge.IssuedAt)
}

func TestAuthHandler_CreateChallengeUnsupportedChain(t *testing.T) {
	f := newAuthFixture(t, 60, 10)
	f.verifier.On("SupportsSigning", constants.ChainBitcoin).Return(false)

	rec, envelope := performJSON(t, f.engine, http.MethodPost, "/api/v1/challenges",
		dto.ChallengeCreateRequest{StrategyID: "momentum-2", Amount: 250, Chain: "bitcoin", Address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "auth_unsupported_chain", envelope.Error.Code)
}

func TestAuthHandler_CreateChallengeRateLimited(t *testing.T) {
	f := newAuthFixture(t, 1, 1)
	f.verifier.On("SupportsSigning", constants.ChainSolana).Return(true)

	f.issueChallenge(t)

	rec, envelope := performJSON(t, f.engine, http.MethodPost, "/api/v1/challenges",
		dto.ChallengeCreateRequest{StrategyID: "momentum-2", Amount: 250, Chain: "solana", Address: testSolanaAddress})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "auth_rate_limited", envelope.Error.Code)
}

func TestAuthHandler_GetChallenge(t *testing.T) {
	f := newAuthFixture(t, 60, 10)
	f.verifier.On("SupportsSigning", constants.ChainSolana).Return(true)

	issued := f.issueChallenge(t)

	rec, envelope := performJSON(t, f.engine, http.MethodGet, "/api/v1/challenges/"+issued.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var fetched dto.ChallengeResponse
	dataAs(t, envelope, &fetched)
	assert.Equal(t, issued.ID, fetched.ID)
	assert.Equal(t, string(constants.ChallengeStatusIssued), fetched.Status)

	rec, envelope = performJSON(t, f.engine, http.MethodGet, "/api/v1/challenges/unknown-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "auth_not_found", envelope.Error.Code)
}

func TestAuthHandler_SubmitSignature(t *testing.T) {
	f := newAuthFixture(t, 60, 10)
	f.verifier.On("SupportsSigning", constants.ChainSolana).Return(true)
	f.verifier.On("Verify", constants.ChainSolana, testSolanaAddress, mock.Anything, "good-signature").Return(nil)

	challenge := f.issueChallenge(t)

	rec, envelope := performJSON(t, f.engine, http.MethodPost, "/api/v1/challenges/"+challenge.ID+"/signature",
		dto.SignatureSubmitRequest{Signature: "good-signature"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var authorization dto.AuthorizationResponse
	dataAs(t, envelope, &authorization)
	assert.NotEmpty(t, authorization.ID)
	assert.Equal(t, challenge.ID, authorization.BoundChallengeID)
	assert.Equal(t, 250.0, authorization.Amount)

	// The challenge is single use.
	rec, envelope = performJSON(t, f.engine, http.MethodPost, "/api/v1/challenges/"+challenge.ID+"/signature",
		dto.SignatureSubmitRequest{Signature: "good-signature"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "auth_already_consumed", envelope.Error.Code)
}

func TestAuthHandler_SubmitSignatureInvalidThenValid(t *testing.T) {
	f := newAuthFixture(t, 60, 10)
	f.verifier.On("SupportsSigning", constants.ChainSolana).Return(true)
	f.verifier.On("Verify", constants.ChainSolana, testSolanaAddress, mock.Anything, "bad-signature").
		Return(wgerrors.ErrInvalidSignature(constants.ChainSolana))
	f.verifier.On("Verify", constants.ChainSolana, testSolanaAddress, mock.Anything, "good-signature").Return(nil)

	challenge := f.issueChallenge(t)

	rec, envelope := performJSON(t, f.engine, http.MethodPost, "/api/v1/challenges/"+challenge.ID+"/signature",
		dto.SignatureSubmitRequest{Signature: "bad-signature"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "auth_invalid_signature", envelope.Error.Code)

	// A rejected signature does not consume the challenge.
	rec, _ = performJSON(t, f.engine, http.MethodPost, "/api/v1/challenges/"+challenge.ID+"/signature",
		dto.SignatureSubmitRequest{Signature: "good-signature"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthHandler_SubmitSignatureEmptyBody(t *testing.T) {
	f := newAuthFixture(t, 60, 10)

	rec, envelope := performJSON(t, f.engine, http.MethodPost, "/api/v1/challenges/some-id/signature",
		map[string]string{"signature": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "invalid_request", envelope.Error.Code)
}

func TestAuthHandler_Activate(t *testing.T) {
	f := newAuthFixture(t, 60, 10)
	request := dto.ActivationRequest{
		UserID:         "user-1",
		StrategyID:     "momentum-2",
		Amount:         250,
		RequiredChains: []string{"solana"},
	}
	f.gate.On("AuthorizeAndActivate", mock.Anything, &request).Return(&dto.ActivationResponse{
		AuthorizationID: "auth-123",
		StrategyID:      "momentum-2",
		Amount:          250,
		ExecutionRef:    "exec-456",
		ActivatedAt:     time.Now().Unix(),
	}, nil).Once()

	rec, envelope := performJSON(t, f.engine, http.MethodPost, "/api/v1/activations", request)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var response dto.ActivationResponse
	dataAs(t, envelope, &response)
	assert.Equal(t, "auth-123", response.AuthorizationID)
	assert.Equal(t, "exec-456", response.ExecutionRef)
	f.gate.AssertExpectations(t)
}

func TestAuthHandler_ActivateGateFailure(t *testing.T) {
	f := newAuthFixture(t, 60, 10)
	f.gate.On("AuthorizeAndActivate", mock.Anything, mock.Anything).
		Return(nil, wgerrors.ErrMissingWallets([]constants.ChainID{constants.ChainPolygon})).Once()

	rec, envelope := performJSON(t, f.engine, http.MethodPost, "/api/v1/activations", dto.ActivationRequest{
		UserID:         "user-1",
		StrategyID:     "momentum-2",
		Amount:         250,
		RequiredChains: []string{"solana", "polygon"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "gate_missing_wallets", envelope.Error.Code)
}

func TestAuthHandler_Session(t *testing.T) {
	f := newAuthFixture(t, 60, 10)
	session, err := f.signer.Issue(context.Background(), "user-1", "momentum-2", "auth-123", time.Now().UTC())
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "/api/v1/sessions/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+session.Token)

	rec, envelope := perform(t, f.engine, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.SessionResponse
	dataAs(t, envelope, &response)
	assert.Equal(t, "user-1", response.UserID)
	assert.Equal(t, "momentum-2", response.StrategyID)
	assert.Equal(t, "auth-123", response.AuthorizationID)
	assert.Greater(t, response.ExpiresAt, response.IssuedAt)
}

func TestAuthHandler_SessionRejections(t *testing.T) {
	f := newAuthFixture(t, 60, 10)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not a bearer token", header: "Token abc"},
		{name: "tampered token", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/sessions/me", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec, envelope := perform(t, f.engine, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, "session_invalid", envelope.Error.Code)
		})
	}
}
