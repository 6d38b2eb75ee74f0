package http

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chainvault/walletgate/internal/application/dto"
	appservice "github.com/chainvault/walletgate/internal/application/service"
	"github.com/chainvault/walletgate/internal/config"
	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/internal/domain/models"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/domain/service/mocks"
	"github.com/chainvault/walletgate/internal/infrastructure/audit"
	"github.com/chainvault/walletgate/internal/infrastructure/crypto"
	"github.com/chainvault/walletgate/internal/infrastructure/monitoring"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/memory"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/securestore"
	"github.com/chainvault/walletgate/internal/infrastructure/ratelimit"
	"github.com/chainvault/walletgate/internal/interfaces/http/handlers"
	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/logger"
)

// extensionWallet acts as a Solana wallet extension backed by a real
// ed25519 key, so its signatures verify against the address it reports.
type extensionWallet struct {
	address string
	priv    ed25519.PrivateKey
}

func newExtensionWallet(t *testing.T) *extensionWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &extensionWallet{address: base58.Encode(pub), priv: priv}
}

func (w *extensionWallet) Connect(ctx context.Context, chain constants.ChainID) (models.WalletAddress, error) {
	return models.WalletAddress{Address: w.address}, nil
}

func (w *extensionWallet) SignMessage(ctx context.Context, chain constants.ChainID, address, message string) (string, error) {
	return base58.Encode(ed25519.Sign(w.priv, []byte(message))), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         0,
			ReadTimeout:  10,
			WriteTimeout: 10,
		},
		RateLimit: config.RateLimitConfig{
			ChallengesPerMinute: 600,
			BurstSize:           100,
		},
	}
}

// newTestRouter assembles the full service behind a router, with only
// the strategy executor mocked.
func newTestRouter(t *testing.T) (*Router, *mocks.MockStrategyExecutor) {
	t.Helper()

	log := logger.NewLogger(constants.LogLevelError, io.Discard)
	ctx := context.Background()

	raw := memory.NewStore()
	vault := crypto.NewKeyVault(raw, log, 0)
	require.NoError(t, vault.Initialize(ctx, ""))
	store := securestore.NewStore(raw, vault, log)

	chainRegistry := chains.NewRegistry()
	signer, err := crypto.NewSessionSigner("router-test-secret", constants.SessionTokenTTL, log)
	require.NoError(t, err)

	protocol := domainservice.NewAuthorizationProtocol(
		crypto.NewChainVerifier(chainRegistry),
		ratelimit.NewChallengeLimiter(600, 100),
		signer,
		audit.NoopTrail{},
		log,
	)
	guard := domainservice.NewPermissionGuard(store, log)

	connectors := map[constants.WalletSource]domainservice.WalletConnector{
		constants.WalletSourceExtension: newExtensionWallet(t),
	}
	registry := domainservice.NewWalletRegistry(
		store,
		chainRegistry,
		&mocks.MockBalanceOracle{},
		connectors,
		log,
		domainservice.WalletRegistryOptions{},
	)

	executor := &mocks.MockStrategyExecutor{}
	promRegistry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(promRegistry)

	gate := appservice.NewExecutionGate(
		registry, protocol, guard, chainRegistry, connectors, executor, audit.NoopTrail{}, metrics, log,
	)

	router := NewRouter(
		testConfig(),
		log,
		handlers.NewHealthHandler(store, log),
		handlers.NewWalletHandler(registry, metrics, log),
		handlers.NewAuthHandler(gate, protocol, metrics, log),
		handlers.NewPermissionsHandler(guard, log),
		signer,
		metrics,
		promRegistry,
	)
	router.SetupRoutes()
	return router, executor
}

func serve(t *testing.T, router *Router, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	rec := httptest.NewRecorder()
	router.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *dto.APIResponse {
	t.Helper()
	var envelope dto.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return &envelope
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	envelope := decodeEnvelope(t, rec)
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(t, router, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var health dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, constants.ServiceVersion, health.Version)
	assert.Equal(t, "ok", health.Checks["store"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// The healthz request above was recorded, so the counter exists.
	rec = serve(t, router, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "walletgate_http_requests_total")
}

func TestRouterNoRoute(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(t, router, http.MethodGet, "/definitely/not/here", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "not_found", envelope.Error.Code)
}

func TestRouterWalletETag(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(t, router, http.MethodGet, "/api/v1/wallets", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tag := rec.Header().Get("ETag")
	require.NotEmpty(t, tag)

	rec = serve(t, router, http.MethodGet, "/api/v1/wallets", nil, map[string]string{"If-None-Match": tag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestRouterActivationFlow(t *testing.T) {
	router, executor := newTestRouter(t)
	executor.On("Execute", mock.Anything, mock.Anything, mock.Anything).Return("exec-tx-1", nil).Once()

	rec := serve(t, router, http.MethodPost, "/api/v1/wallets/connect",
		dto.WalletConnectRequest{Chain: "solana", Source: "extension"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entry dto.WalletEntryResponse
	decodeData(t, rec, &entry)
	require.True(t, entry.IsConnected)

	activation := dto.ActivationRequest{
		UserID:         "user-1",
		StrategyID:     "momentum-2",
		Amount:         250,
		RequiredChains: []string{"solana"},
	}
	rec = serve(t, router, http.MethodPost, "/api/v1/activations", activation,
		map[string]string{"Idempotency-Key": "act-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var response dto.ActivationResponse
	decodeData(t, rec, &response)
	assert.Equal(t, "exec-tx-1", response.ExecutionRef)
	assert.Equal(t, "momentum-2", response.StrategyID)
	require.NotEmpty(t, response.SessionToken)

	// Replaying the same idempotency key is rejected before the gate.
	rec = serve(t, router, http.MethodPost, "/api/v1/activations", activation,
		map[string]string{"Idempotency-Key": "act-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "duplicate_request", envelope.Error.Code)
	executor.AssertNumberOfCalls(t, "Execute", 1)

	// The issued session authenticates the session endpoint.
	rec = serve(t, router, http.MethodGet, "/api/v1/sessions/me", nil,
		map[string]string{"Authorization": "Bearer " + response.SessionToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var session dto.SessionResponse
	decodeData(t, rec, &session)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "momentum-2", session.StrategyID)
	assert.Equal(t, response.AuthorizationID, session.AuthorizationID)

	// Today's spend shows up in the permissions view.
	rec = serve(t, router, http.MethodGet, "/api/v1/permissions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var permissions dto.PermissionsResponse
	decodeData(t, rec, &permissions)
	assert.Equal(t, 250.0, permissions.SpentToday)
}

func TestRouterPermissionsRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(t, router, http.MethodPut, "/api/v1/permissions",
		dto.PermissionsRequest{MaxDailyExecutionAmount: 5000, AllowedChains: []string{"solana", "ethereum"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, router, http.MethodGet, "/api/v1/permissions", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var permissions dto.PermissionsResponse
	decodeData(t, rec, &permissions)
	assert.Equal(t, 5000.0, permissions.MaxDailyExecutionAmount)
	assert.ElementsMatch(t, []string{"solana", "ethereum"}, permissions.AllowedChains)
	assert.Equal(t, 0.0, permissions.SpentToday)
}

func TestRouterChallengeOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	wallet := newExtensionWallet(t)
	rec := serve(t, router, http.MethodPost, "/api/v1/challenges", dto.ChallengeCreateRequest{
		StrategyID: "momentum-2",
		Amount:     120,
		Chain:      "solana",
		Address:    wallet.address,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var challenge dto.ChallengeResponse
	decodeData(t, rec, &challenge)
	require.NotEmpty(t, challenge.ID)
	require.NotEmpty(t, challenge.Message)

	signature, err := wallet.SignMessage(context.Background(), constants.ChainSolana, wallet.address, challenge.Message)
	require.NoError(t, err)

	rec = serve(t, router, http.MethodPost, "/api/v1/challenges/"+challenge.ID+"/signature",
		dto.SignatureSubmitRequest{Signature: signature}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var authorization dto.AuthorizationResponse
	decodeData(t, rec, &authorization)
	assert.Equal(t, challenge.ID, authorization.BoundChallengeID)

	// The consumed challenge reports its state on lookup.
	rec = serve(t, router, http.MethodGet, "/api/v1/challenges/"+challenge.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &challenge)
	assert.Equal(t, string(constants.ChallengeStatusConsumed), challenge.Status)
}

func TestRouterRequestIDPropagation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := serve(t, router, http.MethodGet, "/api/v1/wallets", nil,
		map[string]string{"X-Request-ID": "trace-me-7"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trace-me-7", rec.Header().Get("X-Request-ID"))

	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "trace-me-7", envelope.TraceID)
}

func TestRouterMetricsEndpointUsesCustomRegistry(t *testing.T) {
	router, _ := newTestRouter(t)

	serve(t, router, http.MethodGet, "/api/v1/wallets", nil, nil)

	rec := serve(t, router, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "walletgate_http_requests_total")
	// Only the service's own registry is exposed.
	assert.False(t, strings.Contains(body, "go_goroutines"))
}
