// Package http wires the WalletGate REST surface: wallet management,
// authorization, permissions, health, and metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/chainvault/walletgate/internal/application/dto"
	"github.com/chainvault/walletgate/internal/config"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/infrastructure/monitoring"
	"github.com/chainvault/walletgate/internal/infrastructure/ratelimit"
	"github.com/chainvault/walletgate/internal/interfaces/http/handlers"
	"github.com/chainvault/walletgate/internal/interfaces/http/middleware"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// Router owns the gin engine and the HTTP server lifecycle.
type Router struct {
	engine      *gin.Engine
	config      *config.Config
	logger      logger.Logger
	health      *handlers.HealthHandler
	wallets     *handlers.WalletHandler
	auth        *handlers.AuthHandler
	permissions *handlers.PermissionsHandler
	sessions    domainservice.SessionManager
	metrics     *monitoring.Metrics
	gatherer    prometheus.Gatherer
	limiter     *ratelimit.ChallengeLimiter
	idempotency *cache.Cache
	server      *http.Server
}

// NewRouter creates the router. sessions, metrics, and gatherer may be
// nil; the corresponding routes degrade or disappear.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	health *handlers.HealthHandler,
	wallets *handlers.WalletHandler,
	auth *handlers.AuthHandler,
	permissions *handlers.PermissionsHandler,
	sessions domainservice.SessionManager,
	metrics *monitoring.Metrics,
	gatherer prometheus.Gatherer,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:      gin.New(),
		config:      cfg,
		logger:      log.WithComponent("http_router"),
		health:      health,
		wallets:     wallets,
		auth:        auth,
		permissions: permissions,
		sessions:    sessions,
		metrics:     metrics,
		gatherer:    gatherer,
		limiter:     ratelimit.NewChallengeLimiter(cfg.RateLimit.ChallengesPerMinute, cfg.RateLimit.BurstSize),
		idempotency: cache.New(constants.IdempotencyRetention, 2*constants.IdempotencyRetention),
	}
}

// SetupRoutes registers middleware and routes on the engine.
func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Observability(r.logger, otel.Tracer(constants.ServiceName), r.metrics))

	r.engine.GET("/healthz", r.health.Healthz)
	if r.gatherer != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.engine.Group("/api/v1")

	wallets := v1.Group("/wallets")
	wallets.Use(middleware.ETag())
	{
		wallets.GET("", r.wallets.List)
		wallets.POST("", r.wallets.Add)
		wallets.POST("/connect", r.wallets.Connect)
		wallets.POST("/refresh", r.wallets.RefreshAll)
		wallets.DELETE("/:chain", r.wallets.Remove)
		wallets.POST("/:chain/disconnect", r.wallets.Disconnect)
		wallets.POST("/:chain/refresh", r.wallets.Refresh)
	}

	rateLimited := middleware.RateLimit(r.limiter, r.metrics, r.logger)

	challenges := v1.Group("/challenges")
	challenges.Use(rateLimited)
	{
		challenges.POST("", r.auth.CreateChallenge)
		challenges.GET("/:id", r.auth.GetChallenge)
		challenges.POST("/:id/signature", r.auth.SubmitSignature)
	}

	activations := v1.Group("/activations")
	activations.Use(rateLimited, middleware.Idempotency(r.idempotency, r.logger))
	{
		activations.POST("", r.auth.Activate)
	}

	v1.GET("/permissions", r.permissions.Get)
	v1.PUT("/permissions", r.permissions.Put)

	if r.sessions != nil {
		v1.GET("/sessions/me", middleware.SessionAuth(r.sessions, r.logger), r.auth.Session)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		dto.SendError(c, wgerrors.ErrNotFound(c.Request.URL.Path))
	})
}

// Engine exposes the configured engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Start sets up routes and serves until Stop or a listen failure.
func (r *Router) Start() error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(r.config.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	r.logger.Info(context.Background(), "Starting HTTP server", logger.String("address", addr))

	if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "Stopping HTTP server")
	return r.server.Shutdown(ctx)
}
