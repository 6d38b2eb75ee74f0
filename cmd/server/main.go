package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	appservice "github.com/chainvault/walletgate/internal/application/service"
	"github.com/chainvault/walletgate/internal/config"
	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/internal/domain/repository"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/infrastructure/audit"
	"github.com/chainvault/walletgate/internal/infrastructure/crypto"
	"github.com/chainvault/walletgate/internal/infrastructure/monitoring"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/file"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/memory"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/redis"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/securestore"
	"github.com/chainvault/walletgate/internal/infrastructure/providers"
	"github.com/chainvault/walletgate/internal/infrastructure/ratelimit"
	httpiface "github.com/chainvault/walletgate/internal/interfaces/http"
	"github.com/chainvault/walletgate/internal/interfaces/http/handlers"
	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/logger"
)

func main() {
	ctx := context.Background()

	// Logger for startup
	startupLogger, _ := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})

	// Load config
	cfg, err := config.LoadConfig(startupLogger)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	config.WatchLogLevel(appLogger)

	// Initialize the raw store backend
	raw, closeStore, err := newRawStore(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize store backend", err)
	}
	defer closeStore()

	// Initialize the key vault and the encrypted store on top of it
	vault := crypto.NewKeyVault(raw, appLogger, cfg.Vault.PBKDF2Iterations)
	if err := vault.Initialize(ctx, os.Getenv("WALLETGATE_VAULT_PASSWORD")); err != nil {
		appLogger.Fatal(ctx, "Failed to initialize key vault", err)
	}
	store := securestore.NewStore(raw, vault, appLogger)
	if err := store.VerifyCanary(ctx); err != nil {
		appLogger.Fatal(ctx, "Vault key does not match the store, refusing to start", err)
	}
	if err := store.MigrateLegacy(ctx); err != nil {
		appLogger.Fatal(ctx, "Failed to migrate legacy records", err)
	}

	// Initialize the audit trail
	trail, closeTrail, err := newAuditTrail(ctx, cfg, vault, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to open audit trail", err)
	}
	defer closeTrail()

	// Initialize infrastructure
	chainRegistry := chains.NewRegistry()
	verifier := crypto.NewChainVerifier(chainRegistry)
	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	signer, err := crypto.NewSessionSigner(cfg.Session.Secret, cfg.Session.SessionTTL(), appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create session signer", err)
	}

	// Wallet providers and the execution engine run simulated; real
	// deployments swap these for bridge-backed implementations.
	connectors, err := newConnectors(ctx, chainRegistry, store, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create wallet connectors", err)
	}
	oracle := providers.NewSimulatedOracle(appLogger)
	executor := providers.NewSimulatedExecutor(appLogger)

	// Initialize domain services
	registry := domainservice.NewWalletRegistry(store, chainRegistry, oracle, connectors, appLogger,
		domainservice.WalletRegistryOptions{
			BalanceTTL:   cfg.Refresh.BalanceTTLDuration(),
			BatchSize:    cfg.Refresh.BatchSize,
			BatchDelay:   cfg.Refresh.BatchDelay(),
			FetchTimeout: cfg.Refresh.FetchTimeout(),
		})
	protocol := domainservice.NewAuthorizationProtocol(
		verifier,
		ratelimit.NewChallengeLimiter(cfg.RateLimit.ChallengesPerMinute, cfg.RateLimit.BurstSize),
		signer,
		trail,
		appLogger,
	)
	guard := domainservice.NewPermissionGuard(store, appLogger)

	// Initialize the application gate and HTTP surface
	gate := appservice.NewExecutionGate(registry, protocol, guard, chainRegistry, connectors, executor, trail, metrics, appLogger)

	router := httpiface.NewRouter(
		cfg,
		appLogger,
		handlers.NewHealthHandler(store, appLogger),
		handlers.NewWalletHandler(registry, metrics, appLogger),
		handlers.NewAuthHandler(gate, protocol, metrics, appLogger),
		handlers.NewPermissionsHandler(guard, appLogger),
		signer,
		metrics,
		prometheus.DefaultGatherer,
	)

	// Sweep expired challenges in the background
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepLoop(sweepCtx, protocol, appLogger)

	// Serve until interrupted
	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Fatal(ctx, "HTTP server failed", err)
		}
	case sig := <-stop:
		appLogger.Info(ctx, "Shutting down", logger.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, constants.DefaultShutdownTimeout)
	defer cancel()
	if err := router.Stop(shutdownCtx); err != nil {
		appLogger.Error(ctx, "HTTP server shutdown failed", err)
	}
}

// newRawStore builds the KV backend named by the config. The returned
// closer is a no-op for backends without connections.
func newRawStore(cfg *config.Config, log logger.Logger) (repository.KVStore, func(), error) {
	switch cfg.Store.Backend {
	case "file":
		store, err := file.NewStore(cfg.Store.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "redis":
		store, err := redis.NewStore(&cfg.Redis, log)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}

// newAuditTrail opens the configured trail, or a no-op sink when audit
// is disabled.
func newAuditTrail(ctx context.Context, cfg *config.Config, vault *crypto.KeyVault, log logger.Logger) (domainservice.AuditTrail, func(), error) {
	if !cfg.Audit.Enabled {
		return audit.NoopTrail{}, func() {}, nil
	}

	secret, err := vault.AuditSecret(ctx)
	if err != nil {
		return nil, nil, err
	}
	writer, err := audit.NewTrailWriter(cfg.Audit.Path, secret, log)
	if err != nil {
		return nil, nil, err
	}
	return writer, func() {
		if err := writer.Close(); err != nil {
			log.Warn(ctx, "Audit trail close failed", logger.Error(err))
		}
	}, nil
}

// newConnectors wires one simulated provider per wallet source, each
// holding its own keys in the secure store.
func newConnectors(ctx context.Context, chainRegistry *chains.Registry, store domainservice.SecureStore, log logger.Logger) (map[constants.WalletSource]domainservice.WalletConnector, error) {
	connectors := make(map[constants.WalletSource]domainservice.WalletConnector)
	for _, source := range []constants.WalletSource{
		constants.WalletSourceExtension,
		constants.WalletSourceMobile,
		constants.WalletSourceHardware,
	} {
		connector, err := providers.NewSimulatedConnector(ctx, source, chainRegistry, store, log)
		if err != nil {
			return nil, err
		}
		connectors[source] = connector
	}
	return connectors, nil
}

// sweepLoop evicts expired challenges periodically so abandoned ones
// do not accumulate between requests.
func sweepLoop(ctx context.Context, protocol *domainservice.AuthorizationProtocol, log logger.Logger) {
	ticker := time.NewTicker(constants.ChallengeSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := protocol.Sweep(ctx); evicted > 0 {
				log.Debug(ctx, "Swept expired challenges", logger.Int("evicted", evicted))
			}
		}
	}
}
