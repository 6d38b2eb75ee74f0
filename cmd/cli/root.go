// Package cli implements the walletgate command-line tool. Commands
// operate directly on the same encrypted store the server uses, so a
// local deployment can be inspected and driven without going through
// the HTTP surface.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chainvault/walletgate/internal/application/service"
	"github.com/chainvault/walletgate/internal/config"
	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/internal/domain/repository"
	domainservice "github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/internal/infrastructure/audit"
	"github.com/chainvault/walletgate/internal/infrastructure/crypto"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/file"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/redis"
	"github.com/chainvault/walletgate/internal/infrastructure/persistence/securestore"
	"github.com/chainvault/walletgate/internal/infrastructure/providers"
	"github.com/chainvault/walletgate/internal/infrastructure/ratelimit"
	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/logger"
)

// rootCmd represents the base command when the `walletgate` binary is
// called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "walletgate",
	Short: "A CLI tool for operating a local WalletGate deployment.",
	Long: `walletgate is a command-line interface for the WalletGate authorization
service: initializing the encryption key vault, managing wallet addresses,
and running signature-gated strategy activations against the local store.

Commands share the server's configuration file and encrypted store. For a
password-protected vault, set WALLETGATE_VAULT_PASSWORD.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the CLI application. It parses
// the command-line arguments and executes the appropriate command. If
// an error occurs, it prints the error and exits.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// environment bundles the stores and services the commands operate on.
// Construction mirrors the server bootstrap, with a quiet logger so
// command output stays readable.
type environment struct {
	cfg    *config.Config
	log    logger.Logger
	raw    repository.KVStore
	vault  *crypto.KeyVault
	store  *securestore.Store
	chains *chains.Registry
}

// newEnvironment loads configuration and opens the raw store. The
// vault stays locked; commands that read or write records call open.
func newEnvironment() (*environment, error) {
	log := logger.NewLogger(constants.LogLevelError, os.Stderr)

	cfg, err := config.LoadConfig(log)
	if err != nil {
		return nil, err
	}

	raw, err := openRawStore(cfg, log)
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:    cfg,
		log:    log,
		raw:    raw,
		vault:  crypto.NewKeyVault(raw, log, cfg.Vault.PBKDF2Iterations),
		chains: chains.NewRegistry(),
	}, nil
}

// openRawStore picks the backend from configuration. The memory
// backend cannot carry state between invocations, so the CLI uses the
// file store in its place.
func openRawStore(cfg *config.Config, log logger.Logger) (repository.KVStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		return redis.NewStore(&cfg.Redis, log)
	default:
		return file.NewStore(cfg.Store.FilePath)
	}
}

// open unlocks the vault with password (empty selects the anonymous
// key) and prepares the secure store. The canary check turns a wrong
// password into an error here instead of silent data loss later.
func (e *environment) open(ctx context.Context, password string) error {
	if err := e.vault.Initialize(ctx, password); err != nil {
		return err
	}
	e.store = securestore.NewStore(e.raw, e.vault, e.log)
	if err := e.store.VerifyCanary(ctx); err != nil {
		return fmt.Errorf("vault key does not match this store (wrong WALLETGATE_VAULT_PASSWORD?): %w", err)
	}
	return e.store.MigrateLegacy(ctx)
}

func (e *environment) close() {
	if err := e.raw.Close(); err != nil {
		e.log.Warn(context.Background(), "Store close failed", logger.Error(err))
	}
}

// openedEnvironment is the common prelude of every command that reads
// or writes records: load config, open the store, unlock the vault
// with the ambient password.
func openedEnvironment(cmd *cobra.Command) (*environment, error) {
	env, err := newEnvironment()
	if err != nil {
		return nil, err
	}
	if err := env.open(cmd.Context(), vaultPassword()); err != nil {
		env.close()
		return nil, err
	}
	return env, nil
}

// walletRegistry builds the registry over the opened store. connectors
// may be nil for commands that never connect or sign.
func (e *environment) walletRegistry(connectors map[constants.WalletSource]domainservice.WalletConnector) *domainservice.WalletRegistry {
	return domainservice.NewWalletRegistry(
		e.store,
		e.chains,
		providers.NewSimulatedOracle(e.log),
		connectors,
		e.log,
		domainservice.WalletRegistryOptions{
			BalanceTTL:   e.cfg.Refresh.BalanceTTLDuration(),
			BatchSize:    e.cfg.Refresh.BatchSize,
			BatchDelay:   e.cfg.Refresh.BatchDelay(),
			FetchTimeout: e.cfg.Refresh.FetchTimeout(),
		},
	)
}

// connectors builds one simulated wallet provider per source, creating
// their signing keys in the secure store on first use.
func (e *environment) connectors(ctx context.Context) (map[constants.WalletSource]domainservice.WalletConnector, error) {
	connectors := make(map[constants.WalletSource]domainservice.WalletConnector)
	for _, source := range []constants.WalletSource{
		constants.WalletSourceExtension,
		constants.WalletSourceMobile,
		constants.WalletSourceHardware,
	} {
		connector, err := providers.NewSimulatedConnector(ctx, source, e.chains, e.store, e.log)
		if err != nil {
			return nil, err
		}
		connectors[source] = connector
	}
	return connectors, nil
}

// auditTrail honors the audit configuration the same way the server
// does, so CLI activations land in the same tamper-evident log.
func (e *environment) auditTrail(ctx context.Context) (domainservice.AuditTrail, func(), error) {
	if !e.cfg.Audit.Enabled {
		return audit.NoopTrail{}, func() {}, nil
	}

	secret, err := e.vault.AuditSecret(ctx)
	if err != nil {
		return nil, nil, err
	}
	writer, err := audit.NewTrailWriter(e.cfg.Audit.Path, secret, e.log)
	if err != nil {
		return nil, nil, err
	}
	return writer, func() {
		if err := writer.Close(); err != nil {
			e.log.Warn(ctx, "Audit trail close failed", logger.Error(err))
		}
	}, nil
}

// authorization builds the full protocol and gate stack over the
// opened store.
func (e *environment) authorization(ctx context.Context) (service.ExecutionGate, *domainservice.AuthorizationProtocol, *domainservice.PermissionGuard, func(), error) {
	connectors, err := e.connectors(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	signer, err := crypto.NewSessionSigner(e.cfg.Session.Secret, e.cfg.Session.SessionTTL(), e.log)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	trail, closeTrail, err := e.auditTrail(ctx)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	registry := e.walletRegistry(connectors)
	protocol := domainservice.NewAuthorizationProtocol(
		crypto.NewChainVerifier(e.chains),
		ratelimit.NewChallengeLimiter(e.cfg.RateLimit.ChallengesPerMinute, e.cfg.RateLimit.BurstSize),
		signer,
		trail,
		e.log,
	)
	guard := domainservice.NewPermissionGuard(e.store, e.log)
	gate := service.NewExecutionGate(registry, protocol, guard, e.chains, connectors, providers.NewSimulatedExecutor(e.log), trail, nil, e.log)

	return gate, protocol, guard, closeTrail, nil
}

// vaultPassword resolves the password for commands that unlock an
// existing vault.
func vaultPassword() string {
	return os.Getenv("WALLETGATE_VAULT_PASSWORD")
}
