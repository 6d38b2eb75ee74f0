package providers

import (
	"context"

	"github.com/google/uuid"

	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/pkg/logger"
)

var _ service.StrategyExecutor = (*SimulatedExecutor)(nil)

// SimulatedExecutor accepts every authorized execution and returns a
// fresh reference, standing in for the external trading engine.
type SimulatedExecutor struct {
	logger logger.Logger
}

// NewSimulatedExecutor creates an executor that always succeeds.
func NewSimulatedExecutor(log logger.Logger) *SimulatedExecutor {
	return &SimulatedExecutor{logger: log.WithComponent("simulated_executor")}
}

// Execute logs the authorized execution and mints an execution ref.
func (e *SimulatedExecutor) Execute(ctx context.Context, authorization *models.ExecutionAuthorization, wallets []models.WalletAddress) (string, error) {
	ref := "sim-" + uuid.NewString()
	e.logger.Info(ctx, "Simulated execution accepted",
		logger.String("strategy_id", authorization.StrategyID),
		logger.Float64("amount", authorization.Amount),
		logger.Int("wallets", len(wallets)),
		logger.String("execution_ref", ref),
	)
	return ref, nil
}
