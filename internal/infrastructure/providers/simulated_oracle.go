package providers

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/pkg/constants"
	"github.com/chainvault/walletgate/pkg/logger"
)

var _ service.BalanceOracle = (*SimulatedOracle)(nil)

// SimulatedOracle serves deterministic pseudo-balances derived from
// the chain and address, so repeated fetches and restarts agree on
// what an account holds without touching any chain RPC endpoint.
type SimulatedOracle struct {
	logger logger.Logger
}

// NewSimulatedOracle creates an oracle that never fails.
func NewSimulatedOracle(log logger.Logger) *SimulatedOracle {
	return &SimulatedOracle{logger: log.WithComponent("simulated_oracle")}
}

// FetchBalance returns the pseudo-balance for (chain, address).
func (o *SimulatedOracle) FetchBalance(ctx context.Context, chain constants.ChainID, address string) (string, error) {
	balance := pseudoBalance(chain, address)
	o.logger.Debug(ctx, "Simulated balance served",
		logger.String("chain", string(chain)),
		logger.String("address", address),
		logger.String("balance", balance),
	)
	return balance, nil
}

// pseudoBalance hashes the pair into a stable amount below 100 units
// with four decimal places.
func pseudoBalance(chain constants.ChainID, address string) string {
	h := fnv.New64a()
	h.Write([]byte(chain))
	h.Write([]byte{0})
	h.Write([]byte(address))
	return fmt.Sprintf("%d.%04d", h.Sum64()%100, h.Sum64()%10000)
}
