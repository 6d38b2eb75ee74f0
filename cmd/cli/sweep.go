package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	domainservice "github.com/chainvault/walletgate/internal/domain/service"
)

// sweepCmd prunes the persisted spending ledger. Challenges live in
// server memory and expire there; the ledger is the only aging state
// that outlives a process.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Prune spend records outside the retention window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openedEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		guard := domainservice.NewPermissionGuard(env.store, env.log)
		pruned, err := guard.PruneLedger(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d spend-ledger buckets outside the retention window.\n", pruned)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
