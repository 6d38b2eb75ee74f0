package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chainvault/walletgate/internal/application/dto"
)

// authorizeCmd runs the whole gate in one process: wallet checks,
// permission checks, challenge, wallet signature, verification,
// execution. The simulated provider answers the signing request, so
// the command exercises the same path the server does.
var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Run a signature-gated strategy activation",
	Long: `Authorizes and activates a strategy against the local store. The flow
refuses to execute unless every required chain has a registered wallet, the
policy allows it, and the primary signing wallet produces a valid signature
over a fresh challenge.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openedEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		ctx := cmd.Context()
		gate, _, _, closeTrail, err := env.authorization(ctx)
		if err != nil {
			return err
		}
		defer closeTrail()

		user, _ := cmd.Flags().GetString("user")
		strategy, _ := cmd.Flags().GetString("strategy")
		amount, _ := cmd.Flags().GetFloat64("amount")
		requiredChains, _ := cmd.Flags().GetStringSlice("chains")

		response, err := gate.AuthorizeAndActivate(ctx, &dto.ActivationRequest{
			UserID:         user,
			StrategyID:     strategy,
			Amount:         amount,
			RequiredChains: requiredChains,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Authorization: %s\n", response.AuthorizationID)
		fmt.Printf("Execution:     %s\n", response.ExecutionRef)
		fmt.Printf("Strategy:      %s\n", response.StrategyID)
		fmt.Printf("Amount:        %.2f\n", response.Amount)
		fmt.Printf("Activated at:  %s\n", time.Unix(response.ActivatedAt, 0).UTC().Format(time.RFC3339))
		if response.SessionToken != "" {
			fmt.Printf("Session token: %s\n", response.SessionToken)
		}
		return nil
	},
}

func init() {
	authorizeCmd.Flags().String("user", "local", "User the activation is attributed to")
	authorizeCmd.Flags().String("strategy", "", "Strategy identifier")
	authorizeCmd.Flags().Float64("amount", 0, "Execution amount in USD")
	authorizeCmd.Flags().StringSlice("chains", nil, "Chains the strategy requires (comma-separated)")
	_ = authorizeCmd.MarkFlagRequired("strategy")
	_ = authorizeCmd.MarkFlagRequired("amount")
	_ = authorizeCmd.MarkFlagRequired("chains")
	rootCmd.AddCommand(authorizeCmd)
}
