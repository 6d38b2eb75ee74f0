package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chainvault/walletgate/internal/domain/chains"
	"github.com/chainvault/walletgate/internal/domain/models"
	"github.com/chainvault/walletgate/pkg/constants"
)

// parseChainArg resolves a chain argument case-insensitively.
func parseChainArg(value string) (constants.ChainID, error) {
	chain, ok := chains.ParseChainID(value)
	if !ok {
		return "", fmt.Errorf("unknown chain %q", value)
	}
	return chain, nil
}

// walletCmd groups the wallet registry operations.
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage registered wallet addresses",
}

var walletAddCmd = &cobra.Command{
	Use:   "add <chain> <address>",
	Short: "Register an address manually",
	Long: `Registers an address without a wallet provider behind it. Manual
addresses are tracked and refreshed but cannot sign, so they never become
the primary signing wallet. Use "wallet connect" for a signing wallet.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openedEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		chain, err := parseChainArg(args[0])
		if err != nil {
			return err
		}
		if err := env.walletRegistry(nil).AddManual(cmd.Context(), chain, args[1]); err != nil {
			return err
		}
		fmt.Printf("Added %s address %s.\n", chain, args[1])
		return nil
	},
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered addresses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openedEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		snapshot, err := env.walletRegistry(nil).Wallet(cmd.Context())
		if err != nil {
			return err
		}
		printWallet(snapshot)
		return nil
	},
}

var walletRemoveCmd = &cobra.Command{
	Use:   "remove <chain>",
	Short: "Remove the address registered for a chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openedEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		chain, err := parseChainArg(args[0])
		if err != nil {
			return err
		}
		if err := env.walletRegistry(nil).Remove(cmd.Context(), chain); err != nil {
			return err
		}
		fmt.Printf("Removed %s.\n", chain)
		return nil
	},
}

var walletRefreshCmd = &cobra.Command{
	Use:   "refresh [chain]",
	Short: "Refresh balances for one chain or all registered chains",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openedEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		ctx := cmd.Context()
		registry := env.walletRegistry(nil)

		if len(args) == 1 {
			chain, err := parseChainArg(args[0])
			if err != nil {
				return err
			}
			balance, err := registry.RefreshBalance(ctx, chain)
			if err != nil {
				return err
			}
			fmt.Printf("%s balance: %s\n", chain, balance)
			return nil
		}

		if err := registry.RefreshAll(ctx); err != nil {
			return err
		}
		snapshot, err := registry.Wallet(ctx)
		if err != nil {
			return err
		}
		printWallet(snapshot)
		return nil
	},
}

var walletConnectCmd = &cobra.Command{
	Use:   "connect <chain>",
	Short: "Connect a wallet provider for a chain",
	Long: `Asks the wallet provider for its address on the chain and registers it
as a connected, signing-capable entry. The first connected wallet becomes
the primary signing wallet for authorization challenges.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openedEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.close()

		ctx := cmd.Context()
		connectors, err := env.connectors(ctx)
		if err != nil {
			return err
		}

		chain, err := parseChainArg(args[0])
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("source")
		entry, err := env.walletRegistry(connectors).ConnectVia(ctx, chain, constants.WalletSource(source))
		if err != nil {
			return err
		}
		fmt.Printf("Connected %s via %s: %s\n", chain, source, entry.Address)
		return nil
	},
}

func printWallet(snapshot *models.MultiChainWallet) {
	if len(snapshot.Addresses) == 0 {
		fmt.Println("No wallet addresses registered.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN\tADDRESS\tSOURCE\tCONNECTED\tBALANCE")
	for _, entry := range snapshot.Addresses {
		chain := string(entry.Chain)
		if snapshot.Primary != nil && *snapshot.Primary == entry.Chain {
			chain += " *"
		}
		balance := entry.Balance
		if balance == "" {
			balance = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", chain, entry.Address, entry.Source, entry.IsConnected, balance)
	}
	w.Flush()
	if snapshot.Primary != nil {
		fmt.Println("* primary signing wallet")
	}
}

func init() {
	walletConnectCmd.Flags().String("source", string(constants.WalletSourceExtension), "Wallet provider source (extension, mobile, hardware)")
	walletCmd.AddCommand(walletAddCmd, walletListCmd, walletRemoveCmd, walletRefreshCmd, walletConnectCmd)
	rootCmd.AddCommand(walletCmd)
}
