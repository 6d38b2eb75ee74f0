package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chainvault/walletgate/internal/config"
	"github.com/chainvault/walletgate/internal/domain/repository"
	"github.com/chainvault/walletgate/pkg/constants"
)

// vaultCmd groups the key vault operations.
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the encryption key vault",
}

// vaultInitCmd creates the vault material. Without --password-stdin the
// vault runs in anonymous mode: a random key persisted beside the data
// it protects.
var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the encryption key vault",
	Long: `Initializes the key vault that encrypts every stored record. With
--password-stdin the key is derived from a password read from standard
input and only a salt is persisted; without it a random key is generated
and stored alongside the data (protection against casual inspection only).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.close()

		state, err := vaultState(ctx, env.raw)
		if err != nil {
			return err
		}
		if state != vaultStateUninitialized {
			return fmt.Errorf("vault already initialized (%s mode)", state)
		}

		password := ""
		if fromStdin, _ := cmd.Flags().GetBool("password-stdin"); fromStdin {
			password, err = readPasswordStdin()
			if err != nil {
				return err
			}
		}

		if err := env.open(ctx, password); err != nil {
			return err
		}

		mode := vaultStateAnonymous
		if password != "" {
			mode = vaultStatePassword
		}
		fmt.Printf("Vault initialized (%s mode) on %s.\n", mode, storeDescription(env.cfg))
		if password != "" {
			fmt.Println("Set WALLETGATE_VAULT_PASSWORD for subsequent commands.")
		}
		return nil
	},
}

// vaultStatusCmd reports the vault mode and record count without
// unlocking anything.
var vaultStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the vault mode and stored record count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.close()

		state, err := vaultState(ctx, env.raw)
		if err != nil {
			return err
		}

		fmt.Printf("Backend: %s\n", storeDescription(env.cfg))
		if state == vaultStateUninitialized {
			fmt.Println("Vault:   not initialized (run `walletgate vault init`)")
			return nil
		}
		fmt.Printf("Vault:   initialized (%s mode)\n", state)

		keys, err := env.raw.RawKeys(ctx)
		if err != nil {
			return err
		}
		records := 0
		for _, key := range keys {
			if strings.HasPrefix(key, constants.StoreKeyPrefix) {
				records++
			}
		}
		fmt.Printf("Records: %d encrypted\n", records)
		return nil
	},
}

const (
	vaultStatePassword      = "password"
	vaultStateAnonymous     = "anonymous"
	vaultStateUninitialized = "uninitialized"
)

// vaultState inspects the raw bookkeeping keys without deriving any
// key material. A persisted salt marks password mode even when an
// anonymous key also exists, since the salt is only written on a
// password-mode Initialize.
func vaultState(ctx context.Context, raw repository.KVStore) (string, error) {
	if _, err := raw.RawGet(ctx, constants.StoreKeySalt); err == nil {
		return vaultStatePassword, nil
	} else if !errors.Is(err, repository.ErrKeyNotFound) {
		return "", err
	}

	if _, err := raw.RawGet(ctx, constants.StoreKeyAnonKey); err == nil {
		return vaultStateAnonymous, nil
	} else if !errors.Is(err, repository.ErrKeyNotFound) {
		return "", err
	}

	return vaultStateUninitialized, nil
}

func readPasswordStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	password := strings.TrimRight(string(data), "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password on stdin")
	}
	return password, nil
}

func storeDescription(cfg *config.Config) string {
	if cfg.Store.Backend == "redis" {
		return fmt.Sprintf("redis (%s)", cfg.Redis.Address)
	}
	return fmt.Sprintf("file (%s)", cfg.Store.FilePath)
}

func init() {
	vaultInitCmd.Flags().Bool("password-stdin", false, "Derive the key from a password read from stdin")
	vaultCmd.AddCommand(vaultInitCmd, vaultStatusCmd)
	rootCmd.AddCommand(vaultCmd)
}
