package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skald-im/skald/internal/account"
	"github.com/skald-im/skald/internal/config"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage registered accounts",
		RunE:  runAccountsList,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered accounts",
			Args:  cobra.NoArgs,
			RunE:  runAccountsList,
		},
		&cobra.Command{
			Use:   "switch <phone|id>",
			Short: "Make another account active",
			Args:  cobra.ExactArgs(1),
			RunE:  runAccountsSwitch,
		},
		&cobra.Command{
			Use:   "remove <phone|id>",
			Short: "Remove an account and its session",
			Args:  cobra.ExactArgs(1),
			RunE:  runAccountsRemove,
		},
	)
	return cmd
}

func openRegistry(cmd *cobra.Command) (*config.Config, *account.Registry, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	reg, err := account.Open(cfg.AccountsPath())
	if err != nil {
		return nil, nil, err
	}
	return cfg, reg, nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	_, reg, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	accounts := reg.List()
	if len(accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts. Run 'skald login' to add one.")
		return nil
	}
	active, _ := reg.Active()
	for _, a := range accounts {
		marker := " "
		if a.ID == active.ID {
			marker = "*"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s  %s\n", marker, a.ID, a.Phone, a.Name)
	}
	return nil
}

func runAccountsSwitch(cmd *cobra.Command, args []string) error {
	_, reg, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	acc, err := reg.Switch(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Active account is now %s\n", acc.Label())
	return nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) error {
	cfg, reg, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	acc, err := reg.Remove(args[0])
	if err != nil {
		return err
	}
	// Best effort; the blob may never have existed.
	vault := newVault(cfg)
	_ = vault.Remove(account.SessionPath(cfg.SessionsDir(), acc))
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", acc.Label())
	return nil
}
