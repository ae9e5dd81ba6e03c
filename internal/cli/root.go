// Package cli wires the cobra command surface: a bare invocation launches
// the TUI, subcommands manage accounts and sessions.
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/skald-im/skald/internal/config"
)

func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "skald",
		Short:         "Terminal instant messaging client",
		Long:          "skald is a keyboard-driven terminal chat client with lazy history sync.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE:          runApp,
	}
	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("log-level", "", "Log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("offline", false, "Run against seeded demo conversations")
	cmd.PersistentFlags().String("theme", "", "UI theme (default|dark|light)")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newAccountsCmd(),
	)
	return cmd
}

// loadConfig resolves configuration with flag overrides layered on top of
// the viper chain (defaults < file < env).
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loader.SetConfigFile(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		cfg.Transport.Offline = true
	}
	if theme, _ := cmd.Flags().GetString("theme"); theme != "" {
		cfg.TUI.Theme = theme
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Credentials come from a dotenv file when present; a missing file is
	// not an error.
	if cfg.Transport.EnvFile != "" {
		_ = godotenv.Load(cfg.Transport.EnvFile)
	} else {
		_ = godotenv.Load()
	}
	return cfg, nil
}
