package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skald-im/skald/internal/account"
	"github.com/skald-im/skald/internal/config"
	"github.com/skald-im/skald/internal/session"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Add an account and store its session",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the active account's session from disk",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	reg, err := account.Open(cfg.AccountsPath())
	if err != nil {
		return err
	}
	acc, err := loginFlow(cfg, reg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", acc.Label())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := account.Open(cfg.AccountsPath())
	if err != nil {
		return err
	}
	acc, err := reg.Active()
	if errors.Is(err, account.ErrNoActive) {
		fmt.Fprintln(cmd.OutOrStdout(), "No active account")
		return nil
	}
	if err != nil {
		return err
	}
	if err := newVault(cfg).Remove(account.SessionPath(cfg.SessionsDir(), acc)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s\n", acc.Label())
	return nil
}

// newVault opens the machine-local vault shared by all accounts.
func newVault(cfg *config.Config) *session.Vault {
	return session.NewVault(filepath.Join(cfg.Global.ConfigDir, "vault.key"))
}

// sessionBlob is what gets sealed on disk for an authenticated account.
type sessionBlob struct {
	Token     string    `json:"token"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// loginFlow prompts for credentials, registers the account, and seals its
// session blob.
func loginFlow(cfg *config.Config, reg *account.Registry) (account.Account, error) {
	p := session.NewPrompter()
	phone, err := p.Phone()
	if err != nil {
		return account.Account{}, err
	}
	name, err := p.Line("Display name (optional): ")
	if err != nil {
		return account.Account{}, err
	}
	acc, err := reg.Add(phone, name)
	if err != nil {
		return account.Account{}, err
	}
	if err := sealSession(p, newVault(cfg), account.SessionPath(cfg.SessionsDir(), acc), phone); err != nil {
		return account.Account{}, err
	}
	return acc, nil
}

// authenticate re-runs the code/password prompts for an account whose session
// blob is missing.
func authenticate(cfg *config.Config, vault *session.Vault, blobPath string) error {
	p := session.NewPrompter()
	phone, err := p.Phone()
	if err != nil {
		return err
	}
	return sealSession(p, vault, blobPath, phone)
}

func sealSession(p *session.Prompter, vault *session.Vault, blobPath, phone string) error {
	// The code and 2FA password are consumed by the transport handshake and
	// never stored; only the resulting session token is sealed.
	if _, err := p.Code(); err != nil {
		return err
	}
	// Empty password means the account has none.
	if _, err := p.Password(); err != nil {
		return err
	}
	blob, err := json.Marshal(sessionBlob{
		Token:     uuid.NewString(),
		Phone:     phone,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return vault.Seal(blobPath, blob)
}
