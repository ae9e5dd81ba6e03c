package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skald-im/skald/internal/account"
	"github.com/skald-im/skald/internal/chat"
	"github.com/skald-im/skald/internal/chatui"
	"github.com/skald-im/skald/internal/config"
	"github.com/skald-im/skald/internal/logging"
	"github.com/skald-im/skald/internal/metastore"
	"github.com/skald-im/skald/internal/session"
	"github.com/skald-im/skald/internal/transport"
)

func runApp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	closer, err := logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		File:         cfg.LogFilePath(),
		EnableCaller: cfg.Logging.EnableCaller,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	reg, err := account.Open(cfg.AccountsPath())
	if err != nil {
		return err
	}
	// A pre-multi-account install keeps its session under the old path.
	legacy := filepath.Join(cfg.Global.ConfigDir, "session.dat")
	if acc, migrated, err := reg.MigrateLegacySession(legacy, cfg.SessionsDir(), "legacy"); err != nil {
		logging.Warn().Err(err).Msg("legacy session migration failed")
	} else if migrated {
		logging.Info().Str("account", acc.Label()).Msg("migrated legacy session")
	}

	for {
		acc, err := reg.Active()
		if errors.Is(err, account.ErrNoActive) {
			if acc, err = loginFlow(cfg, reg); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		again, err := runSession(cmd.Context(), cfg, reg, acc)
		if err != nil || !again {
			return err
		}
	}
}

// runSession runs the TUI for one account. It reports whether the outer loop
// should run again (account switch or add).
func runSession(parent context.Context, cfg *config.Config, reg *account.Registry, acc account.Account) (bool, error) {
	log := logging.WithAccount(acc.ID)

	vault := newVault(cfg)
	blobPath := account.SessionPath(cfg.SessionsDir(), acc)
	if _, err := vault.Open(blobPath); err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			return false, fmt.Errorf("open session for %s: %w", acc.Label(), err)
		}
		log.Info().Msg("no session on disk, logging in")
		if err := authenticate(cfg, vault, blobPath); err != nil {
			return false, err
		}
	}

	store, err := metastore.Open(cfg.DatabasePath(), acc.ID)
	if err != nil {
		return false, err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	src := transport.NewMemory(acc.Label())
	if cfg.Transport.Offline {
		seedDemo(src)
	} else {
		// No network transport is wired yet; run against the local source
		// so cached conversations still render.
		log.Warn().Msg("network transport unavailable, running offline")
	}

	engine := chat.NewEngine(src, chat.EngineConfig{
		PageSize:       cfg.Timeline.PageSize,
		FetchThreshold: cfg.Timeline.FetchThreshold,
		TimelineBudget: cfg.Timeline.ConversationBudget,
		MessageBudget:  cfg.Timeline.MessageBudget,
		Logger:         logging.Component("engine"),
		Sink:           store,
	})
	if cached, err := store.List(ctx); err != nil {
		log.Warn().Err(err).Msg("metastore list failed")
	} else {
		engine.Seed(cached)
	}

	go engine.Run(ctx)
	if err := engine.LoadConversations(ctx); err != nil {
		return false, err
	}

	ctxStore := config.NewContextStore(filepath.Join(cfg.Global.ConfigDir, "context.yaml"))
	uiCtx, err := ctxStore.Load()
	if err != nil {
		uiCtx = &config.Context{}
	}
	if uiCtx.AccountID != acc.ID {
		uiCtx.SetAccount(acc.ID, acc.Label())
	}

	entries := make([]chatui.AccountEntry, 0, len(reg.List()))
	for _, a := range reg.List() {
		entries = append(entries, chatui.AccountEntry{ID: a.ID, Label: a.Label()})
	}
	model := chatui.NewModel(chatui.Config{
		Engine:         engine,
		Theme:          cfg.TUI.Theme,
		ShowTimestamps: cfg.TUI.ShowTimestamps,
		Accounts:       entries,
		ActiveAccount:  acc.ID,
		Logger:         logging.Component("tui"),
		OnOpenConversation: func(id chat.ConversationID, title string) {
			uiCtx.SetConversation(int64(id), title)
			if err := ctxStore.Save(uiCtx); err != nil {
				log.Debug().Err(err).Msg("context save failed")
			}
		},
	})
	if err := chatui.Run(model); err != nil {
		return false, fmt.Errorf("run ui: %w", err)
	}
	engine.Wait()

	if id, ok := model.RequestedAccount(); ok {
		switched, err := reg.Switch(id)
		if err != nil {
			return false, err
		}
		uiCtx.SetAccount(switched.ID, switched.Label())
		if err := ctxStore.Save(uiCtx); err != nil {
			log.Debug().Err(err).Msg("context save failed")
		}
		return true, nil
	}
	if model.RequestedAddAccount() {
		if _, err := loginFlow(cfg, reg); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
