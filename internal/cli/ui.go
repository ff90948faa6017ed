package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Keta432/medichat/internal/chat"
	"github.com/Keta432/medichat/internal/config"
	"github.com/Keta432/medichat/internal/logging"
	"github.com/Keta432/medichat/internal/store"
	"github.com/Keta432/medichat/internal/tui"
)

func newUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Launch the messaging TUI",
		Long:  "Launch the interactive terminal UI (also the default when medichat is run without arguments).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunTUI()
		},
	}
}

// RunTUI boots the full interactive client: config, identity, history
// store, sync session, and the bubbletea program.
func RunTUI() error {
	cfg, client, identity, err := bootstrap()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger := logging.Component("app")

	var history chat.History
	var archive *store.HistoryStore
	if cfg.History.Enabled {
		archive, err = store.Open(cfg.HistoryPath(), cfg.History.BusyTimeoutMs)
		if err != nil {
			// The client works without the archive; syncing continues.
			logger.Warn().Err(err).Msg("history store unavailable")
		} else {
			history = archive
			defer archive.Close()
		}
	}

	session := chat.NewSession(chat.SessionConfig{
		Transport:    client,
		Identity:     identity,
		History:      history,
		PollInterval: cfg.Sync.PollInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.WarmStart(ctx)
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := session.Stop(); err != nil {
			logger.Debug().Err(err).Msg("session stop")
		}
	}()

	contexts := config.NewContextStore(filepath.Join(cfg.Global.ConfigDir, "context.yaml"))

	return tui.Run(ctx, session, contexts, cfg.TUI)
}
