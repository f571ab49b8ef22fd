package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boardpilot/boardpilot/internal/config"
	"github.com/boardpilot/boardpilot/internal/remote"
	boardsync "github.com/boardpilot/boardpilot/internal/sync"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bp",
	Short: "Local-first dashboard workspace with an AI copilot",
	Long: `boardpilot keeps a local workspace of dashboard definitions in sync with
a shared store, resolves concurrent edits with last-writer-wins semantics,
and drives dashboard changes through a conversational AI copilot.

Dashboards live as boards/*.json files you can edit with any tool; the
sync engine reconciles them against the store on demand or continuously
via the watch daemon.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./boardpilot.yaml)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "workspace", Title: "Workspace commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced commands:"},
	)
}

// openStore opens the SQLite store and ensures the schema exists.
// Callers own the returned handle.
func openStore(ctx context.Context) (*remote.DB, error) {
	db, err := remote.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}
	return db, nil
}

// newEngine builds the sync engine for the configured user.
func newEngine(db *remote.DB) boardsync.Engine {
	return boardsync.New(db, cfg.User.ID, cfg.NewLogger("[sync] "))
}

// requireUser fails fast for commands that need an authenticated user.
func requireUser() error {
	if cfg.User.ID == "" {
		return fmt.Errorf("no user configured: set user.id in boardpilot.yaml or BOARDPILOT_USER_ID")
	}
	return nil
}
