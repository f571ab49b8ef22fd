package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boardpilot/boardpilot/internal/schema"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "workspace",
	Short:   "Reconcile the local workspace against the store once",
	Long: `Sync every dashboard in the local workspace against the shared store.

Each dashboard is compared by its updated timestamp: a strictly newer
remote copy replaces the local file, a dashboard missing remotely is
pushed up, and anything else is left alone. When both sides changed, the
remote copy still wins but the dashboard is flagged as a conflict for
review.

Example usage:
  bp sync            # One-shot reconcile
  bp watch           # Continuous reconcile on file changes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}

		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		locals, err := schema.ReadAllDashboardFiles(cfg.Workspace.BoardsDir)
		if err != nil {
			return fmt.Errorf("failed to read workspace: %w", err)
		}
		if len(locals) == 0 {
			fmt.Println("Workspace is empty, nothing to sync")
			return nil
		}

		result := newEngine(db).SyncBatch(ctx, locals)

		for _, board := range result.Updated {
			if err := schema.WriteDashboardFile(cfg.Workspace.BoardsDir, board); err != nil {
				fmt.Printf("  error writing %s: %v\n", board.ID, err)
				continue
			}
			fmt.Printf("  adopted remote copy of %s (%s)\n", board.Name, board.ID)
		}
		for _, conflict := range result.Conflicts {
			if err := schema.WriteDashboardFile(cfg.Workspace.BoardsDir, conflict.Remote); err != nil {
				fmt.Printf("  error writing %s: %v\n", conflict.Remote.ID, err)
				continue
			}
			fmt.Printf("  CONFLICT on %s (%s): both sides changed, remote copy adopted\n",
				conflict.Local.Name, conflict.Local.ID)
		}
		for _, syncErr := range result.Errors {
			fmt.Printf("  error syncing %s: %v\n", syncErr.ID, syncErr.Err)
		}

		fmt.Printf("Synced %d dashboards: %d adopted, %d conflicts, %d errors\n",
			len(locals), len(result.Updated), len(result.Conflicts), len(result.Errors))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
