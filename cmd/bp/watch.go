package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/boardpilot/boardpilot/internal/daemon"
	"github.com/boardpilot/boardpilot/internal/monitor"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "workspace",
	Short:   "Continuously reconcile the workspace as files change",
	Long: `Run the reconcile daemon: watch boards/*.json for edits, sync changed
dashboards to the store with debouncing, and periodically re-run a full
reconcile to pick up remote-side changes.

Outcomes are appended to a local journal and, with --monitor, broadcast
to WebSocket clients in real time.

Example usage:
  bp watch                  # Daemon only
  bp watch --monitor        # Daemon plus the sync monitor server`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		withMonitor, _ := cmd.Flags().GetBool("monitor")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		var reporter daemon.Reporter
		if withMonitor {
			server := monitor.NewServer(&monitor.Config{
				Port:   cfg.Monitor.Port,
				Logger: cfg.NewLogger("[monitor] "),
			})
			if err := server.Start(); err != nil {
				return fmt.Errorf("failed to start monitor: %w", err)
			}
			defer server.Stop()
			fmt.Printf("Monitor: ws://localhost:%d/ws\n", cfg.Monitor.Port)
			reporter = server
		}

		journal, err := daemon.OpenJournal(cfg.Daemon.JournalPath, reporter)
		if err != nil {
			return fmt.Errorf("failed to open sync journal: %w", err)
		}
		defer journal.Close()

		daemonConfig := daemon.DefaultConfig()
		daemonConfig.ReconcileInterval = cfg.Daemon.ReconcileInterval
		daemonConfig.DebounceInterval = cfg.Daemon.DebounceInterval
		daemonConfig.Logger = cfg.NewLogger("[daemon] ")

		d, err := daemon.NewWithConfig(newEngine(db), cfg.Workspace.BoardsDir, journal, daemonConfig)
		if err != nil {
			return fmt.Errorf("failed to create daemon: %w", err)
		}

		fmt.Printf("Watching %s (Ctrl+C to stop)\n", cfg.Workspace.BoardsDir)
		return d.Start(ctx)
	},
}

func init() {
	watchCmd.Flags().Bool("monitor", false, "Also start the sync monitor server")
	rootCmd.AddCommand(watchCmd)
}
