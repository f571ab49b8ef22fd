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

var monitorCmd = &cobra.Command{
	Use:     "monitor",
	GroupID: "advanced",
	Short:   "Start the standalone sync monitor server",
	Long: `Start the WebSocket server that broadcasts sync activity.

WebSocket messages include:
- sync_outcome: a dashboard was adopted, pushed up, or failed to sync
- conflict: both sides of a dashboard changed since the last sync

Connected clients can backfill recent history from GET /timeline, served
from the sync journal the watch daemon writes.

Example usage:
  bp monitor                 # Start on the configured port
  bp monitor --port 9000     # Start on a custom port

Connect with a WebSocket client:
  ws://localhost:8484/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Monitor.Port
		}

		journal, err := daemon.OpenJournal(cfg.Daemon.JournalPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open sync journal: %w", err)
		}
		defer journal.Close()

		server := monitor.NewServer(&monitor.Config{
			Port:    port,
			Journal: journal,
			Logger:  cfg.NewLogger("[monitor] "),
		})
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start monitor: %w", err)
		}

		fmt.Printf("Monitor server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Timeline backfill: http://localhost:%d/timeline\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down monitor server...")
		return server.Stop()
	},
}

func init() {
	monitorCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: config)")
	rootCmd.AddCommand(monitorCmd)
}
