package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boardpilot/boardpilot/internal/agent"
	"github.com/boardpilot/boardpilot/internal/notify"
	"github.com/boardpilot/boardpilot/internal/session"
	"github.com/boardpilot/boardpilot/internal/stream"
)

// consoleNotifier prints action outcomes inline with the conversation.
type consoleNotifier struct{}

func (consoleNotifier) Notify(kind notify.Kind, text string) {
	marker := "ok"
	if kind == notify.Error {
		marker = "error"
	}
	fmt.Printf("  [%s] %s\n", marker, text)
}

var chatCmd = &cobra.Command{
	Use:     "chat",
	GroupID: "workspace",
	Short:   "Talk to the dashboard copilot",
	Long: `Start an interactive conversation with the AI copilot.

The copilot can create and modify dashboards, add widgets with automatic
layout, run read-only queries against the store, and export query results
as CSV. Dashboard changes are applied to the local workspace and pushed
to the store immediately.

Example usage:
  bp chat                         # Start a new conversation
  bp chat --thread <id>           # Resume an existing thread`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		if cfg.Agent.APIKey == "" {
			return fmt.Errorf("no API key configured: set agent.api_key or BOARDPILOT_AGENT_API_KEY")
		}
		threadID, _ := cmd.Flags().GetString("thread")

		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		client := agent.NewClient(cfg.Agent.APIKey, cfg.Agent.Model, cfg.NewLogger("[agent] "))

		ctrl := session.New(db, newEngine(db), client, consoleNotifier{}, db, session.Config{
			UserID:    cfg.User.ID,
			ThreadID:  threadID,
			BoardsDir: cfg.Workspace.BoardsDir,
			ExportDir: cfg.Workspace.ExportDir,
			Logger:    cfg.NewLogger("[session] "),
		})
		defer ctrl.Close()

		if err := ctrl.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}

		fmt.Println("boardpilot copilot (type 'exit' to quit)")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			input := strings.TrimSpace(scanner.Text())
			if input == "exit" || input == "quit" {
				break
			}

			if err := ctrl.Send(ctx, input); err != nil {
				if errors.Is(err, session.ErrEmptyMessage) {
					continue
				}
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}

			printLatestReply(ctrl.Timeline())
		}
		return scanner.Err()
	},
}

// printLatestReply shows the assistant's newest message, tool activity
// included.
func printLatestReply(timeline []stream.DisplayMessage) {
	for i := len(timeline) - 1; i >= 0; i-- {
		msg := timeline[i]
		if msg.Role != stream.RoleAssistant {
			continue
		}
		for _, segment := range msg.Segments {
			switch segment.Kind {
			case stream.SegmentText:
				fmt.Println(segment.Text)
			case stream.SegmentToolCall:
				fmt.Printf("  (running %s)\n", segment.ToolName)
			}
		}
		if msg.Warning != "" {
			fmt.Printf("  (note: %s)\n", msg.Warning)
		}
		return
	}
}

func init() {
	chatCmd.Flags().String("thread", "", "Resume an existing conversation thread")
	rootCmd.AddCommand(chatCmd)
}
