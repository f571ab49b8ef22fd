package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/boardpilot/boardpilot/internal/schema"
)

var boardCmd = &cobra.Command{
	Use:     "board",
	GroupID: "workspace",
	Short:   "Manage dashboards in the local workspace",
}

var boardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dashboards in the local workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		boards, err := schema.ReadAllDashboardFiles(cfg.Workspace.BoardsDir)
		if err != nil {
			return fmt.Errorf("failed to read workspace: %w", err)
		}

		if len(boards) == 0 {
			fmt.Println("No dashboards in workspace")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tWIDGETS\tPUBLISHED\tUPDATED")
		for _, board := range boards {
			published := ""
			if board.IsPublished {
				published = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				board.ID, board.Name, len(board.Widgets), published,
				board.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var boardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a dashboard locally and push it to the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		description, _ := cmd.Flags().GetString("description")

		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		now := time.Now().UTC()
		board := &schema.Dashboard{
			ID:          uuid.NewString(),
			UserID:      cfg.User.ID,
			Name:        args[0],
			Description: description,
			Widgets:     []schema.Widget{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		stored, err := newEngine(db).Create(ctx, board)
		if err != nil {
			return fmt.Errorf("failed to create dashboard: %w", err)
		}
		if err := schema.WriteDashboardFile(cfg.Workspace.BoardsDir, stored); err != nil {
			return fmt.Errorf("failed to write local copy: %w", err)
		}

		fmt.Printf("Created dashboard %s (%s)\n", stored.Name, stored.ID)
		return nil
	},
}

var boardDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a dashboard locally and from the store",
	Args:  cobra.ExactArgs(1),
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

		if err := newEngine(db).Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete dashboard: %w", err)
		}
		if err := schema.RemoveDashboardFile(cfg.Workspace.BoardsDir, args[0]); err != nil {
			return fmt.Errorf("failed to remove local copy: %w", err)
		}

		fmt.Printf("Deleted dashboard %s\n", args[0])
		return nil
	},
}

var boardPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Publish a dashboard so other users can see it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		unpublish, _ := cmd.Flags().GetBool("unpublish")

		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		stored, err := newEngine(db).Publish(ctx, args[0], !unpublish)
		if err != nil {
			return fmt.Errorf("failed to update publish state: %w", err)
		}
		if err := schema.WriteDashboardFile(cfg.Workspace.BoardsDir, stored); err != nil {
			return fmt.Errorf("failed to write local copy: %w", err)
		}

		if stored.IsPublished {
			fmt.Printf("Published dashboard %s\n", stored.Name)
		} else {
			fmt.Printf("Unpublished dashboard %s\n", stored.Name)
		}
		return nil
	},
}

func init() {
	boardCreateCmd.Flags().StringP("description", "d", "", "Dashboard description")
	boardPublishCmd.Flags().Bool("unpublish", false, "Unpublish instead")

	boardCmd.AddCommand(boardListCmd)
	boardCmd.AddCommand(boardCreateCmd)
	boardCmd.AddCommand(boardDeleteCmd)
	boardCmd.AddCommand(boardPublishCmd)
	rootCmd.AddCommand(boardCmd)
}
