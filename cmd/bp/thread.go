package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var threadCmd = &cobra.Command{
	Use:     "thread",
	GroupID: "workspace",
	Short:   "Manage conversation threads",
}

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your conversation threads",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		threads, err := db.FetchThreadsByUser(ctx, cfg.User.ID, limit)
		if err != nil {
			return fmt.Errorf("failed to list threads: %w", err)
		}

		if len(threads) == 0 {
			fmt.Println("No threads found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDASHBOARD\tUPDATED")
		for _, thread := range threads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				thread.ID, thread.Name, thread.DashboardID,
				thread.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var threadDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation thread",
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

		if err := db.DeleteThread(ctx, args[0], cfg.User.ID); err != nil {
			return fmt.Errorf("failed to delete thread: %w", err)
		}

		fmt.Printf("Deleted thread %s\n", args[0])
		return nil
	},
}

func init() {
	threadListCmd.Flags().Int("limit", 50, "Maximum number of threads to list")

	threadCmd.AddCommand(threadListCmd)
	threadCmd.AddCommand(threadDeleteCmd)
	rootCmd.AddCommand(threadCmd)
}
