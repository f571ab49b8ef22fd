package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boardpilot/boardpilot/internal/session"
)

var queryCmd = &cobra.Command{
	Use:     "query <sql>",
	GroupID: "advanced",
	Short:   "Run a read-only query against the store",
	Long: `Execute a SELECT statement against the store and print the result.

Only SELECT statements are accepted; any mutation is rejected before it
reaches the database.

Example usage:
  bp query "select id, name from dashboards where is_published = 1"
  bp query --csv out.csv "select * from threads"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		csvPath, _ := cmd.Flags().GetString("csv")

		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		result, err := db.Query(ctx, args[0])
		if err != nil {
			return err
		}

		if csvPath != "" {
			content, err := session.EncodeCSV(result)
			if err != nil {
				return fmt.Errorf("failed to encode CSV: %w", err)
			}
			if err := os.WriteFile(csvPath, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write CSV: %w", err)
			}
			fmt.Printf("Wrote %d rows to %s\n", result.RowCount(), csvPath)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for i, col := range result.Columns {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, col)
		}
		fmt.Fprintln(w)
		for _, row := range result.Rows {
			for i, value := range row {
				if i > 0 {
					fmt.Fprint(w, "\t")
				}
				if value == nil {
					fmt.Fprint(w, "NULL")
				} else {
					fmt.Fprintf(w, "%v", value)
				}
			}
			fmt.Fprintln(w)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("(%d rows)\n", result.RowCount())
		return nil
	},
}

func init() {
	queryCmd.Flags().String("csv", "", "Write the result to a CSV file instead")
	rootCmd.AddCommand(queryCmd)
}
