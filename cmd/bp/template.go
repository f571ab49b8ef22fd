package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boardpilot/boardpilot/internal/schema"
)

// templatesFile locates the workspace template catalog.
func templatesFile() string {
	return filepath.Join(cfg.Workspace.TemplatesDir, "templates.yaml")
}

var templateCmd = &cobra.Command{
	Use:     "template",
	GroupID: "workspace",
	Short:   "Work with dashboard templates",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available dashboard templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		templates, err := schema.LoadTemplates(templatesFile())
		if err != nil {
			return fmt.Errorf("failed to load templates: %w", err)
		}

		if len(templates) == 0 {
			fmt.Println("No templates found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tWIDGETS\tDESCRIPTION")
		for _, tpl := range templates {
			fmt.Fprintf(w, "%s\t%d\t%s\n", tpl.Name, len(tpl.Widgets), tpl.Description)
		}
		return w.Flush()
	},
}

var templateApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Instantiate a template as a new dashboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}

		templates, err := schema.LoadTemplates(templatesFile())
		if err != nil {
			return fmt.Errorf("failed to load templates: %w", err)
		}

		var match *schema.Template
		for i := range templates {
			if templates[i].Name == args[0] {
				match = &templates[i]
				break
			}
		}
		if match == nil {
			return fmt.Errorf("template %q not found", args[0])
		}

		ctx := context.Background()
		db, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		board, err := match.Instantiate(cfg.User.ID)
		if err != nil {
			return err
		}
		stored, err := newEngine(db).Create(ctx, board)
		if err != nil {
			return fmt.Errorf("failed to create dashboard from template: %w", err)
		}
		if err := schema.WriteDashboardFile(cfg.Workspace.BoardsDir, stored); err != nil {
			return fmt.Errorf("failed to write local copy: %w", err)
		}

		fmt.Printf("Created dashboard %s (%s) from template %s\n", stored.Name, stored.ID, match.Name)
		return nil
	},
}

func init() {
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateApplyCmd)
	rootCmd.AddCommand(templateCmd)
}
