package cli

import (
	"fmt"
	"os"

	"github.com/orchidnexus/orchid/internal/cli/formatter"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/report"
	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		projectID     int
		output        string
		inventoryOnly bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write KPIs, budgets, expenses and inventory to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := requireUser(app); err != nil {
				return err
			}

			stop := func() {}
			if app.interactive() {
				stop = formatter.StartSpinner(cmd.ErrOrStderr(), "Collecting report data")
			}
			defer stop()

			var project *domain.Project
			if !inventoryOnly {
				p, err := openProject(ctx, app, projectID)
				if err != nil {
					return err
				}
				project = &p
			}
			records, err := app.Session.Client().ListInventory(ctx)
			if err != nil {
				return err
			}

			if output == "" {
				output = "orchid-report.xlsx"
				if project != nil {
					output = fmt.Sprintf("orchid-project-%d.xlsx", project.ID)
				}
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create report: %w", err)
			}
			if err := report.Write(f, project, records); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}

	projectFlag(cmd, &projectID)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default orchid-project-<id>.xlsx)")
	cmd.Flags().BoolVar(&inventoryOnly, "inventory-only", false, "Export only the inventory sheet")
	return cmd
}
