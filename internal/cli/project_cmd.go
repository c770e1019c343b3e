package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/orchidnexus/orchid/internal/budget"
	"github.com/orchidnexus/orchid/internal/cli/formatter"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/filter"
	"github.com/orchidnexus/orchid/internal/gateway"
	"github.com/spf13/cobra"
)

func newProjectCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "List, open and manage projects",
	}

	cmd.AddCommand(
		newProjectListCmd(app),
		newProjectCreateCmd(app),
		newProjectDeleteCmd(app),
		newProjectOpenCmd(app),
		newProjectShowCmd(app),
		newProjectSummaryCmd(app),
	)

	return cmd
}

func parseID(kind, s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}

func newProjectListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			projects, err := app.Session.Client().ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No projects."))
				return nil
			}
			active, _ := app.Session.ActiveProjectID()
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatProjectList(projects, active))
			return nil
		},
	}
}

func newProjectCreateCmd(app *App) *cobra.Command {
	var open bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			gw, err := app.Session.Gateway()
			if err != nil {
				return err
			}
			p, err := gw.CreateProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s %s\n", formatter.Bold(p.Name), formatter.Dim(fmt.Sprintf("#%d", p.ID)))
			if open {
				if _, err := app.Session.SelectProject(cmd.Context(), p.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("Opened."))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "Open the project after creating it")
	return cmd
}

func newProjectDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a project and everything under it",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			if _, err := requireUser(app); err != nil {
				return err
			}
			gw, err := app.Session.Gateway()
			if err != nil {
				return err
			}
			if !yes && app.interactive() {
				ok := false
				if err := confirmForm(fmt.Sprintf("Delete project #%d and all of its objectives?", id), &ok).Run(); err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}
			if err := gw.DeleteProject(cmd.Context(), id); err != nil {
				return err
			}
			if err := app.Session.Forget(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted project #%d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newProjectOpenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open <id>",
		Short: "Make a project the one later commands act on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("project", args[0])
			if err != nil {
				return err
			}
			p, err := openProject(cmd.Context(), app, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s %s\n", formatter.Bold(p.Name), formatter.Dim(fmt.Sprintf("#%d", p.ID)))
			return nil
		},
	}
}

// treeFilter builds the task filter from --filter and --mine.
func treeFilter(expr string, mine bool) (*filter.Filter, error) {
	switch {
	case expr != "" && mine:
		return filter.Compile("(" + expr + ") && mine")
	case expr != "":
		return filter.Compile(expr)
	case mine:
		return filter.Mine(), nil
	}
	return nil, nil
}

func filteredProject(app *App, p domain.Project, f *filter.Filter) (domain.Project, error) {
	if f == nil {
		return p, nil
	}
	u, _ := app.Session.User()
	return filter.Apply(p, f, app.now(), u.ID)
}

func newProjectShowCmd(app *App) *cobra.Command {
	var (
		projectID int
		expr      string
		mine      bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the objective, activity and task tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := treeFilter(expr, mine)
			if err != nil {
				return err
			}
			p, err := openProject(cmd.Context(), app, projectID)
			if err != nil {
				return err
			}
			if p, err = filteredProject(app, p, f); err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatProjectTree(p, app.now()))
			return nil
		},
	}

	projectFlag(cmd, &projectID)
	cmd.Flags().StringVarP(&expr, "filter", "f", "", `Task filter expression, e.g. 'overdue && assignee == "a@b.org"'`)
	cmd.Flags().BoolVar(&mine, "mine", false, "Only tasks assigned to me")
	return cmd
}

func newProjectSummaryCmd(app *App) *cobra.Command {
	var projectID int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show task totals, KPIs and budgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd, app, projectID, func(ctx context.Context, _ *gateway.Gateway) error {
				p, err := app.Session.Tree().Snapshot()
				if err != nil {
					return err
				}
				s, err := app.Session.Client().GetSummary(ctx, p.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, formatter.FormatSummary(p.Name, s))
				fmt.Fprintln(out)
				fmt.Fprintln(out, formatter.Header("KPIs"))
				fmt.Fprint(out, formatter.FormatKPIs(projectKPIs(p)))
				fmt.Fprintln(out)
				fmt.Fprintln(out, formatter.Header("Budgets"))
				fmt.Fprint(out, formatter.FormatBudgets(budget.ForProject(p)))
				return nil
			})
		},
	}

	projectFlag(cmd, &projectID)
	return cmd
}

func projectKPIs(p domain.Project) []domain.KPI {
	var out []domain.KPI
	for _, o := range p.Objectives {
		for _, a := range o.Activities {
			out = append(out, a.KPIs...)
		}
	}
	return out
}
