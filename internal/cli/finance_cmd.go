package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/budget"
	"github.com/orchidnexus/orchid/internal/cli/formatter"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/gateway"
	"github.com/orchidnexus/orchid/internal/tree"
	"github.com/spf13/cobra"
)

func newKPICmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Track key performance indicators",
	}

	var projectID int
	cmd.PersistentFlags().IntVarP(&projectID, "project", "p", 0, "Project ID (defaults to the open project)")

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List KPIs with progress toward target",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), app, projectID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatKPIs(projectKPIs(p)))
			return nil
		},
	}

	var (
		activityID int
		unit       string
		target     float64
	)
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a KPI to an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target < 0 {
				return errors.New("--target must not be negative")
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				k, err := gw.CreateKPI(ctx, api.NewKPI{Name: args[0], Unit: unit, TargetValue: target, ActivityID: activityID})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added KPI %s %s\n", formatter.Bold(k.Name), formatter.Dim(fmt.Sprintf("#%d", k.ID)))
				return nil
			})
		},
	}
	add.Flags().IntVarP(&activityID, "activity", "a", 0, "Parent activity ID")
	add.Flags().StringVar(&unit, "unit", "", "Unit of measure")
	add.Flags().Float64Var(&target, "target", 0, "Target value")
	_ = add.MarkFlagRequired("activity")

	entry := &cobra.Command{
		Use:   "entry <id> <value>",
		Short: "Record a new KPI value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("KPI", args[0])
			if err != nil {
				return err
			}
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q", args[1])
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				k, err := gw.AddKPIEntry(ctx, id, value)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s / %s %s\n",
					formatter.Bold(k.Name), formatter.Number(k.CurrentValue), formatter.Number(k.TargetValue), k.Unit)
				return nil
			})
		},
	}

	history := &cobra.Command{
		Use:   "history <id>",
		Short: "Show every recorded value of a KPI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("KPI", args[0])
			if err != nil {
				return err
			}
			if _, err := openProject(cmd.Context(), app, projectID); err != nil {
				return err
			}
			v, ok := app.Session.Tree().Find(tree.KPIRef(id))
			if !ok {
				return fmt.Errorf("KPI #%d is not in the open project", id)
			}
			entries, err := app.Session.Client().KPIHistory(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatKPIHistory(v.(domain.KPI), entries))
			return nil
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a KPI",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("KPI", args[0])
			if err != nil {
				return err
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				if err := gw.DeleteKPI(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted KPI #%d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, entry, history, rm)
	return cmd
}

func newBudgetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Set and review activity budgets",
	}

	var projectID, activityID int
	cmd.PersistentFlags().IntVarP(&projectID, "project", "p", 0, "Project ID (defaults to the open project)")

	var total float64
	set := &cobra.Command{
		Use:   "set",
		Short: "Set or replace an activity's budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if total < 0 {
				return errors.New("--total must not be negative")
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				b, err := gw.SetBudget(ctx, activityID, total)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Budget for activity #%d set to %s\n", activityID, formatter.Money(b.TotalAmount))
				return nil
			})
		},
	}
	set.Flags().IntVarP(&activityID, "activity", "a", 0, "Activity ID")
	set.Flags().Float64Var(&total, "total", 0, "Total amount")
	_ = set.MarkFlagRequired("activity")
	_ = set.MarkFlagRequired("total")

	var showActivity int
	show := &cobra.Command{
		Use:   "show",
		Short: "Show spend against budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), app, projectID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showActivity == 0 {
				fmt.Fprint(out, formatter.FormatBudgets(budget.ForProject(p)))
				return nil
			}
			v, ok := app.Session.Tree().Find(tree.ActivityRef(showActivity))
			if !ok {
				return fmt.Errorf("activity #%d is not in the open project", showActivity)
			}
			a := v.(domain.Activity)
			if a.Budget == nil {
				fmt.Fprintf(out, "%s\n", formatter.Dim(fmt.Sprintf("Activity %q has no budget.", a.Name)))
				return nil
			}
			fmt.Fprintln(out, formatter.FormatBudget(budget.Summarize(a.ID, a.Name, a.Budget), a.Budget))
			return nil
		},
	}
	show.Flags().IntVarP(&showActivity, "activity", "a", 0, "Activity ID (all budgets when omitted)")

	cmd.AddCommand(set, show)
	return cmd
}

func newExpenseCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expense",
		Short: "Record spending against a budget",
	}

	var (
		projectID, activityID int
		amount                float64
		description           string
	)
	log := &cobra.Command{
		Use:   "log",
		Short: "Log an expense against an activity's budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount <= 0 {
				return errors.New("--amount must be positive")
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				e, err := gw.LogExpense(ctx, activityID, amount, description)
				if errors.Is(err, gateway.ErrNoBudget) {
					return fmt.Errorf("activity #%d has no budget, set one with `orchid budget set` first", activityID)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged %s %s\n", formatter.Money(e.Amount), e.Description)
				if b, ok := app.Session.Tree().ActivityBudget(activityID); ok && budget.OverBudget(b) {
					fmt.Fprintln(cmd.OutOrStdout(), formatter.StyleRedBold.Render(
						fmt.Sprintf("Over budget: %s spent of %s", formatter.Money(budget.TotalExpenses(b)), formatter.Money(b.TotalAmount))))
				}
				return nil
			})
		},
	}
	projectFlag(log, &projectID)
	log.Flags().IntVarP(&activityID, "activity", "a", 0, "Activity ID")
	log.Flags().Float64Var(&amount, "amount", 0, "Amount spent")
	log.Flags().StringVarP(&description, "description", "d", "", "What the money was spent on")
	_ = log.MarkFlagRequired("activity")
	_ = log.MarkFlagRequired("amount")

	cmd.AddCommand(log)
	return cmd
}
