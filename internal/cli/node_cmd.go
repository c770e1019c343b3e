package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/cli/formatter"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/gateway"
	"github.com/spf13/cobra"
)

func newObjectiveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objective",
		Short: "Manage objectives of the open project",
	}

	var projectID int
	cmd.PersistentFlags().IntVarP(&projectID, "project", "p", 0, "Project ID (defaults to the open project)")

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				o, err := gw.CreateObjective(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added objective %s %s\n", formatter.Bold(o.Name), formatter.Dim(fmt.Sprintf("#%d", o.ID)))
				return nil
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename an objective",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("objective", args[0])
			if err != nil {
				return err
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				o, err := gw.RenameObjective(ctx, id, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed objective #%d to %s\n", o.ID, formatter.Bold(o.Name))
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an objective with its activities and tasks",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("objective", args[0])
			if err != nil {
				return err
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				if err := gw.DeleteObjective(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted objective #%d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(add, rename, rm)
	return cmd
}

func newActivityCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Manage activities of the open project",
	}

	var projectID, objectiveID int
	cmd.PersistentFlags().IntVarP(&projectID, "project", "p", 0, "Project ID (defaults to the open project)")

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an activity under an objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				a, err := gw.CreateActivity(ctx, objectiveID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added activity %s %s\n", formatter.Bold(a.Name), formatter.Dim(fmt.Sprintf("#%d", a.ID)))
				return nil
			})
		},
	}
	add.Flags().IntVarP(&objectiveID, "objective", "o", 0, "Parent objective ID")
	_ = add.MarkFlagRequired("objective")

	rename := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename an activity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("activity", args[0])
			if err != nil {
				return err
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				a, err := gw.RenameActivity(ctx, id, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed activity #%d to %s\n", a.ID, formatter.Bold(a.Name))
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an activity with its tasks, KPIs and budget",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("activity", args[0])
			if err != nil {
				return err
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				if err := gw.DeleteActivity(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted activity #%d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(add, rename, rm)
	return cmd
}

func parseOptionalDate(flag, s string) (*domain.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return &d, nil
}

func newTaskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks of the open project",
	}

	var projectID int
	cmd.PersistentFlags().IntVarP(&projectID, "project", "p", 0, "Project ID (defaults to the open project)")

	var (
		activityID, assigneeID int
		start, end             string
	)
	add := &cobra.Command{
		Use:   "add <description>",
		Short: "Add a task under an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := parseOptionalDate("start", start)
			if err != nil {
				return err
			}
			endDate, err := parseOptionalDate("end", end)
			if err != nil {
				return err
			}
			if startDate != nil && endDate != nil && endDate.In(time.UTC).Before(startDate.In(time.UTC)) {
				return errors.New("--end is before --start")
			}
			nt := api.NewTask{Description: args[0], ActivityID: activityID, StartDate: startDate, EndDate: endDate}
			if assigneeID > 0 {
				nt.AssigneeID = &assigneeID
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				t, err := gw.CreateTask(ctx, nt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added task %s %s\n", formatter.Bold(t.Description), formatter.Dim(fmt.Sprintf("#%d", t.ID)))
				return nil
			})
		},
	}
	add.Flags().IntVarP(&activityID, "activity", "a", 0, "Parent activity ID")
	add.Flags().IntVar(&assigneeID, "assignee", 0, "Assignee user ID")
	add.Flags().StringVar(&start, "start", "", "Start date (YYYY-MM-DD)")
	add.Flags().StringVar(&end, "end", "", "End date (YYYY-MM-DD)")
	_ = add.MarkFlagRequired("activity")

	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between Pending and Complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				t, err := gw.ToggleTask(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task #%d is now %s\n", t.ID, formatter.StatusPill(t.Status))
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task and its deliverables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			if _, err := openProject(cmd.Context(), app, projectID); err != nil {
				return err
			}
			t, ok := app.Session.Tree().Task(id)
			if !ok {
				return fmt.Errorf("task #%d is not in the open project", id)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTask(t, app.now()))
			return nil
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("task", args[0])
			if err != nil {
				return err
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				if err := gw.DeleteTask(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task #%d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(add, toggle, show, rm)
	return cmd
}

func newDeliverableCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deliverable",
		Short: "Submit proof of work for a task",
	}

	var (
		projectID, taskID int
		text, file        string
	)
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Submit a text note, a file, or both",
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" && file == "" {
				return errors.New("provide --text, --file or both")
			}
			d := api.NewDeliverable{TaskID: taskID, Text: text}
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open deliverable file: %w", err)
				}
				defer f.Close()
				d.File = f
				d.FileName = filepath.Base(file)
			}
			return withGateway(cmd, app, projectID, func(ctx context.Context, gw *gateway.Gateway) error {
				out, err := gw.SubmitDeliverable(ctx, d)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted deliverable #%d for task #%d\n", out.ID, taskID)
				return nil
			})
		},
	}
	projectFlag(submit, &projectID)
	submit.Flags().IntVarP(&taskID, "task", "t", 0, "Task ID")
	submit.Flags().StringVar(&text, "text", "", "Text content")
	submit.Flags().StringVar(&file, "file", "", "Path of a file to attach")
	_ = submit.MarkFlagRequired("task")

	cmd.AddCommand(submit)
	return cmd
}
