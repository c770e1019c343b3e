package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/authz"
	"github.com/orchidnexus/orchid/internal/clock"
	"github.com/orchidnexus/orchid/internal/config"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/gateway"
	"github.com/orchidnexus/orchid/internal/notify"
	"github.com/orchidnexus/orchid/internal/session"
	"github.com/orchidnexus/orchid/internal/tree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// App holds everything the commands need. One-shot commands never open a
// push channel; watch attaches Subscriber to the session first.
type App struct {
	Session *session.Session
	Config  config.Config
	Logger  *zap.Logger
	Clock   clock.Clock

	// Subscriber is nil when live updates are disabled.
	Subscriber notify.Subscriber
	// Gatherer backs the watch --metrics-addr endpoint.
	Gatherer prometheus.Gatherer

	// IsInteractive reports whether stdin is a terminal. Prompts are only
	// shown when it returns true.
	IsInteractive func() bool
}

func (app *App) now() time.Time {
	if app.Clock == nil {
		return time.Now()
	}
	return app.Clock.Now()
}

func (app *App) interactive() bool {
	return app.IsInteractive != nil && app.IsInteractive()
}

// NewRootCmd creates the top-level "orchid" command and registers all
// subcommands against app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "orchid",
		Short:         "Program monitoring client: projects, KPIs, budgets and inventory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLoginCmd(app),
		newSignupCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newUsersCmd(app),
		newProjectCmd(app),
		newObjectiveCmd(app),
		newActivityCmd(app),
		newTaskCmd(app),
		newDeliverableCmd(app),
		newKPICmd(app),
		newBudgetCmd(app),
		newExpenseCmd(app),
		newInventoryCmd(app),
		newItemCmd(app),
		newLocationCmd(app),
		newNoticesCmd(app),
		newExportCmd(app),
		newWatchCmd(app),
	)

	return root
}

// ErrorMessage turns a command error into the line shown to the user.
// Backend errors are reduced to the server detail or a fixed message.
func ErrorMessage(err error) string {
	var (
		ae *api.AuthError
		ve *api.ValidationError
		ne *api.NetworkError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae), errors.As(err, &ve), errors.As(err, &ne):
		return api.UserMessage(err)
	case errors.Is(err, session.ErrNotLoggedIn):
		return "not logged in, run `orchid login` first"
	case errors.Is(err, tree.ErrNoActiveProject):
		return "no project open, run `orchid project open <id>` first"
	case errors.Is(err, authz.ErrForbidden):
		var fe *authz.ForbiddenError
		if errors.As(err, &fe) {
			return fmt.Sprintf("your role (%s) may not do that", fe.Role)
		}
		return "your role may not do that"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return err.Error()
}

func requireUser(app *App) (domain.User, error) {
	u, ok := app.Session.User()
	if !ok {
		return domain.User{}, session.ErrNotLoggedIn
	}
	return u, nil
}

// openProject loads the project named by id, or the last opened project
// when id is 0.
func openProject(ctx context.Context, app *App, id int) (domain.Project, error) {
	if _, err := requireUser(app); err != nil {
		return domain.Project{}, err
	}
	if id == 0 {
		active, ok := app.Session.ActiveProjectID()
		if !ok {
			return domain.Project{}, tree.ErrNoActiveProject
		}
		id = active
	}
	return app.Session.SelectProject(ctx, id)
}

// withGateway opens the active project and hands its gateway to fn.
func withGateway(cmd *cobra.Command, app *App, projectID int, fn func(ctx context.Context, gw *gateway.Gateway) error) error {
	ctx := cmd.Context()
	if _, err := openProject(ctx, app, projectID); err != nil {
		return err
	}
	gw, err := app.Session.Gateway()
	if err != nil {
		return err
	}
	return fn(ctx, gw)
}

func projectFlag(cmd *cobra.Command, target *int) {
	cmd.Flags().IntVarP(target, "project", "p", 0, "Project ID (defaults to the open project)")
}
