package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/cli/formatter"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// passwordEnv lets scripts log in without a prompt or a visible flag.
const passwordEnv = "ORCHID_PASSWORD"

// roleFlag parses --role as it is set, so an unknown role fails before any
// prompt is shown.
type roleFlag domain.Role

var _ pflag.Value = (*roleFlag)(nil)

func (r *roleFlag) String() string { return string(*r) }

func (r *roleFlag) Set(s string) error {
	role, err := domain.ParseRole(s)
	if err != nil {
		return err
	}
	*r = roleFlag(role)
	return nil
}

func (r *roleFlag) Type() string { return "role" }

func resolveCredentials(app *App, email, password *string) error {
	if *password == "" {
		*password = os.Getenv(passwordEnv)
	}
	if *email != "" && *password != "" {
		return nil
	}
	if !app.interactive() {
		return errors.New("email and password are required (use --email and --password or " + passwordEnv + ")")
	}
	return credentialsForm(email, password).Run()
}

func newLoginCmd(app *App) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveCredentials(app, &email, &password); err != nil {
				return err
			}
			u, err := app.Session.Login(cmd.Context(), email, password)
			if err != nil {
				var ae *api.AuthError
				if errors.As(err, &ae) {
					return errors.New("incorrect email or password")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", formatter.FormatUser(u))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	return cmd
}

func newSignupCmd(app *App) *cobra.Command {
	var (
		email, password string
		role            roleFlag
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveCredentials(app, &email, &password); err != nil {
				return err
			}
			if role == "" {
				if !app.interactive() {
					return errors.New("--role is required")
				}
				picked := domain.RoleFieldOfficer
				if err := roleSelectForm(&picked).Run(); err != nil {
					return err
				}
				role = roleFlag(picked)
			}

			u, err := app.Session.Client().Signup(cmd.Context(), api.NewUser{Email: email, Password: password, Role: domain.Role(role)})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created account %s\n", formatter.FormatUser(u))
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("Run `orchid login` to start a session."))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	cmd.Flags().VarP(&role, "role", "r", "Role: field-officer, monitoring-officer or project-manager")
	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session and notice log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := requireUser(app)
			if err != nil {
				return err
			}
			if remote {
				if u, err = app.Session.Client().Me(cmd.Context()); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatter.FormatUser(u))
			if id, ok := app.Session.ActiveProjectID(); ok {
				fmt.Fprintf(out, "%s %d\n", formatter.Dim("open project:"), id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "check", false, "Ask the backend instead of the stored session")
	return cmd
}

func newUsersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireUser(app); err != nil {
				return err
			}
			users, err := app.Session.Client().ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatUsers(users))
			return nil
		},
	}
}
