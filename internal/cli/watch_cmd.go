package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/orchidnexus/orchid/internal/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(app *App) *cobra.Command {
	var (
		projectID   int
		expr        string
		mine        bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the open project live (r refresh, d dismiss, q quit)",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := treeFilter(expr, mine)
			if err != nil {
				return err
			}
			if _, err := requireUser(app); err != nil {
				return err
			}
			ctx := cmd.Context()

			if metricsAddr != "" {
				stop, err := serveMetrics(metricsAddr, app.Gatherer, app.Logger)
				if err != nil {
					return err
				}
				defer stop()
			}

			events := newWatchEvents()
			unhook := hookSession(app, events)
			defer func() {
				unhook()
				events.close()
				app.Session.Leave()
			}()

			if app.Config.Live && app.Subscriber != nil {
				app.Session.SetSubscriber(app.Subscriber)
			}
			p, err := openProject(ctx, app, projectID)
			if err != nil {
				return err
			}

			prog := tea.NewProgram(newWatchModel(app, p, f, events),
				tea.WithContext(ctx),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)
			final, err := prog.Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("watch: %w", err)
			}
			if m, ok := final.(watchModel); ok && m.expired != nil {
				return &api.AuthError{Op: "watch", Detail: m.expired.Error()}
			}
			return nil
		},
	}

	projectFlag(cmd, &projectID)
	cmd.Flags().StringVarP(&expr, "filter", "f", "", "Task filter expression")
	cmd.Flags().BoolVar(&mine, "mine", false, "Only tasks assigned to me")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", app.Config.MetricsAddr, "Serve prometheus metrics on this address while watching")
	return cmd
}

// hookSession routes session callbacks into events and returns a func that
// removes them again.
func hookSession(app *App, events *watchEvents) func() {
	s := app.Session
	s.Tree().OnChange(func() { events.nudge(treeChangedMsg{}) })
	s.Board().OnChange(func() { events.nudge(noticeMsg{}) })
	s.OnDisconnect(func(err error) { events.post(disconnectedMsg{err: err}) })
	s.OnExpire(func(err error) { events.post(expiredMsg{err: err}) })
	return func() {
		s.Tree().OnChange(nil)
		s.Board().OnChange(nil)
		s.OnDisconnect(nil)
		s.OnExpire(nil)
	}
}

// serveMetrics exposes g on addr until the returned stop func is called.
func serveMetrics(addr string, g prometheus.Gatherer, logger *zap.Logger) (func(), error) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && logger != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	if logger != nil {
		logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
