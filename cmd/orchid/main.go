package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/cli"
	"github.com/orchidnexus/orchid/internal/clock"
	"github.com/orchidnexus/orchid/internal/config"
	"github.com/orchidnexus/orchid/internal/db"
	"github.com/orchidnexus/orchid/internal/logging"
	"github.com/orchidnexus/orchid/internal/metrics"
	"github.com/orchidnexus/orchid/internal/notify"
	"github.com/orchidnexus/orchid/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cli.ErrorMessage(err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "orchid")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client := api.New(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.Timeout()}, logger)

	sess := session.New(session.Deps{
		Client:  client,
		DB:      database,
		Clock:   clock.Real(),
		Logger:  logger,
		Metrics: m,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := sess.Restore(ctx); err != nil && !errors.Is(err, session.ErrNotLoggedIn) {
		return err
	}

	app := &cli.App{
		Session:  sess,
		Config:   cfg,
		Logger:   logger,
		Clock:    clock.Real(),
		Gatherer: reg,
	}
	if cfg.Live {
		app.Subscriber = newSubscriber(cfg, client, logger)
	}

	// Prompts only run against a real terminal.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	return cli.NewRootCmd(app).ExecuteContext(ctx)
}

func newSubscriber(cfg config.Config, client *api.Client, logger *zap.Logger) notify.Subscriber {
	if cfg.PushTransport == config.TransportMQTT {
		return &notify.MQTTSubscriber{
			Config: notify.MQTTConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
			},
			Logger: logger,
		}
	}
	return &notify.WebsocketSubscriber{BaseURL: cfg.EffectivePushURL(), Token: client.Token}
}
