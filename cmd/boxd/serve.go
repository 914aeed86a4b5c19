package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/boxd/internal/application"
	"github.com/fyrsmithlabs/boxd/internal/config"
	"github.com/fyrsmithlabs/boxd/internal/dom"
	"github.com/fyrsmithlabs/boxd/internal/events"
	httpserver "github.com/fyrsmithlabs/boxd/internal/http"
	"github.com/fyrsmithlabs/boxd/internal/logging"
	"github.com/fyrsmithlabs/boxd/internal/modules"
	"github.com/fyrsmithlabs/boxd/internal/nav"
	"github.com/fyrsmithlabs/boxd/internal/services"
	"github.com/fyrsmithlabs/boxd/internal/telemetry"
)

type serveOptions struct {
	configPath   string
	documentPath string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the boxd daemon",
		Long: `Start the boxd daemon: parse the document, start a module for every
[data-module] element and serve the HTTP API until interrupted.

Examples:
  # Start with defaults
  boxd serve --document page.html

  # Start from a config file, reloading its global section on change
  boxd serve --config boxd.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (YAML or TOML)")
	cmd.Flags().StringVar(&opts.documentPath, "document", "", "HTML document (overrides document.path)")
	return cmd
}

// runServe starts boxd and blocks until ctx is cancelled.
//
// Startup order:
//  1. Configuration, telemetry and logger
//  2. Document, services, event bus and navigator
//  3. NATS relay (when enabled)
//  4. Application loop and modules
//  5. HTTP server and config watcher
func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.documentPath != "" {
		cfg.Document.Path = opts.documentPath
	}
	if cfg.Document.Path == "" {
		return errors.New("no document given: use --document or document.path")
	}

	telCfg := telemetry.NewDefaultConfig()
	telCfg.ServiceVersion = version
	if err := cfg.Section("telemetry", telCfg); err != nil {
		return err
	}
	tel, err := telemetry.New(ctx, telCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	if err := cfg.Section("logging", logCfg); err != nil {
		return err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()
	tel.SetLogger(logger.Underlying())
	if logCfg.Output.OTEL && tel.LoggerProvider() == nil {
		logger.Warn(ctx, "logging.output.otel is set but log export is off; enable telemetry and telemetry.logs")
	}

	logger.Info(ctx, "starting boxd",
		zap.String("version", version),
		zap.String("config", cfg.Path),
		zap.String("document", cfg.Document.Path),
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("debug", cfg.App.Debug))

	doc, err := dom.ParseFile(cfg.Document.Path)
	if err != nil {
		return err
	}

	registry := services.NewRegistry()
	if err := registry.Provide(modules.LoggerService, logger); err != nil {
		return err
	}
	bus := events.NewBus(logger.Underlying())

	base, err := url.Parse(cfg.Navigation.Base)
	if err != nil {
		return fmt.Errorf("invalid navigation base: %w", err)
	}
	navigator := nav.New(nav.Options{
		Base:         base,
		AllowedHosts: cfg.Navigation.AllowedHosts,
		MaxHistory:   cfg.Navigation.MaxHistory,
	})

	app, err := application.New(application.Options{
		Document:  doc,
		Global:    cfg.Global,
		Services:  registry,
		Bus:       bus,
		Navigator: navigator,
		Logger:    logger,
		Metrics:   application.NewMetrics(prometheus.DefaultRegisterer),
		Tracer:    tel.Tracer("github.com/fyrsmithlabs/boxd/internal/application"),
		Debug:     cfg.App.Debug,
	})
	if err != nil {
		return err
	}
	if err := modules.Register(app); err != nil {
		return err
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- app.Run(loopCtx)
	}()

	relay, err := startRelay(loopCtx, cfg.Events.NATS, app, bus, logger)
	if err != nil {
		return err
	}
	defer relay.Close()

	if err := app.Do(ctx, func() error { return app.Init(ctx) }); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}
	logger.Info(ctx, "modules started", zap.Int("instances", len(app.Instances())))

	srv, err := httpserver.NewServer(app, logger.Underlying(), &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RateLimit:      cfg.Server.RateLimit,
		Burst:          cfg.Server.Burst,
		Gatherer:       prometheus.DefaultGatherer,
		MeterProvider:  tel.MeterProvider(),
		TracerProvider: tel.TracerProvider(),
	})
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.Path != "" {
		go func() {
			err := config.Watch(ctx, cfg.Path, logger.Underlying(), func(next *config.Config) {
				err := app.Do(ctx, func() error {
					app.SetGlobalConfig(next.Global)
					return nil
				})
				if err != nil {
					logger.Warn(ctx, "global config not applied", zap.Error(err))
				}
			})
			if err != nil {
				logger.Warn(ctx, "config watcher stopped", zap.Error(err))
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown requested")
	case runErr = <-serveErr:
		logger.Error(context.Background(), "http server failed", zap.Error(runErr))
	case runErr = <-loopDone:
		if runErr == nil {
			runErr = application.ErrStopped
		}
		logger.Error(context.Background(), "application loop exited", zap.Error(runErr))
	}

	return errors.Join(runErr, shutdown(cfg.Server.ShutdownTimeout.Duration(), srv, app, tel, logger))
}

// shutdown stops the HTTP server, destroys every module on the loop and
// flushes telemetry, all within timeout.
func shutdown(timeout time.Duration, srv *httpserver.Server, app *application.Application, tel *telemetry.Telemetry, logger *logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	err := app.Do(ctx, func() error { return app.Destroy(ctx) })
	if err != nil && !errors.Is(err, application.ErrStopped) {
		errs = append(errs, fmt.Errorf("module shutdown: %w", err))
	}
	if err := tel.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}

	logger.Info(ctx, "boxd stopped")
	return errors.Join(errs...)
}

// natsRelay owns the connection and subscription backing the relay.
type natsRelay struct {
	conn *nats.Conn
	sub  *nats.Subscription
}

// Close unsubscribes and drains the connection. Safe on a nil relay.
func (r *natsRelay) Close() {
	if r == nil {
		return
	}
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	if r.conn != nil {
		_ = r.conn.Drain()
	}
}

// startRelay connects to NATS and bridges the bus with peers. Inbound
// messages enter the application through its loop. Returns nil when the
// relay is disabled.
func startRelay(ctx context.Context, cfg config.NATSConfig, app *application.Application, bus *events.Bus, logger *logging.Logger) (*natsRelay, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("boxd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	relay, err := events.NewNATSRelay(nc, events.RelayConfig{
		SubjectPrefix: cfg.SubjectPrefix,
		RateLimit:     cfg.RateLimit,
		Burst:         cfg.Burst,
	}, logger.Underlying())
	if err != nil {
		nc.Close()
		return nil, err
	}

	sub, err := relay.Listen(func(env events.Envelope) {
		err := app.Do(ctx, func() error {
			app.Receive(env.Name, env.Data)
			return nil
		})
		if err != nil {
			logger.Warn(ctx, "relayed message dropped",
				zap.String("message", env.Name),
				zap.String("source", env.Source),
				zap.Error(err))
		}
	})
	if err != nil {
		nc.Close()
		return nil, err
	}
	bus.AddRelay(relay)

	logger.Info(ctx, "nats relay connected",
		zap.String("url", cfg.URL),
		zap.String("source", relay.Source()))
	return &natsRelay{conn: nc, sub: sub}, nil
}
