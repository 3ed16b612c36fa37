package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/prism-dashboard-go/internal/api"
	"github.com/irfndi/prism-dashboard-go/internal/config"
	"github.com/irfndi/prism-dashboard-go/internal/database"
	"github.com/irfndi/prism-dashboard-go/internal/ingest"
	"github.com/irfndi/prism-dashboard-go/internal/metrics"
	"github.com/irfndi/prism-dashboard-go/internal/render"
	"github.com/irfndi/prism-dashboard-go/internal/telemetry"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

type serveOptions struct {
	port      int
	migrate   bool
	warmCache bool
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(commandContext(cmd), global, opts)
		},
	}
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port, overrides server.port")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "apply database migrations before serving")
	cmd.Flags().BoolVar(&opts.warmCache, "warm-cache", true, "precompute every category before serving")
	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions) error {
	return serve(commandContext(cmd), global, &serveOptions{migrate: true, warmCache: true})
}

func serve(ctx context.Context, global *globalOptions, opts *serveOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := newLogger(cfg, os.Stdout)
	serviceName := cfg.Telemetry.ServiceName
	version := cfg.Telemetry.ServiceVersion

	provider, err := telemetry.InitTelemetryWithProvider(ctx, telemetry.FromConfig(cfg.Telemetry, cfg.Environment), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to shutdown telemetry")
		}
	}()

	logExport, err := telemetry.InitLogExport(ctx, telemetry.FromConfig(cfg.Telemetry, cfg.Environment), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize log export: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := logExport.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Failed to flush exported logs")
		}
	}()

	collector := metrics.NewCollector(serviceName)

	comps, err := openComponents(ctx, cfg, logger, collector)
	if err != nil {
		return err
	}
	defer comps.Close()

	if opts.migrate {
		if err := database.Migrate(ctx, comps.db.Pool); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.WithComponent("database").Info("Migrations applied")
	}

	if opts.warmCache {
		if warmed, err := comps.dashboard.WarmCache(ctx); err != nil {
			logger.WithError(err).Warn("Cache warming failed")
		} else {
			logger.WithField("categories", warmed).Info("Cache warmed")
		}
	}

	var subscriber *ingest.Subscriber
	if cfg.MQTT.Enabled {
		subscriber = ingest.NewSubscriber(cfg.MQTT, comps.dashboard, logger)
		if err := subscriber.Start(); err != nil {
			return fmt.Errorf("failed to start mqtt ingest: %w", err)
		}
		defer subscriber.Stop()
	}

	dbChecker, cacheChecker := comps.healthCheckers()
	router := api.NewRouter(api.Dependencies{
		Config:    cfg,
		DB:        dbChecker,
		Cache:     cacheChecker,
		Dashboard: comps.dashboard,
		Users:     comps.users,
		Metrics:   collector,
		Renderer:  render.NewChartRenderer(),
		Logger:    logger,
	})

	srv := newHTTPServer(cfg, router)

	serveErr := make(chan error, 1)
	go func() {
		logger.LogStartup(serviceName, version, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	reason := "signal received"
	select {
	case sig := <-quit:
		reason = fmt.Sprintf("signal %s received", sig)
	case <-ctx.Done():
		reason = "context cancelled"
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
	}
	logger.LogShutdown(serviceName, reason)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	comps.results.LogStats()
	if subscriber != nil {
		stats := subscriber.Stats()
		logger.WithComponent("ingest").WithField("received", stats.Received).
			WithField("stored", stats.Stored).
			WithField("rejected", stats.Rejected).
			WithField("failed", stats.Failed).
			Info("MQTT ingest summary")
	}
	logger.Info("Server exited gracefully")
	return nil
}

// newHTTPServer wraps handler with the listen address and timeouts. The
// write timeout leaves room for rendering large uploads.
func newHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}
}
