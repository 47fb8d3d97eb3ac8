/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the retention engine: runs the HTTP server and
  offers offline reports and policy catalog import against the same store.

COMMANDS:
  serve                 Start the HTTP API (and the alert scanner)
  report aging          Print aging buckets
  report summary        Print portfolio totals
  report alerts         Print derived alerts
  policies import -f    Import a YAML policy catalog
  policies presets      Print or save the built-in policies
  scenario load <id>    Reset the store and load a demo scenario

CONFIGURATION:
  --config points at a YAML file; RETENTION_* environment variables
  override it (see config package). database.path selects the store:
  a file path for SQLite, "memory" (or empty) for the in-memory store.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the alert scanner
  2. Stop accepting new connections
  3. Wait for active requests (server.shutdown_timeout)
  4. Close the store

EXAMPLES:
  # Serve with a config file
  retention serve --config retention.yaml

  # In-memory store with a demo scenario preloaded
  RETENTION_DATABASE_PATH=memory retention serve --scenario standard-portfolio

  # Aging report for one project
  retention report aging --project harbour-bridge

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/retention-engine/api"
	"github.com/warp/retention-engine/config"
	"github.com/warp/retention-engine/logging"
	"github.com/warp/retention-engine/retention"
	"github.com/warp/retention-engine/store/memory"
	"github.com/warp/retention-engine/store/sqlite"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "retention",
	Short: "Retention accounting engine",
	Long: `retention tracks money withheld from contractor invoices as security,
schedules its release and reports on what is still outstanding.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	serveCmd.Flags().String("scenario", "", "load a demo scenario before serving (resets the store)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(policiesCmd)
	rootCmd.AddCommand(scenarioCmd)
}

// =============================================================================
// SERVE
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.Close()

	logger := env.logger
	cfg := env.cfg

	handler := api.NewHandler(env.store, logger)
	handler.AlertOptions = alertOptions(cfg)

	if scenario, _ := cmd.Flags().GetString("scenario"); scenario != "" {
		if err := handler.LoadScenarioByID(cmd.Context(), scenario); err != nil {
			return err
		}
	}

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        cfg.Metrics.Enabled,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	scanner := api.NewAlertScanner(handler.Service, handler.AlertOptions, logger)
	scanner.Enabled = cfg.Alerts.Enabled
	scanner.Interval = cfg.Alerts.ScanInterval
	scanner.Start()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("database", cfg.Database.Path),
			zap.Bool("metrics", cfg.Metrics.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		scanner.Stop()
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	scanner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// environment bundles what every command needs.
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   api.Store
	service *retention.Service
	closers []func() error
}

func setup() (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	env := &environment{cfg: cfg, logger: logger}
	env.closers = append(env.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	if cfg.Database.UseMemoryStore() {
		env.store = memory.New()
	} else {
		store, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		env.store = store
		env.closers = append(env.closers, store.Close)
	}

	env.service = retention.NewService(env.store, logger)
	return env, nil
}

// Close releases resources in reverse order of acquisition.
func (e *environment) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("close failed", zap.Error(err))
		}
	}
}

func alertOptions(cfg *config.Config) retention.AlertOptions {
	return retention.AlertOptions{
		GracePeriodDays:    cfg.Alerts.GracePeriodDays,
		WarrantyNoticeDays: cfg.Alerts.WarrantyNoticeDays,
	}
}
