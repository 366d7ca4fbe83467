/*
main.go - Application entry point

PURPOSE:
  Starts the solar credit ledger server. Handles configuration, dependency
  wiring, and graceful shutdown.

COMMANDS:
  serve     Run the HTTP API and the finalization recovery scheduler
  migrate   Create or upgrade the SQLite schema and exit
  token     Issue a signed bearer token for a caller (needs jwt_secret)

STARTUP SEQUENCE (serve):
  1. Load config (defaults, YAML file, environment, flags)
  2. Build the zap logger
  3. Open the SQLite store and register metrics
  4. Build the energy ledger, ownership registry, credit services and
     maintenance fund
  5. Start the recovery scheduler
  6. Start the HTTP server with graceful shutdown

FLAGS:
  --config   YAML config path (default: $SOLAR_CONFIG)
  --addr     HTTP listen address (overrides http_addr)
  --db       SQLite database path (overrides db_path)
             Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running sweep)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server serve --db ./data/solar.db
  ./server serve --config solar.yaml --addr :3000
  ./server token ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM --ttl 24h

SEE ALSO:
  - config/config.go: Configuration keys and environment variables
  - api/server.go: Router configuration
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
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/solar-credits/api"
	"github.com/warp/solar-credits/auth"
	"github.com/warp/solar-credits/calendar"
	"github.com/warp/solar-credits/config"
	"github.com/warp/solar-credits/credit"
	"github.com/warp/solar-credits/energy"
	"github.com/warp/solar-credits/logging"
	"github.com/warp/solar-credits/maintenance"
	"github.com/warp/solar-credits/metrics"
	"github.com/warp/solar-credits/ownership"
	"github.com/warp/solar-credits/store/sqlite"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "server",
		Short:         "Solar cooperative credit ledger",
		Version:       readVersionFromEnv(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config path")
	root.AddCommand(newServeCmd(&configPath), newMigrateCmd(&configPath), newTokenCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	var addr, dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the recovery scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTPAddr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	return cmd
}

func newMigrateCmd(configPath *string) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			store, err := sqlite.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("migrate failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema ready in %s\n", cfg.DBPath)
			return store.Close()
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	return cmd
}

func newTokenCmd(configPath *string) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <caller>",
		Short: "Issue a bearer token for caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(args[0], []byte(cfg.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

// =============================================================================
// SERVE
// =============================================================================

func runServe(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()
	metrics.Init(store.DB())

	clock := calendar.SystemClock{}
	services, err := buildServices(ctx, cfg, store, clock, logger)
	if err != nil {
		return err
	}

	scheduler := api.NewRecoveryScheduler(services.Finalizer, credit.Caller(cfg.ContractOwner), clock, logger.Named("recovery"))
	if err := scheduler.Start(cfg.RecoverySchedule); err != nil {
		return err
	}
	defer scheduler.Stop()

	handler := api.NewHandler(services, clock, logger.Named("api"))
	if cfg.Demo {
		handler.WithResetter(store)
		logger.Warn("demo mode: scenario loading resets the database")
	}
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(handler, api.RouterConfig{
			JWTSecret: []byte(cfg.JWTSecret),
			DB:        store,
			Logger:    logger.Named("http"),
			Scenarios: cfg.Demo,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("db", cfg.DBPath),
			zap.Bool("jwt", cfg.JWTSecret != ""))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildServices wires the domain services onto store.
func buildServices(ctx context.Context, cfg config.Config, store *sqlite.Store, clock calendar.Clock, logger *zap.Logger) (api.Services, error) {
	owner := cfg.ContractOwner

	opts := []credit.Option{credit.WithClock(clock), credit.WithLogger(logger.Named("credit"))}
	if owner != "" {
		opts = append(opts, credit.WithAuthorizer(credit.OwnerAuthorizer{ContractOwner: credit.Caller(owner)}))
	} else {
		logger.Warn("contract_owner not set; every caller may administer periods")
	}

	ledger := energy.NewLedger(store, clock, logger.Named("energy"))
	registry := ownership.NewRegistry(store, owner, logger.Named("ownership"))
	periods := credit.NewPeriods(store, ledger, opts...)
	fund := maintenance.NewFund(store, owner, clock, logger.Named("maintenance"))

	rate, err := fund.ContributionRate(ctx)
	if err != nil {
		return api.Services{}, err
	}
	if rate != cfg.ContributionRate {
		if err := fund.UpdateContributionRate(ctx, owner, cfg.ContributionRate); err != nil {
			return api.Services{}, fmt.Errorf("failed to apply contribution rate: %w", err)
		}
	}

	return api.Services{
		Periods:   periods,
		Engine:    credit.NewEngine(store, registry, opts...),
		Finalizer: credit.NewFinalizer(store, periods, opts...),
		Ledger:    ledger,
		Registry:  registry,
		Fund:      fund,
	}, nil
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
