// Package cmd wires configuration, storage and services into the
// property-scraper command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"property-scraper/config"
	"property-scraper/metrics"
	"property-scraper/scraper"
	"property-scraper/services"
	"property-scraper/storage"
	"property-scraper/utils"
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:           "property-scraper",
	Short:         "Incremental property listing crawler",
	Long:          `Discovers fresh listings per city, stores their cleaned HTML and upserts parsed properties into PostgreSQL.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "property-scraper: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// app holds what every subcommand shares.
type app struct {
	cfg    *config.Config
	logger *utils.Logger
	db     *storage.Postgres
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := utils.NewLogger(utils.LogOptions{Level: cfg.LogLevel, File: cfg.LogFile}).
		With("run_id", uuid.NewString())

	db, err := storage.NewPostgres(ctx, cfg.DSN(), logger)
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("[metrics] %v", err)
			}
		}()
		logger.Info("[metrics] serving /metrics on %s", cfg.MetricsAddr)
	}

	return &app{cfg: cfg, logger: logger, db: db}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Warn("[postgres] close: %v", err)
	}
	a.logger.Sync()
}

func (a *app) fetcher() *scraper.Fetcher {
	limiter := utils.NewLimiter(a.cfg.MaxConcurrency, a.cfg.RateLimit())
	return scraper.NewFetcher(limiter, scraper.FetcherOptions{
		Timeout:     a.cfg.RequestTimeout,
		UserAgent:   a.cfg.UserAgent,
		MaxAttempts: a.cfg.MaxRetries,
		BaseDelay:   a.cfg.RetryBaseDelay,
	}, a.logger)
}

func (a *app) stageOptions(stage string) services.StageOptions {
	return services.StageOptions{
		BatchSize:    a.cfg.BatchSize,
		Parallelism:  a.cfg.MaxConcurrency,
		MaxFailures:  a.cfg.MaxBatchFailures,
		BatchTimeout: a.cfg.BatchTimeout,
		TxRetry: &utils.RetryConfig{
			MaxAttempts: a.cfg.MaxRetries,
			BaseDelay:   a.cfg.RetryBaseDelay,
			Logger:      a.logger.With("stage", stage),
		},
	}
}

// withApp adapts a subcommand body to cobra, handling setup and teardown.
func withApp(fn func(ctx context.Context, a *app, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, cmd)
	}
}
