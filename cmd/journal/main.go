// Command journal follows one OANDA account's transactions and journals them
// into PostgreSQL.
//
// The transaction stream feeds every id it sees into a txid.Hub. A reconciler
// subscribed to the hub fetches any id range not yet journaled, so gaps left by
// a dropped stream are filled from REST history.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/moznion/go-optional"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/oanda-data/internal/api"
	"github.com/rickgao/oanda-data/internal/config"
	"github.com/rickgao/oanda-data/internal/database"
	"github.com/rickgao/oanda-data/internal/logging"
	"github.com/rickgao/oanda-data/internal/metrics"
	"github.com/rickgao/oanda-data/internal/reconcile"
	"github.com/rickgao/oanda-data/internal/txid"
	"github.com/rickgao/oanda-data/internal/version"
	"github.com/rickgao/oanda-data/internal/writer"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cmd := &cli.Command{
		Name:    "journal",
		Usage:   "Journal an OANDA account's transactions into PostgreSQL",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Value:   "configs/journal.yaml",
				Sources: cli.EnvVars("OANDA_JOURNAL_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file loaded before the config",
				Value: ".env",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "journal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if err := godotenv.Load(cmd.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.LoadAndValidate(cmd.String("config"))
	if err != nil {
		return err
	}

	logger, syncLogs, err := logging.New(cfg.Logging.Level, cfg.Logging.Production)
	if err != nil {
		return err
	}
	defer syncLogs()
	slog.SetDefault(logger)

	logger.Info("starting journal",
		"version", version.Version,
		"commit", version.Commit,
		"account", cfg.API.AccountID,
		"api_url", cfg.API.RestURL,
		"transport", cfg.API.StreamTransport,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	hub := txid.NewHub(
		txid.WithBufferSize(cfg.Hub.SubscriberBuffer, cfg.Hub.MaxBuffer),
		txid.WithLogger(logger),
		txid.WithMetrics(m),
	)

	client := api.NewClient(cfg.API.RestURL, cfg.API.Token, cfg.API.AccountID,
		api.WithStreamURL(cfg.API.StreamURL),
		api.WithTimeout(cfg.API.Timeout),
		api.WithLogger(logger),
		api.WithHub(hub),
		api.WithMetrics(m),
	)

	logger.Info("connecting to database",
		"host", cfg.Database.Archive.Host,
		"port", cfg.Database.Archive.Port,
		"database", cfg.Database.Archive.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database.Archive)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := writer.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	startID, err := resumePoint(ctx, cfg, pool)
	if err != nil {
		return err
	}
	logger.Info("resuming journal", "after_id", startID.TakeOr("(first heard)"))

	filters, err := cfg.Journal.Filters()
	if err != nil {
		return err
	}

	w := writer.NewTransactionWriter(writer.WriterConfig{
		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval,
	}, pool, m, logger)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start writer: %w", err)
	}

	rec := reconcile.New(reconcile.Config{
		Interval: cfg.Journal.ReconcileInterval,
		Timeout:  cfg.Journal.ReconcileTimeout,
		Types:    filters,
		StartID:  startID,
	}, client, hub, w, logger)
	if err := rec.Start(ctx); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHealthHandler(pool, hub, rec, w, reg, cfg.Metrics.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return followTransactions(gctx, client, newOpener(cfg, client, logger), logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := rec.Stop(shutdownCtx); err != nil {
		logger.Warn("reconciler stop", "error", err)
	}
	if err := w.Stop(shutdownCtx); err != nil {
		logger.Error("writer stop", "error", err)
	}

	stats := w.Stats()
	logger.Info("journal stopped",
		"inserted", stats.Inserts,
		"conflicts", stats.Conflicts,
		"last_id", rec.LastID().TakeOr(""),
	)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// resumePoint picks the last id already journaled. A configured start_id wins
// over the database.
func resumePoint(ctx context.Context, cfg *config.Config, db writer.DB) (optional.Option[string], error) {
	if cfg.Journal.StartID != "" {
		return optional.Some(cfg.Journal.StartID), nil
	}
	return writer.LastJournaledID(ctx, db, cfg.API.AccountID)
}
