package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/backupvault/internal/api"
	"github.com/edvin/backupvault/internal/config"
	"github.com/edvin/backupvault/internal/core"
	"github.com/edvin/backupvault/internal/db"
	"github.com/edvin/backupvault/internal/exporter"
	"github.com/edvin/backupvault/internal/logging"
	"github.com/edvin/backupvault/internal/metrics"
	"github.com/edvin/backupvault/internal/payment"
	"github.com/edvin/backupvault/internal/storage"
	"github.com/edvin/backupvault/internal/worker"
	"github.com/edvin/backupvault/internal/workflow"
)

// staleAfter is how long a job may sit in_progress before startup reports it.
const staleAfter = time.Hour

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool)

	key := cfg.Key()
	deps := core.Deps{
		Exporters: exporter.NewRegistry(exporter.Options{
			NotionBaseURL: cfg.NotionAPIURL,
			TrelloBaseURL: cfg.TrelloAPIURL,
			TrelloAPIKey:  cfg.TrelloAPIKey,
			Timeout:       cfg.ExportTimeout,
			Concurrency:   cfg.ExportConcurrency,
			Key:           key,
		}),
		Uploader: storage.NewUploader(key, storage.NewProviders(storage.Options{
			DropboxContentURL: cfg.DropboxContentURL,
			GoogleUploadURL:   cfg.GoogleUploadURL,
			GraphAPIURL:       cfg.GraphAPIURL,
			BackblazeEndpoint: cfg.BackblazeS3Endpoint,
			BackblazeRegion:   cfg.BackblazeRegion,
			Timeout:           cfg.UploadTimeout,
		})),
		Payments: payment.NewClient(cfg.MollieAPIURL, cfg.MollieAPIKey),
		Logger:   logger,
	}
	if cfg.MollieAPIKey == "" {
		logger.Warn().Msg("MOLLIE_API_KEY is not set; payment webhooks will fail")
	}
	if cfg.BackblazeS3Endpoint == "" {
		logger.Warn().Msg("BACKBLAZE_S3_ENDPOINT is not set; backblaze backups will fail as not supported")
	}

	var (
		tc       temporalclient.Client
		jobsPool *worker.Pool
	)
	switch cfg.Dispatcher {
	case "temporal":
		tc, err = temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to temporal")
		}
		defer tc.Close()
		deps.Dispatcher = workflow.NewDispatcher(tc, cfg.TemporalTaskQueue)
	default:
		jobsPool = worker.NewPool(logger, cfg.WorkerConcurrency, cfg.WorkerConcurrency*64)
		deps.Dispatcher = jobsPool
	}

	services := core.NewServices(pool, deps)
	if jobsPool != nil {
		jobsPool.Start(ctx, services.Backup.Process)
	}

	reportStaleJobs(ctx, services.Backup, logger)

	srv := api.NewServer(logger, services, pool, tc, cfg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Str("dispatcher", cfg.Dispatcher).Msg("starting API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	// Queued jobs still run to a terminal state before the process exits.
	if jobsPool != nil {
		logger.Info().Msg("draining backup queue")
		jobsPool.Stop()
	}
}

// reportStaleJobs logs jobs left in_progress by an earlier process. They are
// not resumed.
func reportStaleJobs(ctx context.Context, backups *core.BackupService, logger zerolog.Logger) {
	stale, err := backups.ListStale(ctx, staleAfter)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list stale backups")
		return
	}
	for _, b := range stale {
		event := logger.Warn().Str("backup_id", b.ID)
		if b.StartedAt != nil {
			event = event.Time("started_at", *b.StartedAt)
		}
		event.Msg("backup stuck in_progress")
	}
}
