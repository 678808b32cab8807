package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/backupvault/internal/activity"
	"github.com/edvin/backupvault/internal/config"
	"github.com/edvin/backupvault/internal/core"
	"github.com/edvin/backupvault/internal/db"
	"github.com/edvin/backupvault/internal/exporter"
	"github.com/edvin/backupvault/internal/logging"
	"github.com/edvin/backupvault/internal/metrics"
	"github.com/edvin/backupvault/internal/storage"
	"github.com/edvin/backupvault/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool)

	tc, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	key := cfg.Key()
	services := core.NewServices(pool, core.Deps{
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
		// The worker only runs jobs; it never creates or dispatches them.
		Logger: logger,
	})

	w := worker.New(tc, cfg.TemporalTaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.WorkerConcurrency,
		Interceptors:                       []interceptor.WorkerInterceptor{&workflow.ErrorTypingInterceptor{}},
	})

	w.RegisterActivity(activity.NewBackup(services.Backup))
	w.RegisterWorkflow(workflow.ProcessBackupWorkflow)

	if cfg.MetricsListenAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsListenAddr, func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			_, err := tc.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
			return err
		})
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	logger.Info().Str("taskQueue", cfg.TemporalTaskQueue).Msg("starting temporal worker")
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal().Err(err).Msg("worker failed")
	}
	logger.Info().Msg("worker stopped")
}
