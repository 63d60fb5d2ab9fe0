package main

import (
	"context"
	"errors"
	"os"
	"time"

	"taskboard/internal/amqp"
	"taskboard/internal/backend"
	"taskboard/internal/cli"
	"taskboard/internal/log"
	"taskboard/internal/ports"
	"taskboard/internal/services"
	gsheet "taskboard/internal/sheets/google"
	"taskboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting taskboard-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	// The worker consumes events; it never publishes them.
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	backendCfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Cleanup()

	var exporter ports.StatsExporter
	if cfg.SheetsEnabled() {
		sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			StatsSheet:      cfg.GoogleStatsSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			OAuthClientJSON: cfg.GoogleOAuthClientJSON,
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = sheetsClient
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	// Reports are always computed fresh here, so no cache.
	stats := services.NewStatsService(res.Backend, nil, services.StatsConfig{Location: cfg.Location()})
	statsWorker := worker.NewStatsWorker(stats, res.Backend, exporter, worker.Config{
		Interval: cfg.SnapshotInterval,
	})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := statsWorker.Stop(ctx); err != nil {
			logger.Error("Failed to stop stats worker", log.FieldError, err)
		}
	})

	if err := statsWorker.Start(ctx); err != nil {
		logger.Error("Failed to start stats worker", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			if err := amqpClient.ConsumeTodoEvents(ctx, statsWorker.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP consumption - no AMQP_URL provided, refreshing on interval only")
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
