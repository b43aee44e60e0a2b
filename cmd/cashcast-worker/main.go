package main

import (
	"context"
	"errors"
	"os"
	"time"

	"cashcast/internal/amqp"
	"cashcast/internal/cli"
	"cashcast/internal/log"
	"cashcast/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)
	logger.Info("Starting cashcast-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	capability := cli.DetectRuntime(logger, cfg.MLEnabled)

	// The worker never forecasts, so it needs neither a payload cache nor a publisher.
	svc := cli.NewForecastService(cfg, repo, capability, nil, nil, logger)
	trainingWorker := worker.NewTrainingWorker(svc, logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := trainingWorker.StartSchedule(ctx, cfg.RetrainSchedule); err != nil {
		logger.Error("Failed to start retrain schedule", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		err := amqpClient.ConsumeTrainRequests(ctx, trainingWorker.HandleTrainRequest)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
		cancel()
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down worker...")
	if err := trainingWorker.Stop(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached", log.FieldError, err)
		return
	}
	logger.Info("Worker shutdown complete")
}
