package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"cashcast/internal/amqp"
	"cashcast/internal/cache"
	"cashcast/internal/cli"
	"cashcast/internal/core"
	apphttp "cashcast/internal/http"
	"cashcast/internal/log"
	"cashcast/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	capability := cli.DetectRuntime(logger, cfg.MLEnabled)

	payloads := cache.NewLRUCache[core.TrainingPayload](cfg.PayloadCacheSize, cfg.PayloadCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register("payloads", payloads)
	cacheManager.StartCleanup(cfg.PayloadCacheTTL)
	defer cacheManager.Stop()

	// Async training is optional: without a broker, async train requests fail.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, async training disabled", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	svc := cli.NewForecastService(cfg, repo, capability, cache.NewLoader[core.TrainingPayload](payloads), publisher, logger)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{Ready: repo.Ping, Logger: logger})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting cashcast server",
		"port", cfg.Port,
		"ml_enabled", capability.Available,
		"async_training", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
