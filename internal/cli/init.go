// Package cli provides the start-up steps shared by cmd/cashcast and
// cmd/cashcast-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cashcast/internal/cache"
	"cashcast/internal/config"
	"cashcast/internal/core"
	"cashcast/internal/forecast"
	"cashcast/internal/log"
	"cashcast/internal/regress"
	"cashcast/internal/services"
	"cashcast/internal/storage"
	"cashcast/internal/trainer"

	"github.com/joho/godotenv"
)

// LoadAndValidateConfig loads .env (when present) and the environment, builds the
// root logger for component and exits the process on invalid configuration.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	// missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := config.Load()
	logger := cfg.Logger(component)
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite opens the repository and runs migrations, exiting on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// DetectRuntime resolves the regression capability once for the process.
func DetectRuntime(logger *log.Logger, enabled bool) regress.Capability {
	capability := regress.Detect(enabled)
	if !capability.Available {
		logger.Warn("Regression runtime unavailable, every model will use the seasonal baseline", "reason", capability.Reason)
	}
	return capability
}

// NewForecastService wires trainer and engine from cfg around the repository.
func NewForecastService(cfg *config.Config, repo *storage.SQLiteRepository, capability regress.Capability, payloads *cache.Loader[core.TrainingPayload], publisher services.Publisher, logger *log.Logger) *services.ForecastService {
	return services.NewForecastService(
		repo,
		trainer.New(cfg.Trainer(), capability, logger),
		forecast.New(cfg.Forecast(), capability, logger),
		payloads,
		publisher,
		logger,
	)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
