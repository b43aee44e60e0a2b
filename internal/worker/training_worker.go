package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cashcast/internal/amqp"
	"cashcast/internal/core"
	"cashcast/internal/log"
	"cashcast/internal/services"

	"github.com/robfig/cron/v3"
)

// ModelTrainer is the part of the forecast service the worker drives.
type ModelTrainer interface {
	Train(ctx context.Context, req services.TrainRequest) (services.TrainResult, error)
	StoredModels(ctx context.Context) ([]services.TrainRequest, error)
	ModelName(g core.Granularity, accountID *int64, lags int) string
}

// TrainingWorker retrains models on request and on a schedule. Runs for the same
// model name never overlap.
type TrainingWorker struct {
	svc        ModelTrainer
	locks      *keyedMutex
	logger     *log.Logger
	structured *log.StructuredLogger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewTrainingWorker(svc ModelTrainer, logger *log.Logger) *TrainingWorker {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentWorker)
	return &TrainingWorker{
		svc:        svc,
		locks:      newKeyedMutex(),
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
	}
}

// HandleTrainRequest processes one training request from AMQP.
func (w *TrainingWorker) HandleTrainRequest(ctx context.Context, msg *amqp.TrainRequestMessage) error {
	w.logger.InfoContext(ctx, "Processing training request",
		log.FieldModelName, msg.ModelName,
		"force", msg.Force,
		"queued_at", msg.Timestamp)

	req := services.TrainRequest{
		Granularity: msg.Granularity,
		AccountID:   msg.AccountID,
		Lags:        msg.Lags,
		Force:       msg.Force,
	}
	if name := w.svc.ModelName(req.Granularity, req.AccountID, req.Lags); name != msg.ModelName {
		w.logger.WarnContext(ctx, "Message model name does not match its fields, training by fields",
			"message_name", msg.ModelName, log.FieldModelName, name)
	}
	return w.train(ctx, req)
}

// RetrainAll retrains every stored model and returns how many succeeded. Failures do
// not stop the remaining models; they are joined into the returned error.
func (w *TrainingWorker) RetrainAll(ctx context.Context) (int, error) {
	reqs, err := w.svc.StoredModels(ctx)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	var errs []error
	ok := 0
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := w.train(ctx, req); err != nil {
			errs = append(errs, err)
			continue
		}
		ok++
	}

	w.logger.InfoContext(ctx, "Scheduled retrain completed",
		log.FieldOperation, log.OpRetrain,
		"total", len(reqs),
		"trained", ok,
		"errors", len(errs),
		log.FieldDuration, time.Since(start).Milliseconds())
	return ok, errors.Join(errs...)
}

func (w *TrainingWorker) train(ctx context.Context, req services.TrainRequest) error {
	name := w.svc.ModelName(req.Granularity, req.AccountID, req.Lags)
	unlock := w.locks.Lock(name)
	defer unlock()

	res, err := w.svc.Train(ctx, req)
	if err != nil {
		w.structured.LogError(ctx, "Training failed", err, log.ComponentWorker, log.OpTrain,
			log.NewFields().WithModel(name, string(req.Granularity)))
		return fmt.Errorf("train %s: %w", name, err)
	}
	w.structured.LogTrainingCompleted(ctx, res.Name, string(res.Payload.Granularity), res.Payload.RunID, res.Payload.Warning)
	return nil
}

// StartSchedule runs RetrainAll on a cron schedule until Stop is called. The context
// is handed to every scheduled run.
func (w *TrainingWorker) StartSchedule(ctx context.Context, spec string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return fmt.Errorf("retrain schedule is already running")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := w.RetrainAll(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Scheduled retrain had failures", log.FieldError, err)
		}
	})
	if err != nil {
		return fmt.Errorf("parse retrain schedule %q: %w", spec, err)
	}
	c.Start()
	w.cron = c

	w.logger.InfoContext(ctx, "Retrain schedule started", "schedule", spec)
	return nil
}

// Stop halts the schedule and waits for a running retrain to finish or ctx to expire.
func (w *TrainingWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
