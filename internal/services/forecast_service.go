package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashcast/internal/amqp"
	"cashcast/internal/cache"
	"cashcast/internal/core"
	"cashcast/internal/forecast"
	"cashcast/internal/log"
	"cashcast/internal/storage"
	"cashcast/internal/trainer"
)

// ErrModelNotFound is returned when a forecast asks for a model that was never trained.
var ErrModelNotFound = errors.New("model not found")

// DefaultCategoryLookback is how many days of category expenses feed the category profile.
const DefaultCategoryLookback = 180

// Store is the persistence the service needs. *storage.SQLiteRepository implements it.
type Store interface {
	AddTransaction(ctx context.Context, t core.Transaction) (int64, error)
	DailyTotals(ctx context.Context, accountID *int64) ([]core.ObservationRow, error)
	MonthlyTotals(ctx context.Context, accountID *int64) ([]core.ObservationRow, error)
	CategoryDailyExpense(ctx context.Context, accountID *int64, since string) ([]core.CategoryRow, error)
	SavePayload(ctx context.Context, name string, p core.TrainingPayload) error
	LoadPayload(ctx context.Context, name string) (core.TrainingPayload, error)
	ListPayloadNames(ctx context.Context) ([]string, error)
}

// Publisher sends training requests to the worker. *amqp.Client implements it.
type Publisher interface {
	PublishTrainRequest(ctx context.Context, msg *amqp.TrainRequestMessage) error
}

// TrainRequest identifies one model and how to train it.
type TrainRequest struct {
	Granularity core.Granularity
	AccountID   *int64
	// Lags of 0 means the trainer default.
	Lags  int
	Force bool
}

// ForecastQuery selects a stored model and describes the forecast wanted from it.
type ForecastQuery struct {
	AccountID *int64
	Lags      int
	Horizon   int
	Anchor    string
	TopK      int
}

// TrainResult is a stored training run.
type TrainResult struct {
	Name    string               `json:"model_name"`
	Payload core.TrainingPayload `json:"payload"`
}

// ForecastService orchestrates training and forecasting across SQLite, the payload
// cache and AMQP.
type ForecastService struct {
	store            Store
	trainer          *trainer.Trainer
	engine           *forecast.Engine
	payloads         *cache.Loader[core.TrainingPayload]
	publisher        Publisher
	categoryLookback int
	logger           *log.Logger
	now              func() time.Time
}

// NewForecastService wires the service. payloads and publisher may be nil: without a
// cache every forecast reads the store, without a publisher RequestTraining fails.
func NewForecastService(store Store, tr *trainer.Trainer, engine *forecast.Engine, payloads *cache.Loader[core.TrainingPayload], publisher Publisher, logger *log.Logger) *ForecastService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ForecastService{
		store:            store,
		trainer:          tr,
		engine:           engine,
		payloads:         payloads,
		publisher:        publisher,
		categoryLookback: DefaultCategoryLookback,
		logger:           logger.WithComponent(log.ComponentService),
		now:              time.Now,
	}
}

// ModelName resolves the storage name of a model, applying the default lag count.
func (s *ForecastService) ModelName(g core.Granularity, accountID *int64, lags int) string {
	if lags == 0 && g.Valid() {
		lags = s.trainer.DefaultLags(g)
	}
	return core.ModelName(g, accountID, lags)
}

// Train reads the totals, trains a payload and stores it under the model name.
func (s *ForecastService) Train(ctx context.Context, req TrainRequest) (TrainResult, error) {
	if !req.Granularity.Valid() {
		return TrainResult{}, &core.ValidationError{Field: "granularity", Reason: fmt.Sprintf("unknown granularity %q", req.Granularity), Err: core.ErrInvalidGranularity}
	}
	if req.Lags < 0 {
		return TrainResult{}, &core.ValidationError{Field: "lags", Reason: "must not be negative", Err: core.ErrInvalidLags}
	}
	name := s.ModelName(req.Granularity, req.AccountID, req.Lags)

	rows, err := s.totals(ctx, req.Granularity, req.AccountID)
	if err != nil {
		return TrainResult{}, fmt.Errorf("read %s totals: %w", req.Granularity, err)
	}

	start := time.Now()
	payload, err := s.trainer.Train(ctx, req.Granularity, rows, trainer.Options{Lags: req.Lags, Force: req.Force})
	if err != nil {
		return TrainResult{}, err
	}

	if err := s.store.SavePayload(ctx, name, payload); err != nil {
		return TrainResult{}, fmt.Errorf("save payload %s: %w", name, err)
	}
	if s.payloads != nil {
		s.payloads.Invalidate(name)
	}

	s.logger.InfoContext(ctx, "Model trained",
		log.NewFields().
			WithOperation(log.OpTrain).
			WithModel(name, string(req.Granularity)).
			With(log.FieldRunID, payload.RunID).
			With(log.FieldSamples, len(rows)).
			With(log.FieldDuration, time.Since(start).Milliseconds()).
			ToSlice()...)
	return TrainResult{Name: name, Payload: payload}, nil
}

// RecordTransaction validates and stores one transaction. Stored payloads are not
// touched; the next training run picks the transaction up.
func (s *ForecastService) RecordTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, &core.ValidationError{Field: "transaction", Reason: err.Error(), Err: err}
	}
	id, err := s.store.AddTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("record transaction: %w", err)
	}
	return id, nil
}

// RequestTraining queues a training run for the worker and returns the model name.
func (s *ForecastService) RequestTraining(ctx context.Context, req TrainRequest) (string, error) {
	if !req.Granularity.Valid() {
		return "", &core.ValidationError{Field: "granularity", Reason: fmt.Sprintf("unknown granularity %q", req.Granularity), Err: core.ErrInvalidGranularity}
	}
	if req.Lags < 0 {
		return "", &core.ValidationError{Field: "lags", Reason: "must not be negative", Err: core.ErrInvalidLags}
	}
	if s.publisher == nil {
		return "", fmt.Errorf("async training unavailable: no AMQP publisher configured")
	}

	lags := req.Lags
	if lags == 0 {
		lags = s.trainer.DefaultLags(req.Granularity)
	}
	msg := amqp.NewTrainRequestMessage(req.Granularity, req.AccountID, lags, req.Force)
	if err := s.publisher.PublishTrainRequest(ctx, msg); err != nil {
		return "", fmt.Errorf("queue training for %s: %w", msg.ModelName, err)
	}
	return msg.ModelName, nil
}

// ForecastDaily forecasts from the stored daily model, splitting expense by category.
func (s *ForecastService) ForecastDaily(ctx context.Context, q ForecastQuery) (forecast.Result, error) {
	return s.forecast(ctx, core.Daily, q)
}

// ForecastMonthly forecasts from the stored monthly model.
func (s *ForecastService) ForecastMonthly(ctx context.Context, q ForecastQuery) (forecast.Result, error) {
	return s.forecast(ctx, core.Monthly, q)
}

func (s *ForecastService) forecast(ctx context.Context, g core.Granularity, q ForecastQuery) (forecast.Result, error) {
	if q.Lags < 0 {
		return forecast.Result{}, &core.ValidationError{Field: "lags", Reason: "must not be negative", Err: core.ErrInvalidLags}
	}
	name := s.ModelName(g, q.AccountID, q.Lags)

	payload, err := s.payload(ctx, name)
	if err != nil {
		return forecast.Result{}, err
	}

	req := forecast.Request{Horizon: q.Horizon, Anchor: q.Anchor, TopK: q.TopK}
	if g == core.Daily {
		since := s.now().UTC().AddDate(0, 0, -s.categoryLookback).Format(core.DayLayout)
		cats, err := s.store.CategoryDailyExpense(ctx, q.AccountID, since)
		if err != nil {
			return forecast.Result{}, fmt.Errorf("read category expenses: %w", err)
		}
		req.Categories = cats
	}

	res, err := s.engine.Forecast(ctx, g, payload, req)
	if err != nil {
		return forecast.Result{}, err
	}

	s.logger.DebugContext(ctx, "Forecast served",
		log.NewFields().
			WithOperation(log.OpForecast).
			WithModel(name, string(g)).
			WithForecast(res.Horizon, res.Meta.Anchor).
			With(log.FieldRiskScore, res.RiskScore).
			ToSlice()...)
	return res, nil
}

func (s *ForecastService) payload(ctx context.Context, name string) (core.TrainingPayload, error) {
	load := func(ctx context.Context) (core.TrainingPayload, error) {
		p, err := s.store.LoadPayload(ctx, name)
		if errors.Is(err, storage.ErrNotFound) {
			return p, fmt.Errorf("%w: %s", ErrModelNotFound, name)
		}
		if err != nil {
			return p, fmt.Errorf("load payload %s: %w", name, err)
		}
		return p, nil
	}
	if s.payloads == nil {
		return load(ctx)
	}
	return s.payloads.GetOrLoad(ctx, name, load)
}

// StoredModels lists the training requests that reproduce every stored model.
// Names that do not parse are skipped with a warning.
func (s *ForecastService) StoredModels(ctx context.Context) ([]TrainRequest, error) {
	names, err := s.store.ListPayloadNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	out := make([]TrainRequest, 0, len(names))
	for _, name := range names {
		g, accountID, lags, err := core.ParseModelName(name)
		if err != nil {
			s.logger.WarnContext(ctx, "Skipping unparseable model name", log.FieldModelName, name, log.FieldError, err)
			continue
		}
		out = append(out, TrainRequest{Granularity: g, AccountID: accountID, Lags: lags})
	}
	return out, nil
}

func (s *ForecastService) totals(ctx context.Context, g core.Granularity, accountID *int64) ([]core.ObservationRow, error) {
	if g == core.Monthly {
		return s.store.MonthlyTotals(ctx, accountID)
	}
	return s.store.DailyTotals(ctx, accountID)
}
