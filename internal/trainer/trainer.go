// Package trainer fits the income and expense targets of a series, validates each
// candidate model walk-forward against the seasonal baseline and assembles the
// training payload the forecast engine consumes.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cashcast/internal/baseline"
	"cashcast/internal/core"
	"cashcast/internal/features"
	"cashcast/internal/log"
	"cashcast/internal/model"
	"cashcast/internal/regress"
	"cashcast/internal/series"
	"cashcast/internal/stats"
)

// Options are the per-run knobs a caller may set.
type Options struct {
	// Lags requests a lag count; 0 uses the configured default. The effective value
	// may be reduced for short histories.
	Lags int
	// Force lets a model win even without beating the baseline by the minimum margin.
	Force bool
}

type Trainer struct {
	cfg        Config
	capability regress.Capability
	logger     *log.Logger
	now        func() time.Time
	newRunID   func() string
}

func New(cfg Config, capability regress.Capability, logger *log.Logger) *Trainer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Trainer{
		cfg:        cfg.withDefaults(),
		capability: capability,
		logger:     logger.WithComponent(log.ComponentTrainer),
		now:        time.Now,
		newRunID:   uuid.NewString,
	}
}

func (t *Trainer) TrainDaily(ctx context.Context, rows []core.ObservationRow, opts Options) (core.TrainingPayload, error) {
	return t.Train(ctx, core.Daily, rows, opts)
}

func (t *Trainer) TrainMonthly(ctx context.Context, rows []core.ObservationRow, opts Options) (core.TrainingPayload, error) {
	return t.Train(ctx, core.Monthly, rows, opts)
}

// Train builds the series for g and produces a payload. It always returns a payload
// for valid options; missing history, short history and an unavailable runtime
// degrade to a baseline payload carrying a warning. Errors are validation errors or
// context cancellation.
func (t *Trainer) Train(ctx context.Context, g core.Granularity, rows []core.ObservationRow, opts Options) (core.TrainingPayload, error) {
	if !g.Valid() {
		return core.TrainingPayload{}, &core.ValidationError{Field: "granularity", Reason: fmt.Sprintf("unknown granularity %q", g), Err: core.ErrInvalidGranularity}
	}
	if opts.Lags < 0 {
		return core.TrainingPayload{}, &core.ValidationError{Field: "lags", Reason: "must be at least 1", Err: core.ErrInvalidLags}
	}

	requested := opts.Lags
	if requested == 0 {
		requested = t.DefaultLags(g)
	}

	s := series.Build(g, rows)
	p := core.TrainingPayload{
		RunID:       t.newRunID(),
		Basis:       basis(g),
		Granularity: g,
		TrainedAt:   t.now().UTC().Truncate(time.Second),
		Lags:        requested,
		History:     []core.HistoryPoint{},
		Targets:     map[string]core.TrainedTarget{},
	}

	if s.Empty() {
		p.Warning = fmt.Sprintf("no %s history", g)
		t.logger.WarnContext(ctx, "No history to train on", log.FieldGranularity, string(g), log.FieldRunID, p.RunID)
		return p, nil
	}

	s = s.Tail(t.trainWindow(g))
	lags := features.ClampLags(g, requested, s.Len())
	p.Lags = lags
	p.StartPeriod = s.Periods[0]
	p.EndPeriod = s.Last()

	hist := s
	if g == core.Daily {
		hist = s.Tail(t.cfg.HistoryWindow)
	}
	p.History = hist.History()
	p.HistoryOffset = s.Len() - hist.Len()

	if s.Len() <= minSeriesLen(g, lags) {
		p.Warning = "insufficient history for model training; using seasonal baseline"
		p.Targets[core.TargetIncome] = baselineTarget(0, stats.Std(s.Income))
		p.Targets[core.TargetExpense] = baselineTarget(0, stats.Std(s.Expense))
		t.logger.InfoContext(ctx, "Short history, baseline payload",
			log.FieldGranularity, string(g), log.FieldLags, lags, log.FieldSamples, s.Len())
		return p, nil
	}

	if !t.capability.Available {
		p.Warning = fmt.Sprintf("regression runtime unavailable (%s); using seasonal baseline", t.capability.Reason)
		inc, exp := stats.Std(s.Income), stats.Std(s.Expense)
		p.Targets[core.TargetIncome] = baselineTarget(inc, inc)
		p.Targets[core.TargetExpense] = baselineTarget(exp, exp)
		t.logger.WarnContext(ctx, "Regression runtime unavailable, baseline payload",
			log.FieldGranularity, string(g), "reason", t.capability.Reason)
		return p, nil
	}

	enc, err := features.New(g, lags)
	if err != nil {
		return core.TrainingPayload{}, err
	}
	m := enc.Supervised(s)

	var income, expense core.TrainedTarget
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		income, err = t.fitTarget(egCtx, g, core.TargetIncome, m, m.Income, opts.Force)
		return err
	})
	eg.Go(func() error {
		var err error
		expense, err = t.fitTarget(egCtx, g, core.TargetExpense, m, m.Expense, opts.Force)
		return err
	})
	if err := eg.Wait(); err != nil {
		return core.TrainingPayload{}, err
	}

	p.Targets[core.TargetIncome] = income
	p.Targets[core.TargetExpense] = expense
	schema := enc.Schema()
	p.FeatureSchema = &schema
	p.Note = fmt.Sprintf("separate %s models for income and expense on a continuous series", g)

	t.logger.InfoContext(ctx, "Training finished",
		log.FieldRunID, p.RunID,
		log.FieldGranularity, string(g),
		log.FieldLags, lags,
		log.FieldSamples, m.Len(),
		"income_algo", string(income.Algo),
		"expense_algo", string(expense.Algo),
	)
	return p, nil
}

// fitTarget validates the candidates on the tail of y and refits the winner on all
// of it.
func (t *Trainer) fitTarget(ctx context.Context, g core.Granularity, name string, m features.Matrix, y []float64, force bool) (core.TrainedTarget, error) {
	n := len(y)
	if n < t.cfg.MinSamples {
		// The spread of y around its mean.
		s := stats.Std(y)
		return baselineTarget(s, s), nil
	}

	nVal := max(t.cfg.MinValSteps, int(t.cfg.ValFraction*float64(n)))
	start := max(t.cfg.MinStart, min(n-nVal, n-2))
	end := min(n, start+max(1, nVal))

	baseFn := t.baselineStep(g, m.Periods, y)
	baseMAE, err := walkForward(ctx, m.X, y, start, end, baseFn)
	if err != nil {
		return core.TrainedTarget{}, err
	}

	lambda := t.cfg.RidgeLambda
	linearMAE, err := walkForward(ctx, m.X, y, start, end, func(X [][]float64, ytr []float64, x []float64) (float64, error) {
		lm, err := regress.FitLinear(X, ytr, lambda)
		if err != nil {
			return 0, err
		}
		return lm.Predict(x)
	})
	if err != nil && !errors.Is(err, errCandidate) {
		return core.TrainedTarget{}, err
	}

	params := t.cfg.Boost
	boostedMAE, err := walkForward(ctx, m.X, y, start, end, func(X [][]float64, ytr []float64, x []float64) (float64, error) {
		bm, err := regress.FitBoosted(X, ytr, params)
		if err != nil {
			return 0, err
		}
		return bm.Predict(x)
	})
	if err != nil && !errors.Is(err, errCandidate) {
		return core.TrainedTarget{}, err
	}

	algo, bestMAE := Select(Scores{Baseline: baseMAE, Linear: linearMAE, Boosted: boostedMAE}, t.cfg.MinImprovement, force)

	out := core.TrainedTarget{Algo: algo, MAEVal: bestMAE, BaselineMAEVal: baseMAE}
	if algo.IsML() {
		token, resid, err := t.refit(algo, m.X, y)
		if err == nil {
			out.ModelB64 = token
			out.ResidStd = resid
		} else {
			t.logger.WarnContext(ctx, "Final refit failed, keeping baseline",
				log.FieldTarget, name, log.FieldAlgo, string(algo), log.FieldError, err.Error())
			algo = core.AlgoBaseline
			out = core.TrainedTarget{Algo: algo, MAEVal: baseMAE, BaselineMAEVal: baseMAE}
		}
	}
	if algo == core.AlgoBaseline {
		tail := stats.Tail(y, max(t.cfg.ResidTail, int(t.cfg.ValFraction*float64(n))))
		out.ResidStd = stats.Std(tail)
	}

	t.logger.DebugContext(ctx, "Target fitted",
		log.NewFields().
			WithTarget(name, string(out.Algo), out.MAEVal, out.BaselineMAEVal).
			WithOperation(log.OpTrain).
			ToSlice()...)
	return out, nil
}

func (t *Trainer) refit(algo core.Algo, X [][]float64, y []float64) (string, float64, error) {
	var (
		fitted regress.Model
		err    error
	)
	switch algo {
	case core.AlgoLinear:
		fitted, err = regress.FitLinear(X, y, t.cfg.RidgeLambda)
	case core.AlgoBoosted:
		fitted, err = regress.FitBoosted(X, y, t.cfg.Boost)
	default:
		return "", 0, fmt.Errorf("no refit for %s", algo)
	}
	if err != nil {
		return "", 0, err
	}

	resid := make([]float64, len(y))
	for i, x := range X {
		p, err := fitted.Predict(x)
		if err != nil {
			return "", 0, err
		}
		resid[i] = p - y[i]
	}
	token, err := model.Save(fitted)
	if err != nil {
		return "", 0, err
	}
	return token, stats.Std(resid), nil
}

// baselineStep predicts y[t] from y[:t]. Daily series use the seasonal blend keyed by
// the supervised periods; monthly series use the last value.
func (t *Trainer) baselineStep(g core.Granularity, periods []string, y []float64) stepFunc {
	cfg := t.cfg.Baseline
	return func(_ [][]float64, ytr []float64, _ []float64) (float64, error) {
		i := len(ytr)
		if i < 1 {
			return 0, nil
		}
		if g == core.Monthly || i >= len(periods) {
			return baseline.LastValue(ytr), nil
		}
		target, err := core.ParseDay(periods[i])
		if err != nil {
			return baseline.LastValue(ytr), nil
		}
		return baseline.Seasonal(cfg, periods[:i], ytr, target), nil
	}
}

// trainWindow is how many trailing periods of g a run trains on.
func (t *Trainer) trainWindow(g core.Granularity) int {
	if g == core.Monthly {
		return t.cfg.MonthlyTrainWindow
	}
	return t.cfg.DailyTrainWindow
}

// DefaultLags is the lag count used when a request leaves it at 0.
func (t *Trainer) DefaultLags(g core.Granularity) int {
	switch {
	case g == core.Daily && t.cfg.DailyLags > 0:
		return t.cfg.DailyLags
	case g == core.Monthly && t.cfg.MonthlyLags > 0:
		return t.cfg.MonthlyLags
	}
	return features.DefaultLags(g)
}

var errCandidate = errors.New("candidate fit failed")

// stepFunc fits on the training prefix and predicts the single row x.
type stepFunc func(X [][]float64, y []float64, x []float64) (float64, error)

// walkForward fits on [0,i) and predicts i for every i in [start,end). A failing
// candidate scores +Inf and reports errCandidate; context cancellation is returned
// as is.
func walkForward(ctx context.Context, X [][]float64, y []float64, start, end int, fn stepFunc) (float64, error) {
	if start >= end {
		return math.Inf(1), errCandidate
	}
	truth := make([]float64, 0, end-start)
	preds := make([]float64, 0, end-start)
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		p, err := fn(X[:i], y[:i], X[i])
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			return math.Inf(1), fmt.Errorf("%w: step %d: %v", errCandidate, i, err)
		}
		preds = append(preds, p)
		truth = append(truth, y[i])
	}
	return stats.MAE(truth, preds), nil
}

func baselineTarget(mae, residStd float64) core.TrainedTarget {
	return core.TrainedTarget{Algo: core.AlgoBaseline, MAEVal: mae, BaselineMAEVal: mae, ResidStd: residStd}
}

func basis(g core.Granularity) string {
	if g == core.Monthly {
		return core.BasisMonthly
	}
	return core.BasisDaily
}

// minSeriesLen is the series length at or below which no model is fitted.
func minSeriesLen(g core.Granularity, lags int) int {
	if g == core.Monthly {
		return lags + 1
	}
	return lags + 2
}
