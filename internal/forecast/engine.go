// Package forecast produces recursive multi-step forecasts from a training payload,
// with uncertainty bands, category breakdowns and risk alerts.
package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"cashcast/internal/baseline"
	"cashcast/internal/category"
	"cashcast/internal/core"
	"cashcast/internal/features"
	"cashcast/internal/log"
	"cashcast/internal/model"
	"cashcast/internal/regress"
	"cashcast/internal/risk"
	"cashcast/internal/series"
)

const (
	DefaultZ                 = 1.28
	DefaultMaxDailyHorizon   = 60
	DefaultMaxMonthlyHorizon = 24
	// Anchors further ahead than this many periods are rejected.
	DefaultMaxDailyGap   = 3650
	DefaultMaxMonthlyGap = 120
)

type Config struct {
	Baseline          baseline.Config
	Category          category.Config
	Z                 float64
	MaxDailyHorizon   int
	MaxMonthlyHorizon int
	MaxDailyGap       int
	MaxMonthlyGap     int
}

func DefaultConfig() Config {
	return Config{
		Baseline:          baseline.DefaultConfig(),
		Category:          category.DefaultConfig(),
		Z:                 DefaultZ,
		MaxDailyHorizon:   DefaultMaxDailyHorizon,
		MaxMonthlyHorizon: DefaultMaxMonthlyHorizon,
		MaxDailyGap:       DefaultMaxDailyGap,
		MaxMonthlyGap:     DefaultMaxMonthlyGap,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Baseline == (baseline.Config{}) {
		c.Baseline = d.Baseline
	}
	if c.Category == (category.Config{}) {
		c.Category = d.Category
	}
	if c.Z <= 0 {
		c.Z = d.Z
	}
	if c.MaxDailyHorizon <= 0 {
		c.MaxDailyHorizon = d.MaxDailyHorizon
	}
	if c.MaxMonthlyHorizon <= 0 {
		c.MaxMonthlyHorizon = d.MaxMonthlyHorizon
	}
	if c.MaxDailyGap <= 0 {
		c.MaxDailyGap = d.MaxDailyGap
	}
	if c.MaxMonthlyGap <= 0 {
		c.MaxMonthlyGap = d.MaxMonthlyGap
	}
	return c
}

// Request is what a caller asks of one forecast.
type Request struct {
	Horizon int
	// Anchor is the first period to forecast (YYYY-MM-DD daily, YYYY-MM monthly).
	// Daily forecasts default to today; monthly ones continue from the last history
	// month.
	Anchor string
	// Categories are per-day category expenses used to split predicted expense.
	Categories []core.CategoryRow
	// TopK is how many categories to report; 0 means the default.
	TopK int
}

type Meta struct {
	Basis             string           `json:"basis"`
	Granularity       core.Granularity `json:"granularity"`
	TrainedAt         time.Time        `json:"trained_at"`
	Lags              int              `json:"lags"`
	Anchor            string           `json:"anchor,omitempty"`
	HistoryLastPeriod string           `json:"history_last_period,omitempty"`
	SyntheticPeriods  int              `json:"synthetic_periods"`
	IncomeAlgo        core.Algo        `json:"income_algo"`
	ExpenseAlgo       core.Algo        `json:"expense_algo"`
	IncomeFallback    bool             `json:"income_fallback"`
	ExpenseFallback   bool             `json:"expense_fallback"`
	Warning           string           `json:"warning,omitempty"`
}

type KPIs struct {
	IncomeTotal  float64 `json:"income_total"`
	ExpenseTotal float64 `json:"expense_total"`
	NetTotal     float64 `json:"net_total"`
}

// Result is the full forecast response.
type Result struct {
	Meta          Meta                 `json:"meta"`
	Horizon       int                  `json:"horizon"`
	KPIs          KPIs                 `json:"kpis"`
	Series        []core.ForecastPoint `json:"series"`
	TopCategories []core.CategoryShare `json:"top_categories"`
	Alerts        []core.Alert         `json:"alerts"`
	RiskScore     int                  `json:"risk_score"`
}

const msgNoHistory = "payload has no history to forecast from"

type Engine struct {
	cfg        Config
	capability regress.Capability
	logger     *log.Logger
	now        func() time.Time
}

func New(cfg Config, capability regress.Capability, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		cfg:        cfg.withDefaults(),
		capability: capability,
		logger:     logger.WithComponent(log.ComponentForecast),
		now:        time.Now,
	}
}

func (e *Engine) Daily(ctx context.Context, p core.TrainingPayload, req Request) (Result, error) {
	return e.Forecast(ctx, core.Daily, p, req)
}

func (e *Engine) Monthly(ctx context.Context, p core.TrainingPayload, req Request) (Result, error) {
	return e.Forecast(ctx, core.Monthly, p, req)
}

// DailyList is the flat variant of Daily: only the forecast points.
func (e *Engine) DailyList(ctx context.Context, p core.TrainingPayload, req Request) ([]core.ForecastPoint, error) {
	res, err := e.Daily(ctx, p, req)
	if err != nil {
		return nil, err
	}
	return res.Series, nil
}

// target is one target resolved for inference. A nil model means the baseline.
type target struct {
	algo     core.Algo
	model    regress.Model
	std      float64
	fallback bool
}

// Forecast predicts req.Horizon periods after the (anchored) end of the payload
// history. Only invalid requests produce errors.
func (e *Engine) Forecast(ctx context.Context, g core.Granularity, p core.TrainingPayload, req Request) (Result, error) {
	if err := e.validate(g, p, req); err != nil {
		return Result{}, err
	}
	topK := req.TopK
	if topK == 0 {
		topK = category.DefaultTopK
	}

	anchor, hasAnchor, err := e.anchor(g, req.Anchor)
	if err != nil {
		return Result{}, err
	}

	lags := p.Lags
	if lags < 1 {
		lags = features.DefaultLags(g)
	}
	enc, err := features.New(g, lags)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Meta: Meta{
			Basis:       p.Basis,
			Granularity: g,
			TrainedAt:   p.TrainedAt,
			Lags:        lags,
			Warning:     p.Warning,
		},
		Horizon:       req.Horizon,
		Series:        []core.ForecastPoint{},
		TopCategories: []core.CategoryShare{},
		Alerts:        []core.Alert{},
	}
	if hasAnchor {
		res.Meta.Anchor = core.FormatPeriod(g, anchor)
	}

	s := series.FromHistory(g, p.History)
	if s.Empty() {
		res.Meta.IncomeAlgo, res.Meta.ExpenseAlgo = core.AlgoBaseline, core.AlgoBaseline
		res.Alerts = append(res.Alerts, core.Alert{Level: core.AlertWarn, Message: msgNoHistory})
		return res, nil
	}
	res.Meta.HistoryLastPeriod = s.Last()

	if hasAnchor {
		if err := e.checkGap(g, s, anchor); err != nil {
			return Result{}, err
		}
		s, res.Meta.SyntheticPeriods = s.ExtendTo(anchor)
	}

	inc := e.resolve(p.Target(core.TargetIncome), enc)
	exp := e.resolve(p.Target(core.TargetExpense), enc)
	res.Meta.IncomeAlgo, res.Meta.IncomeFallback = inc.algo, inc.fallback
	res.Meta.ExpenseAlgo, res.Meta.ExpenseFallback = exp.algo, exp.fallback

	profile := category.BuildProfile(e.cfg.Category, req.Categories)
	catSum := map[string]float64{}

	w := newWindow(s, max(0, p.HistoryOffset))
	for h := 1; h <= req.Horizon; h++ {
		var point core.ForecastPoint
		w, point, err = e.step(w, enc, inc, exp)
		if err != nil {
			// The window only holds validated periods, so this is a programming error.
			return Result{}, fmt.Errorf("forecast step %d: %w", h, err)
		}
		alloc := category.Allocate(point.ExpensePred, profile)
		point.ExpenseByCategory = alloc
		category.Accumulate(catSum, alloc)

		res.Series = append(res.Series, point)
		res.KPIs.IncomeTotal += point.IncomePred
		res.KPIs.ExpenseTotal += point.ExpensePred
	}
	res.KPIs.NetTotal = res.KPIs.IncomeTotal - res.KPIs.ExpenseTotal
	res.TopCategories = category.Top(catSum, res.KPIs.ExpenseTotal, topK)

	res.RiskScore, res.Alerts = risk.Score(risk.Input{
		Expense:      w.expense,
		Horizon:      req.Horizon,
		ExpenseTotal: res.KPIs.ExpenseTotal,
		NetTotal:     res.KPIs.NetTotal,
		IncomeStd:    inc.std,
		ExpenseStd:   exp.std,
	})

	e.logger.DebugContext(ctx, "Forecast computed",
		log.NewFields().
			WithForecast(req.Horizon, res.Meta.Anchor).
			WithOperation(log.OpForecast).
			ToSlice()...)
	return res, nil
}

// step predicts the period right after w and returns w extended by the prediction.
func (e *Engine) step(w window, enc features.Encoder, inc, exp target) (window, core.ForecastPoint, error) {
	date, idx, err := w.next()
	if err != nil {
		return w, core.ForecastPoint{}, err
	}

	var row []float64
	if inc.model != nil || exp.model != nil {
		row = enc.Row(date, idx, w.income, w.expense)
	}
	incPred := max(0, e.predict(w, inc, row, w.income, date))
	expPred := max(0, e.predict(w, exp, row, w.expense, date))

	period := core.FormatPeriod(w.g, date)
	z := e.cfg.Z
	point := core.ForecastPoint{
		Period:      period,
		IncomePred:  incPred,
		ExpensePred: expPred,
		NetPred:     incPred - expPred,
		IncomeLow:   max(0, incPred-z*inc.std),
		IncomeHigh:  incPred + z*inc.std,
		ExpenseLow:  max(0, expPred-z*exp.std),
		ExpenseHigh: expPred + z*exp.std,
	}
	return w.push(period, incPred, expPred), point, nil
}

// predict runs the target's model, falling back to the baseline on any failure.
func (e *Engine) predict(w window, t target, row []float64, vals []float64, date core.Date) float64 {
	if t.model != nil && row != nil {
		v, err := t.model.Predict(row)
		if err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return baseline.Predict(e.cfg.Baseline, w.g, w.periods, vals, date)
}

// resolve decides which algorithm serves a target. Anything that is not a loadable
// model matching the encoder width is served by the baseline.
func (e *Engine) resolve(tt core.TrainedTarget, enc features.Encoder) target {
	t := target{algo: tt.Algo, std: safeStd(tt.ResidStd)}
	if t.algo == core.AlgoBaseline {
		return t
	}
	t.algo = core.AlgoBaseline
	t.fallback = true
	if !tt.Algo.IsML() || !e.capability.Available {
		return t
	}
	m := model.Load(tt.ModelB64)
	if m == nil || m.NumFeatures() != enc.Width() {
		return t
	}
	return target{algo: tt.Algo, model: m, std: t.std}
}

func (e *Engine) validate(g core.Granularity, p core.TrainingPayload, req Request) error {
	if !g.Valid() {
		return &core.ValidationError{Field: "granularity", Reason: fmt.Sprintf("unknown granularity %q", g), Err: core.ErrInvalidGranularity}
	}
	if p.Granularity != "" && p.Granularity != g {
		return &core.ValidationError{Field: "granularity", Reason: fmt.Sprintf("payload was trained on %s data", p.Granularity), Err: core.ErrInvalidGranularity}
	}
	limit := e.cfg.MaxDailyHorizon
	if g == core.Monthly {
		limit = e.cfg.MaxMonthlyHorizon
	}
	if req.Horizon < 1 || req.Horizon > limit {
		return &core.ValidationError{Field: "horizon", Reason: fmt.Sprintf("must be between 1 and %d, got %d", limit, req.Horizon), Err: core.ErrInvalidHorizon}
	}
	if req.TopK < 0 {
		return &core.ValidationError{Field: "top_k", Reason: fmt.Sprintf("must be positive, got %d", req.TopK), Err: core.ErrInvalidTopK}
	}
	return nil
}

// anchor parses the requested anchor. An empty daily anchor is today's local date.
func (e *Engine) anchor(g core.Granularity, raw string) (core.Date, bool, error) {
	if raw == "" {
		if g == core.Monthly {
			return core.Date{}, false, nil
		}
		now := e.now()
		return core.NewDate(now.Year(), int(now.Month()), now.Day()), true, nil
	}
	d, err := core.ParsePeriod(g, raw)
	if err != nil {
		return core.Date{}, false, &core.ValidationError{Field: "anchor", Reason: fmt.Sprintf("malformed %s period %q", g, raw), Err: core.ErrInvalidAnchor}
	}
	return d, true, nil
}

func (e *Engine) checkGap(g core.Granularity, s series.Series, anchor core.Date) error {
	last, err := core.ParsePeriod(g, s.Last())
	if err != nil {
		return err
	}
	limit := e.cfg.MaxDailyGap
	if g == core.Monthly {
		limit = e.cfg.MaxMonthlyGap
	}
	if anchor.After(core.AddPeriods(g, last, limit).Time) {
		return &core.ValidationError{Field: "anchor", Reason: fmt.Sprintf("more than %d periods after the last history period", limit), Err: core.ErrInvalidAnchor}
	}
	return nil
}

func safeStd(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
