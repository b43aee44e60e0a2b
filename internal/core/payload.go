package core

import "time"

const (
	TargetIncome  = "income"
	TargetExpense = "expense"
)

const (
	BasisDaily   = "cash_daily"
	BasisMonthly = "competency_monthly"
)

// TrainedTarget is the outcome of one training run for one target series.
type TrainedTarget struct {
	Algo           Algo    `json:"algo"`
	ModelB64       string  `json:"model_b64,omitempty"`
	MAEVal         float64 `json:"mae_val"`
	BaselineMAEVal float64 `json:"baseline_mae_val"`
	ResidStd       float64 `json:"resid_std"`
}

// HistoryPoint is one period of the trailing history stored with a payload.
type HistoryPoint struct {
	Period  string  `json:"period"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// FeatureSchema names the columns of the feature vector a payload was trained with.
type FeatureSchema struct {
	DateFeatures   []string `json:"date_feats"`
	IncomeLags     []string `json:"lags_income"`
	ExpenseLags    []string `json:"lags_expense"`
	MovingAverages []string `json:"ma"`
	Net            []string `json:"net"`
}

// Width is the total number of columns described by the schema.
func (s FeatureSchema) Width() int {
	return len(s.DateFeatures) + len(s.IncomeLags) + len(s.ExpenseLags) + len(s.MovingAverages) + len(s.Net)
}

// TrainingPayload is everything the forecast engine needs from a training run.
// It is produced once and replaced, never mutated, by the next run.
type TrainingPayload struct {
	RunID         string                   `json:"run_id,omitempty"`
	Basis         string                   `json:"basis"`
	Granularity   Granularity              `json:"granularity"`
	TrainedAt     time.Time                `json:"trained_at"`
	Lags          int                      `json:"lags"`
	Warning       string                   `json:"warning,omitempty"`
	History       []HistoryPoint           `json:"history"`
	HistoryOffset int                      `json:"history_offset"`
	StartPeriod   string                   `json:"start_period,omitempty"`
	EndPeriod     string                   `json:"end_period,omitempty"`
	Targets       map[string]TrainedTarget `json:"targets"`
	FeatureSchema *FeatureSchema           `json:"feature_spec,omitempty"`
	Note          string                   `json:"note,omitempty"`
}

// Target returns the trained target by name, defaulting to a baseline target.
func (p TrainingPayload) Target(name string) TrainedTarget {
	if t, ok := p.Targets[name]; ok {
		if t.Algo == "" {
			t.Algo = AlgoBaseline
		}
		return t
	}
	return TrainedTarget{Algo: AlgoBaseline}
}

// ForecastPoint is one predicted period.
type ForecastPoint struct {
	Period            string             `json:"period"`
	IncomePred        float64            `json:"income_pred"`
	ExpensePred       float64            `json:"expense_pred"`
	NetPred           float64            `json:"net_pred"`
	IncomeLow         float64            `json:"income_low"`
	IncomeHigh        float64            `json:"income_high"`
	ExpenseLow        float64            `json:"expense_low"`
	ExpenseHigh       float64            `json:"expense_high"`
	ExpenseByCategory map[string]float64 `json:"expense_by_category,omitempty"`
}

// CategoryShare is a category's part of an allocated expense total.
type CategoryShare struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Share    float64 `json:"share"`
}

const (
	AlertWarn = "warn"
	AlertInfo = "info"
)

type Alert struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
