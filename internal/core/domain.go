package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
)

const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
)

const (
	AlgoBaseline Algo = "baseline_seasonal"
	AlgoLinear   Algo = "linear"
	AlgoBoosted  Algo = "boosted"
)

const (
	KindIncome  TxKind = "income"
	KindExpense TxKind = "expense"
)

// DefaultCategory receives the whole expense when no category weights exist.
const DefaultCategory = "Other"

type (
	Granularity string

	Algo string

	TxKind string

	// ObservationRow is one period of aggregated cash flow as supplied by a collaborator.
	// Period is YYYY-MM-DD for daily series and YYYY-MM for monthly series.
	ObservationRow struct {
		Period  string  `json:"period"`
		Income  float64 `json:"income"`
		Expense float64 `json:"expense"`
	}

	// CategoryRow is the expense of one category on one day.
	CategoryRow struct {
		Date     string  `json:"date"`
		Category string  `json:"category"`
		Expense  float64 `json:"expense"`
	}

	Transaction struct {
		ID          int64
		Date        Date
		Competency  string // YYYY-MM, defaults to the month of Date
		Kind        TxKind
		Category    string
		Description string
		Amount      Money
		AccountID   *int64
	}
)

var (
	ErrInvalidKind      = errors.New("invalid transaction kind")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidPeriodKey = errors.New("invalid period key")
)

// Valid reports whether g names a supported series granularity.
func (g Granularity) Valid() bool {
	return g == Daily || g == Monthly
}

// ParseGranularity accepts the canonical names plus the "competency" alias used for
// invoice-month aggregation.
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "cash", "day":
		return Daily, nil
	case "monthly", "competency", "month":
		return Monthly, nil
	}
	return "", &ValidationError{Field: "granularity", Reason: "must be daily or monthly", Err: ErrInvalidGranularity}
}

// IsML reports whether the algorithm needs a fitted model.
func (a Algo) IsML() bool {
	return a == AlgoLinear || a == AlgoBoosted
}

// UnmarshalJSON accepts the key aliases emitted by older exports:
// date/ym for the period and expense_total for the expense.
func (r *ObservationRow) UnmarshalJSON(data []byte) error {
	var raw struct {
		Period       string   `json:"period"`
		Date         string   `json:"date"`
		YM           string   `json:"ym"`
		Income       *float64 `json:"income"`
		Expense      *float64 `json:"expense"`
		ExpenseTotal *float64 `json:"expense_total"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Period = firstNonEmpty(raw.Period, raw.Date, raw.YM)
	r.Income = deref(raw.Income)
	r.Expense = deref(raw.Expense)
	if raw.Expense == nil {
		r.Expense = deref(raw.ExpenseTotal)
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	switch t.Kind {
	case KindIncome, KindExpense:
	default:
		return ErrInvalidKind
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Kind == KindExpense && strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Competency != "" {
		if _, err := ParseMonth(t.Competency); err != nil {
			return err
		}
	}
	return nil
}

// SafeAmount coerces missing, negative or non-finite values to zero.
func SafeAmount(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
