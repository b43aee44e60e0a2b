// Package features encodes a position in a cash-flow series as a fixed-width
// numeric vector for supervised regression.
//
// The same Encoder.Row is used to build the training matrix and to build each
// recursive inference step, so both sides always agree on layout and width.
package features

import (
	"fmt"
	"math"

	"cashcast/internal/core"
	"cashcast/internal/series"
	"cashcast/internal/stats"
)

const (
	DefaultDailyLags   = 14
	DefaultMonthlyLags = 6

	maxDailyLags   = 30
	minDailyLags   = 3
	maxMonthlyLags = 12
	minMonthlyLags = 2
)

// Encoder builds feature vectors for one granularity and lag count.
type Encoder struct {
	Granularity core.Granularity
	Lags        int
}

// New returns an encoder, rejecting non-positive lag counts.
func New(g core.Granularity, lags int) (Encoder, error) {
	if !g.Valid() {
		return Encoder{}, &core.ValidationError{Field: "granularity", Reason: fmt.Sprintf("unknown granularity %q", g), Err: core.ErrInvalidGranularity}
	}
	if lags < 1 {
		return Encoder{}, &core.ValidationError{Field: "lags", Reason: "must be a positive integer", Err: core.ErrInvalidLags}
	}
	return Encoder{Granularity: g, Lags: lags}, nil
}

// DefaultLags returns the default lag count for g.
func DefaultLags(g core.Granularity) int {
	if g == core.Monthly {
		return DefaultMonthlyLags
	}
	return DefaultDailyLags
}

// ClampLags applies the lag policy: clamp the requested count to the granularity's
// bounds, then shrink it when the history of length n is short.
func ClampLags(g core.Granularity, requested, n int) int {
	if g == core.Monthly {
		l := max(minMonthlyLags, min(requested, maxMonthlyLags))
		if n <= l+2 {
			l = max(minMonthlyLags, min(l, max(minMonthlyLags, n/3)))
		}
		return l
	}
	l := max(minDailyLags, min(requested, maxDailyLags))
	if n <= l+5 {
		l = max(minDailyLags, min(l, max(minDailyLags, n/3)))
	}
	return l
}

func (e Encoder) dateWidth() int {
	if e.Granularity == core.Monthly {
		return 4
	}
	return 8
}

func (e Encoder) windows() (short, long int) {
	if e.Granularity == core.Monthly {
		return 3, 6
	}
	return 7, 14
}

// Width is the length of every vector this encoder produces.
func (e Encoder) Width() int {
	return e.dateWidth() + 2*e.Lags + 6
}

// Schema names the columns in order.
func (e Encoder) Schema() core.FeatureSchema {
	short, long := e.windows()
	s := core.FeatureSchema{
		MovingAverages: []string{
			fmt.Sprintf("inc_ma%d", short), fmt.Sprintf("inc_ma%d", long),
			fmt.Sprintf("exp_ma%d", short), fmt.Sprintf("exp_ma%d", long),
		},
		Net: []string{"net_last", fmt.Sprintf("net_ma%d", short)},
	}
	if e.Granularity == core.Monthly {
		s.DateFeatures = []string{"t_idx", "month", "sin12", "cos12"}
	} else {
		s.DateFeatures = []string{"t_idx", "dow", "sin7", "cos7", "dom", "moy", "sin12", "cos12"}
	}
	for k := 1; k <= e.Lags; k++ {
		s.IncomeLags = append(s.IncomeLags, fmt.Sprintf("inc_lag_%d", k))
		s.ExpenseLags = append(s.ExpenseLags, fmt.Sprintf("exp_lag_%d", k))
	}
	return s
}

// Row encodes the period at series index t whose calendar date is target, given the
// income and expense values strictly before it. Lags beyond the available history
// are zero so the width never changes.
func (e Encoder) Row(target core.Date, t int, inc, exp []float64) []float64 {
	row := make([]float64, 0, e.Width())
	row = append(row, e.dateFeatures(target, t)...)
	row = appendLags(row, inc, e.Lags)
	row = appendLags(row, exp, e.Lags)

	short, long := e.windows()
	net := stats.Sub(stats.Tail(inc, 2*long), stats.Tail(exp, 2*long))
	netLast := 0.0
	if len(net) > 0 {
		netLast = net[len(net)-1]
	}
	return append(row,
		stats.RollingMean(inc, short),
		stats.RollingMean(inc, long),
		stats.RollingMean(exp, short),
		stats.RollingMean(exp, long),
		netLast,
		stats.RollingMean(net, short),
	)
}

func (e Encoder) dateFeatures(d core.Date, t int) []float64 {
	month := float64(d.Month())
	ang12 := 2 * math.Pi * month / 12
	if e.Granularity == core.Monthly {
		return []float64{float64(t), month, math.Sin(ang12), math.Cos(ang12)}
	}
	dow := float64(core.Weekday(d))
	ang7 := 2 * math.Pi * dow / 7
	return []float64{
		float64(t),
		dow,
		math.Sin(ang7),
		math.Cos(ang7),
		float64(d.Day()),
		month,
		math.Sin(ang12),
		math.Cos(ang12),
	}
}

func appendLags(row, vals []float64, lags int) []float64 {
	for k := 1; k <= lags; k++ {
		if k <= len(vals) {
			row = append(row, vals[len(vals)-k])
		} else {
			row = append(row, 0)
		}
	}
	return row
}

// Matrix is a supervised training set. Row i predicts the series value at
// index Lags+i.
type Matrix struct {
	X       [][]float64
	Income  []float64
	Expense []float64
	Periods []string
}

// Len returns the number of supervised samples.
func (m Matrix) Len() int {
	return len(m.X)
}

// Supervised builds the training matrix for s. Rows before index Lags cannot form a
// full lag window and are skipped.
func (e Encoder) Supervised(s series.Series) Matrix {
	var m Matrix
	for i := e.Lags; i < s.Len(); i++ {
		d, err := core.ParsePeriod(e.Granularity, s.Periods[i])
		if err != nil {
			continue
		}
		m.X = append(m.X, e.Row(d, i, s.Income[:i], s.Expense[:i]))
		m.Income = append(m.Income, s.Income[i])
		m.Expense = append(m.Expense, s.Expense[i])
		m.Periods = append(m.Periods, s.Periods[i])
	}
	return m
}
