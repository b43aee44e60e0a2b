package forecast

import (
	"cashcast/internal/core"
	"cashcast/internal/series"
)

// window is the working history the recursion folds over. Each step returns a new
// window with the prediction appended; the previous value is never read again.
type window struct {
	g       core.Granularity
	periods []string
	income  []float64
	expense []float64
	// offset is the training-series index of periods[0].
	offset int
}

func newWindow(s series.Series, offset int) window {
	t := s.Tail(s.Len())
	return window{
		g:       s.Granularity,
		periods: t.Periods,
		income:  t.Income,
		expense: t.Expense,
		offset:  offset,
	}
}

func (w window) len() int {
	return len(w.periods)
}

// next is the date and series index of the period right after the window.
func (w window) next() (core.Date, int, error) {
	last, err := core.ParsePeriod(w.g, w.periods[len(w.periods)-1])
	if err != nil {
		return core.Date{}, 0, err
	}
	return core.AddPeriods(w.g, last, 1), w.offset + w.len(), nil
}

func (w window) push(period string, income, expense float64) window {
	w.periods = append(w.periods, period)
	w.income = append(w.income, income)
	w.expense = append(w.expense, expense)
	return w
}
