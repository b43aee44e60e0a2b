// Package series turns sparse per-period rows into continuous, zero-filled series.
package series

import (
	"sort"

	"cashcast/internal/core"
)

// Series holds three parallel, chronologically ordered sequences. Periods are
// contiguous and strictly increasing for the series' granularity.
type Series struct {
	Granularity core.Granularity
	Periods     []string
	Income      []float64
	Expense     []float64
}

// Len returns the number of periods.
func (s Series) Len() int {
	return len(s.Periods)
}

// Empty reports whether the series has no periods.
func (s Series) Empty() bool {
	return len(s.Periods) == 0
}

// Last returns the last period key, or "" for an empty series.
func (s Series) Last() string {
	if s.Empty() {
		return ""
	}
	return s.Periods[len(s.Periods)-1]
}

// Net returns income minus expense per period.
func (s Series) Net() []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = s.Income[i] - s.Expense[i]
	}
	return out
}

// Tail returns a copy of the last n periods.
func (s Series) Tail(n int) Series {
	start := max(0, s.Len()-n)
	return Series{
		Granularity: s.Granularity,
		Periods:     append([]string(nil), s.Periods[start:]...),
		Income:      append([]float64(nil), s.Income[start:]...),
		Expense:     append([]float64(nil), s.Expense[start:]...),
	}
}

// BuildDaily builds a continuous daily series from rows keyed YYYY-MM-DD.
func BuildDaily(rows []core.ObservationRow) Series {
	return build(core.Daily, rows)
}

// BuildMonthly builds a continuous monthly series from rows keyed YYYY-MM.
func BuildMonthly(rows []core.ObservationRow) Series {
	return build(core.Monthly, rows)
}

// Build dispatches on granularity.
func Build(g core.Granularity, rows []core.ObservationRow) Series {
	return build(g, rows)
}

func build(g core.Granularity, rows []core.ObservationRow) Series {
	out := Series{Granularity: g}

	byKey := make(map[string]core.ObservationRow, len(rows))
	dates := make(map[string]core.Date, len(rows))
	for _, r := range rows {
		d, err := core.ParsePeriod(g, r.Period)
		if err != nil {
			continue
		}
		key := core.FormatPeriod(g, d)
		byKey[key] = r
		dates[key] = d
	}
	if len(byKey) == 0 {
		return out
	}

	keys := make([]string, 0, len(dates))
	for k := range dates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	first, last := dates[keys[0]], dates[keys[len(keys)-1]]

	for cur := first; !cur.After(last.Time); cur = core.AddPeriods(g, cur, 1) {
		key := core.FormatPeriod(g, cur)
		r := byKey[key]
		out.Periods = append(out.Periods, key)
		out.Income = append(out.Income, core.SafeAmount(r.Income))
		out.Expense = append(out.Expense, core.SafeAmount(r.Expense))
	}
	return out
}

// FromHistory rebuilds a series from a payload's stored history. The history is
// normalized the same way raw rows are, so a hand-edited payload still yields a
// gapless series.
func FromHistory(g core.Granularity, hist []core.HistoryPoint) Series {
	rows := make([]core.ObservationRow, len(hist))
	for i, h := range hist {
		rows[i] = core.ObservationRow{Period: h.Period, Income: h.Income, Expense: h.Expense}
	}
	return build(g, rows)
}

// History converts the series to payload history points.
func (s Series) History() []core.HistoryPoint {
	out := make([]core.HistoryPoint, s.Len())
	for i := range out {
		out[i] = core.HistoryPoint{
			Period:  s.Periods[i],
			Income:  s.Income[i],
			Expense: s.Expense[i],
			Net:     s.Income[i] - s.Expense[i],
		}
	}
	return out
}

// ExtendTo appends zero-valued periods so that the series ends on the period right
// before anchor. It returns the extended copy and the number of synthetic periods.
// An anchor at or before the next period leaves the series unchanged.
func (s Series) ExtendTo(anchor core.Date) (Series, int) {
	if s.Empty() {
		return s, 0
	}
	last, err := core.ParsePeriod(s.Granularity, s.Last())
	if err != nil {
		return s, 0
	}
	target := core.AddPeriods(s.Granularity, anchor, -1)
	if !target.After(last.Time) {
		return s, 0
	}

	out := s.Tail(s.Len())
	added := 0
	for cur := core.AddPeriods(s.Granularity, last, 1); !cur.After(target.Time); cur = core.AddPeriods(s.Granularity, cur, 1) {
		out.Periods = append(out.Periods, core.FormatPeriod(s.Granularity, cur))
		out.Income = append(out.Income, 0)
		out.Expense = append(out.Expense, 0)
		added++
	}
	return out, added
}
