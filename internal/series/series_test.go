package series

import (
	"testing"
	"time"

	"cashcast/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertGapless(t *testing.T, s Series) {
	t.Helper()
	for i := 1; i < s.Len(); i++ {
		prev, err := core.ParsePeriod(s.Granularity, s.Periods[i-1])
		require.NoError(t, err)
		next := core.FormatPeriod(s.Granularity, core.AddPeriods(s.Granularity, prev, 1))
		require.Equal(t, next, s.Periods[i], "gap after %s", s.Periods[i-1])
	}
}

func TestBuildDaily_FillsGapsAndSorts(t *testing.T) {
	rows := []core.ObservationRow{
		{Period: "2025-01-05", Income: 10, Expense: 1},
		{Period: "2025-01-01", Income: 5, Expense: 2},
		{Period: "garbage", Income: 99},
		{Period: "", Income: 99},
		{Period: "2025-01-03", Income: 7, Expense: 0},
		{Period: "2025-01-03", Income: 8, Expense: 4}, // last wins
	}

	s := BuildDaily(rows)

	require.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03", "2025-01-04", "2025-01-05"}, s.Periods)
	assert.Equal(t, []float64{5, 0, 8, 0, 10}, s.Income)
	assert.Equal(t, []float64{2, 0, 4, 0, 1}, s.Expense)
	assertGapless(t, s)
}

func TestBuildDaily_NoValidRows(t *testing.T) {
	s := BuildDaily([]core.ObservationRow{{Period: "2025-13-01"}, {Period: "01/02/2025"}})
	assert.True(t, s.Empty())
	assert.Empty(t, s.Income)
	assert.Empty(t, s.Expense)

	assert.True(t, BuildDaily(nil).Empty())
}

func TestBuildDaily_CoercesBadAmounts(t *testing.T) {
	s := BuildDaily([]core.ObservationRow{{Period: "2025-01-01", Income: -3, Expense: 2}})
	assert.Equal(t, []float64{0}, s.Income)
	assert.Equal(t, []float64{2}, s.Expense)
}

func TestBuildMonthly_AcrossYearBoundary(t *testing.T) {
	rows := []core.ObservationRow{
		{Period: "2025-02", Income: 3, Expense: 1},
		{Period: "2024-11", Income: 1, Expense: 2},
		{Period: "2024-13", Income: 100},
	}
	s := BuildMonthly(rows)
	require.Equal(t, []string{"2024-11", "2024-12", "2025-01", "2025-02"}, s.Periods)
	assert.Equal(t, []float64{1, 0, 0, 3}, s.Income)
	assertGapless(t, s)
}

func TestBuild_EveryPeriodExactlyOnce(t *testing.T) {
	start := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	var rows []core.ObservationRow
	for i := 0; i < 40; i += 3 {
		rows = append(rows, core.ObservationRow{Period: start.AddDate(0, 0, i).Format(core.DayLayout), Income: 1})
	}
	s := BuildDaily(rows)
	assert.Equal(t, 40-39%3, s.Len())
	seen := map[string]bool{}
	for _, p := range s.Periods {
		assert.False(t, seen[p])
		seen[p] = true
	}
	assertGapless(t, s)
}

func TestExtendTo(t *testing.T) {
	s := BuildDaily([]core.ObservationRow{{Period: "2025-01-01", Income: 1}, {Period: "2025-01-10", Expense: 2}})

	anchor := core.NewDate(2025, 2, 9) // 30 days after the last period
	ext, added := s.ExtendTo(anchor)
	assert.Equal(t, 29, added)
	assert.Equal(t, "2025-02-08", ext.Last())
	assert.Equal(t, s.Len()+29, ext.Len())
	assert.Equal(t, 10, s.Len(), "original is not modified")
	assertGapless(t, ext)

	same, added := s.ExtendTo(core.NewDate(2025, 1, 11))
	assert.Equal(t, 0, added)
	assert.Equal(t, s.Len(), same.Len())

	_, added = s.ExtendTo(core.NewDate(2024, 12, 1))
	assert.Equal(t, 0, added)
}

func TestExtendTo_Monthly(t *testing.T) {
	s := BuildMonthly([]core.ObservationRow{{Period: "2025-01", Income: 1}})
	ext, added := s.ExtendTo(core.NewDate(2025, 4, 1))
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03"}, ext.Periods)
}

func TestHistoryRoundTrip(t *testing.T) {
	s := BuildDaily([]core.ObservationRow{{Period: "2025-01-01", Income: 4, Expense: 1}, {Period: "2025-01-03", Income: 2}})
	h := s.History()
	require.Len(t, h, 3)
	assert.Equal(t, 3.0, h[0].Net)
	back := FromHistory(core.Daily, h)
	assert.Equal(t, s, back)
}
