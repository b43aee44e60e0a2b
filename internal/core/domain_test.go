package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservationRow_UnmarshalAliases(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ObservationRow
	}{
		{"canonical", `{"period":"2025-01-02","income":10,"expense":3}`, ObservationRow{"2025-01-02", 10, 3}},
		{"daily alias", `{"date":"2025-01-02","income":1,"expense":2}`, ObservationRow{"2025-01-02", 1, 2}},
		{"monthly alias", `{"ym":"2025-01","income":5,"expense_total":4}`, ObservationRow{"2025-01", 5, 4}},
		{"missing amounts", `{"date":" 2025-01-02 "}`, ObservationRow{"2025-01-02", 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ObservationRow
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransaction_Validate(t *testing.T) {
	ok := Transaction{Date: NewDate(2025, 3, 1), Kind: KindExpense, Category: "Food", Amount: Money{Cents: 100}}
	require.NoError(t, ok.Validate())

	income := Transaction{Date: NewDate(2025, 3, 1), Kind: KindIncome, Amount: Money{Cents: 100}}
	require.NoError(t, income.Validate())

	bad := ok
	bad.Kind = "transfer"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidKind)

	bad = ok
	bad.Category = " "
	assert.ErrorIs(t, bad.Validate(), ErrEmptyCategory)

	bad = ok
	bad.Amount = Money{}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAmount)

	bad = ok
	bad.Competency = "2025-13"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidPeriodKey)
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("Competency")
	require.NoError(t, err)
	assert.Equal(t, Monthly, g)

	_, err = ParseGranularity("weekly")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.True(t, errors.Is(err, ErrInvalidGranularity))
}

func TestAddPeriods(t *testing.T) {
	d := NewDate(2025, 1, 31)
	assert.Equal(t, "2025-02-01", AddPeriods(Daily, d, 1).String())
	assert.Equal(t, "2025-02", FormatPeriod(Monthly, AddPeriods(Monthly, d, 1)))
	assert.Equal(t, "2024-12", FormatPeriod(Monthly, AddPeriods(Monthly, d, -1)))
	assert.Equal(t, "2026-01", FormatPeriod(Monthly, AddPeriods(Monthly, d, 12)))
}

func TestWeekdayMondayFirst(t *testing.T) {
	assert.Equal(t, 0, Weekday(NewDate(2025, 1, 6))) // Monday
	assert.Equal(t, 6, Weekday(NewDate(2025, 1, 5))) // Sunday
}

func TestSafeAmount(t *testing.T) {
	assert.Equal(t, 0.0, SafeAmount(-1))
	assert.Equal(t, 0.0, SafeAmount(math.NaN()))
	assert.Equal(t, 0.0, SafeAmount(math.Inf(1)))
	assert.Equal(t, 2.5, SafeAmount(2.5))
}

func TestTrainingPayload_TargetDefaultsToBaseline(t *testing.T) {
	var p TrainingPayload
	assert.Equal(t, AlgoBaseline, p.Target(TargetIncome).Algo)

	p.Targets = map[string]TrainedTarget{TargetExpense: {Algo: AlgoLinear, ResidStd: 2}}
	assert.Equal(t, AlgoLinear, p.Target(TargetExpense).Algo)
}
