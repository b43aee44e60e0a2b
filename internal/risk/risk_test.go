package risk

import (
	"testing"

	"cashcast/internal/core"

	"github.com/stretchr/testify/assert"
)

func messages(alerts []core.Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Message)
	}
	return out
}

func TestScore(t *testing.T) {
	steady := []float64{10, 12, 8, 10, 11, 9, 10}

	tests := []struct {
		name      string
		in        Input
		wantScore int
		wantMsgs  []string
	}{
		{
			name:      "calm",
			in:        Input{Expense: steady, Horizon: 7, ExpenseTotal: 70, NetTotal: 10},
			wantScore: 0,
			wantMsgs:  []string{},
		},
		{
			name:      "expense above norm",
			in:        Input{Expense: steady, Horizon: 2, ExpenseTotal: 60, NetTotal: 5},
			wantScore: 3,
			wantMsgs:  []string{MsgAboveNorm},
		},
		{
			name:      "negative net",
			in:        Input{Expense: steady, Horizon: 7, ExpenseTotal: 70, NetTotal: -1},
			wantScore: 4,
			wantMsgs:  []string{MsgNegativeNet},
		},
		{
			name:      "uncertain",
			in:        Input{Expense: steady, Horizon: 7, ExpenseTotal: 70, IncomeStd: 4, ExpenseStd: 3},
			wantScore: 2,
			wantMsgs:  []string{MsgUncertainty},
		},
		{
			name:      "all rules",
			in:        Input{Expense: steady, Horizon: 1, ExpenseTotal: 100, NetTotal: -100, IncomeStd: 10, ExpenseStd: 10},
			wantScore: 9,
			wantMsgs:  []string{MsgAboveNorm, MsgNegativeNet, MsgUncertainty},
		},
		{
			name:      "flat history never triggers above norm",
			in:        Input{Expense: []float64{0, 0, 0}, Horizon: 3, ExpenseTotal: 30},
			wantScore: 0,
			wantMsgs:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, alerts := Score(tt.in)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantMsgs, messages(alerts))
		})
	}
}

func TestScore_OnlyRecentWindow(t *testing.T) {
	hist := make([]float64, 0, 100)
	for i := 0; i < 40; i++ {
		hist = append(hist, 1000)
	}
	for i := 0; i < Window; i++ {
		hist = append(hist, float64(i%2))
	}
	score, _ := Score(Input{Expense: hist, Horizon: 1, ExpenseTotal: 5, NetTotal: 1})
	assert.Equal(t, 3, score)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, clamp(-4))
	assert.Equal(t, 10, clamp(12))
	assert.Equal(t, 7, clamp(7))
}
