// Package risk turns forecast totals and recent expense history into alerts and a
// bounded 0..10 score.
package risk

import (
	"cashcast/internal/core"
	"cashcast/internal/stats"
)

const (
	// Window is how many trailing periods of expense history are compared.
	Window = 60

	MaxScore = 10

	weightAboveNorm   = 3
	weightNegativeNet = 4
	weightUncertainty = 2

	uncertaintyRatio = 0.6
)

const (
	MsgAboveNorm   = "Average predicted expense is above the recent norm."
	MsgNegativeNet = "Predicted net balance over the horizon is negative."
	MsgUncertainty = "High uncertainty: history is unstable or sparse."
)

// Input is what the scorer needs from one forecast call.
type Input struct {
	// Expense is the (possibly zero-extended) expense history followed by the
	// predicted periods, oldest first.
	Expense      []float64
	Horizon      int
	ExpenseTotal float64
	NetTotal     float64
	IncomeStd    float64
	ExpenseStd   float64
}

// Score applies the alert rules and returns the clamped score with the alerts raised.
func Score(in Input) (int, []core.Alert) {
	recent := stats.Tail(in.Expense, Window)
	mu := stats.Mean(recent)
	sigma := stats.Std(recent)

	score := 0
	alerts := []core.Alert{}

	avg := 0.0
	if in.Horizon > 0 {
		avg = in.ExpenseTotal / float64(in.Horizon)
	}
	if sigma > 0 && avg > mu+sigma {
		alerts = append(alerts, core.Alert{Level: core.AlertWarn, Message: MsgAboveNorm})
		score += weightAboveNorm
	}

	if in.NetTotal < 0 {
		alerts = append(alerts, core.Alert{Level: core.AlertWarn, Message: MsgNegativeNet})
		score += weightNegativeNet
	}

	spread := in.IncomeStd + in.ExpenseStd
	if spread > 0 && spread > uncertaintyRatio*(mu+1e-9) {
		alerts = append(alerts, core.Alert{Level: core.AlertInfo, Message: MsgUncertainty})
		score += weightUncertainty
	}

	return clamp(score), alerts
}

func clamp(s int) int {
	return max(0, min(MaxScore, s))
}
