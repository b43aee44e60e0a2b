package trainer

import (
	"math"

	"cashcast/internal/core"
)

// Scores are the walk-forward MAEs of every candidate. A candidate whose fit failed
// scores +Inf.
type Scores struct {
	Baseline float64
	Linear   float64
	Boosted  float64
}

// Select picks the candidate with the lowest validation error. A model only replaces
// the baseline when it is better by at least minImprovement (relative), unless force
// is set.
func Select(s Scores, minImprovement float64, force bool) (core.Algo, float64) {
	best, bestMAE := core.AlgoBaseline, s.Baseline
	if less(s.Linear, bestMAE) {
		best, bestMAE = core.AlgoLinear, s.Linear
	}
	if less(s.Boosted, bestMAE) {
		best, bestMAE = core.AlgoBoosted, s.Boosted
	}
	if !force && best != core.AlgoBaseline && bestMAE >= (1-minImprovement)*s.Baseline {
		return core.AlgoBaseline, s.Baseline
	}
	return best, bestMAE
}

func less(a, b float64) bool {
	return !math.IsNaN(a) && !math.IsInf(a, 1) && a < b
}
