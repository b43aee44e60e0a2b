package regress

import (
	"fmt"
	"math"

	"cashcast/internal/core"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultRidgeLambda is the fixed L2 strength applied to standardized inputs.
const DefaultRidgeLambda = 3.0

// Linear is a ridge regression fitted on standardized features. Prediction is
// intercept + Σ coef[j]·(x[j]-mean[j])/scale[j].
type Linear struct {
	Means     []float64 `json:"means"`
	Scales    []float64 `json:"scales"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (m *Linear) Algo() core.Algo { return core.AlgoLinear }

func (m *Linear) NumFeatures() int { return len(m.Coef) }

func (m *Linear) Predict(x []float64) (float64, error) {
	if err := checkInput(x, len(m.Coef)); err != nil {
		return 0, err
	}
	out := m.Intercept
	for j, c := range m.Coef {
		out += c * (x[j] - m.Means[j]) / m.Scales[j]
	}
	return out, nil
}

// Validate checks the structural invariants of a decoded model.
func (m *Linear) Validate() error {
	p := len(m.Coef)
	if p == 0 || len(m.Means) != p || len(m.Scales) != p {
		return fmt.Errorf("%w: linear model with %d coefficients, %d means, %d scales", ErrShapeMismatch, p, len(m.Means), len(m.Scales))
	}
	for _, s := range m.Scales {
		if s == 0 {
			return fmt.Errorf("linear model has a zero scale")
		}
	}
	if !finite(m.Coef...) || !finite(m.Means...) || !finite(m.Scales...) || !finite(m.Intercept) {
		return ErrNonFinite
	}
	return nil
}

// FitLinear fits ridge regression with the intercept left unpenalized. Constant
// columns get unit scale, so they contribute nothing after centering.
func FitLinear(X [][]float64, y []float64, lambda float64) (*Linear, error) {
	p, err := checkTrainingSet(X, y)
	if err != nil {
		return nil, err
	}
	if lambda < 0 {
		return nil, fmt.Errorf("negative ridge lambda %v", lambda)
	}
	n := len(X)

	means := make([]float64, p)
	scales := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		means[j], scales[j] = mean, std
	}

	Z := mat.NewDense(n, p, nil)
	for i, row := range X {
		for j, v := range row {
			Z.Set(i, j, (v-means[j])/scales[j])
		}
	}
	yMean := stat.Mean(y, nil)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, Z.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lambda)
	}
	var rhs mat.VecDense
	rhs.MulVec(Z.T(), yc)

	var w mat.VecDense
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); ok {
		if err := chol.SolveVecTo(&w, &rhs); err != nil {
			return nil, fmt.Errorf("solve ridge system: %w", err)
		}
	} else if err := w.SolveVec(&gram, &rhs); err != nil {
		return nil, fmt.Errorf("solve ridge system: %w", err)
	}

	coef := make([]float64, p)
	for j := range coef {
		coef[j] = w.AtVec(j)
	}
	m := &Linear{Means: means, Scales: scales, Coef: coef, Intercept: yMean}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
