package regress

import (
	"errors"
	"fmt"
	"math"

	"cashcast/internal/core"
)

var (
	ErrEmptyTrainingSet = errors.New("empty training set")
	ErrShapeMismatch    = errors.New("feature shape mismatch")
	ErrNonFinite        = errors.New("non-finite value")
)

// Model is a fitted regressor. Implementations are plain parameter structs so they
// can be serialized without reflection tricks.
type Model interface {
	Algo() core.Algo
	NumFeatures() int
	Predict(x []float64) (float64, error)
}

// Capability records whether the regression runtime is usable in this process.
type Capability struct {
	Available bool
	Reason    string
}

// Unavailable returns a capability that forces the baseline-only path.
func Unavailable(reason string) Capability {
	return Capability{Available: false, Reason: reason}
}

// Detect resolves the capability once at startup. A disabled runtime is reported as
// such; an enabled one must pass a tiny self-check fit.
func Detect(enabled bool) (c Capability) {
	if !enabled {
		return Unavailable("regression runtime disabled by configuration")
	}
	defer func() {
		if r := recover(); r != nil {
			c = Unavailable(fmt.Sprintf("regression runtime self-check panicked: %v", r))
		}
	}()

	X := [][]float64{{0, 1}, {1, 0}, {2, 1}, {3, 0}, {4, 1}}
	y := []float64{1, 3, 5, 7, 9}
	m, err := FitLinear(X, y, DefaultRidgeLambda)
	if err != nil {
		return Unavailable(fmt.Sprintf("regression runtime self-check failed: %v", err))
	}
	p, err := m.Predict([]float64{5, 0})
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
		return Unavailable("regression runtime self-check produced an invalid prediction")
	}
	return Capability{Available: true}
}

func checkTrainingSet(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 || len(y) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(X), len(y))
	}
	p := len(X[0])
	if p == 0 {
		return 0, fmt.Errorf("%w: zero-width rows", ErrShapeMismatch)
	}
	for i, row := range X {
		if len(row) != p {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), p)
		}
		if !finite(row...) {
			return 0, fmt.Errorf("%w in row %d", ErrNonFinite, i)
		}
	}
	if !finite(y...) {
		return 0, fmt.Errorf("%w in targets", ErrNonFinite)
	}
	return p, nil
}

func checkInput(x []float64, p int) error {
	if len(x) != p {
		return fmt.Errorf("%w: got %d features, model expects %d", ErrShapeMismatch, len(x), p)
	}
	if !finite(x...) {
		return ErrNonFinite
	}
	return nil
}

func finite(xs ...float64) bool {
	for _, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
