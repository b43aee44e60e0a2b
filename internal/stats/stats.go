package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// Std returns the population standard deviation, 0 for fewer than two values.
func Std(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(xs, nil)
	if math.IsNaN(std) {
		return 0
	}
	return std
}

// RollingMean averages the last w values. The window shrinks to the available history
// and is at least 1.
func RollingMean(xs []float64, w int) float64 {
	if len(xs) == 0 {
		return 0
	}
	w = max(1, min(w, len(xs)))
	return floats.Sum(xs[len(xs)-w:]) / float64(w)
}

// MAE is the mean absolute error between two equally long slices.
func MAE(truth, pred []float64) float64 {
	n := min(len(truth), len(pred))
	if n == 0 {
		return 0
	}
	return floats.Distance(truth[:n], pred[:n], 1) / float64(n)
}

// Sub returns a - b element-wise.
func Sub(a, b []float64) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	floats.SubTo(out, a[:n], b[:n])
	return out
}

// Tail returns the last n values (or all of them).
func Tail(xs []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n >= len(xs) {
		return xs
	}
	return xs[len(xs)-n:]
}
