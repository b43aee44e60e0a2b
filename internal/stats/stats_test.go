package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeanAndStd(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(xs), 1e-12)
	assert.InDelta(t, 2.0, Std(xs), 1e-12)

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Std([]float64{3}))
}

func TestRollingMean(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.InDelta(t, 7.0, RollingMean(xs, 7), 1e-12)
	assert.InDelta(t, 10.0, RollingMean(xs, 1), 1e-12)
	assert.InDelta(t, 10.0, RollingMean(xs, 0), 1e-12)
	assert.InDelta(t, 5.5, RollingMean(xs, 100), 1e-12)
	assert.Equal(t, 0.0, RollingMean(nil, 7))
}

func TestMAE(t *testing.T) {
	assert.InDelta(t, 1.0, MAE([]float64{1, 2, 3}, []float64{2, 1, 4}), 1e-12)
	assert.Equal(t, 0.0, MAE(nil, nil))
	assert.False(t, math.IsNaN(MAE([]float64{1}, []float64{1})))
}

func TestSubAndTail(t *testing.T) {
	assert.Equal(t, []float64{1, -1}, Sub([]float64{3, 1}, []float64{2, 2}))
	assert.Equal(t, []float64{3, 4}, Tail([]float64{1, 2, 3, 4}, 2))
	assert.Equal(t, []float64{1}, Tail([]float64{1}, 5))
}
