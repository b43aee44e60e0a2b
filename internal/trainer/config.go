package trainer

import (
	"cashcast/internal/baseline"
	"cashcast/internal/regress"
)

const (
	DefaultMinSamples     = 20
	DefaultValFraction    = 0.2
	DefaultMinValSteps    = 10
	DefaultMinStart       = 5
	DefaultMinImprovement = 0.02
	DefaultResidTail      = 14
	DefaultHistoryWindow  = 90

	DefaultDailyTrainWindow   = 365
	DefaultMonthlyTrainWindow = 120
)

// Config carries every constant that shapes a training run. The zero value of any
// field falls back to its default, except MinImprovement where only a negative
// value does.
type Config struct {
	// MinSamples is the smallest supervised set worth validating models on.
	MinSamples int
	// ValFraction of the supervised set is held out for walk-forward validation,
	// but never fewer than MinValSteps steps.
	ValFraction float64
	MinValSteps int
	// MinStart is the smallest training prefix a walk-forward step fits on.
	MinStart int
	// MinImprovement is the relative margin a model must beat the baseline by.
	MinImprovement float64
	// ResidTail is the minimum tail length used for the baseline residual spread.
	ResidTail int
	// HistoryWindow bounds how many trailing daily periods the payload carries.
	HistoryWindow int
	// DailyTrainWindow and MonthlyTrainWindow bound how many trailing periods a run
	// trains on.
	DailyTrainWindow   int
	MonthlyTrainWindow int

	DailyLags     int
	MonthlyLags   int
	Baseline      baseline.Config
	RidgeLambda   float64
	Boost         regress.BoostParams
}

func DefaultConfig() Config {
	return Config{
		MinSamples:     DefaultMinSamples,
		ValFraction:    DefaultValFraction,
		MinValSteps:    DefaultMinValSteps,
		MinStart:       DefaultMinStart,
		MinImprovement: DefaultMinImprovement,
		ResidTail:      DefaultResidTail,
		HistoryWindow:  DefaultHistoryWindow,

		DailyTrainWindow:   DefaultDailyTrainWindow,
		MonthlyTrainWindow: DefaultMonthlyTrainWindow,

		Baseline:       baseline.DefaultConfig(),
		RidgeLambda:    regress.DefaultRidgeLambda,
		Boost:          regress.DefaultBoostParams(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinSamples <= 0 {
		c.MinSamples = d.MinSamples
	}
	if c.ValFraction <= 0 || c.ValFraction >= 1 {
		c.ValFraction = d.ValFraction
	}
	if c.MinValSteps <= 0 {
		c.MinValSteps = d.MinValSteps
	}
	if c.MinStart <= 0 {
		c.MinStart = d.MinStart
	}
	if c.MinImprovement < 0 || c.MinImprovement >= 1 {
		c.MinImprovement = d.MinImprovement
	}
	if c.ResidTail <= 0 {
		c.ResidTail = d.ResidTail
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = d.HistoryWindow
	}
	if c.DailyTrainWindow <= 0 {
		c.DailyTrainWindow = d.DailyTrainWindow
	}
	if c.MonthlyTrainWindow <= 0 {
		c.MonthlyTrainWindow = d.MonthlyTrainWindow
	}
	if c.Baseline == (baseline.Config{}) {
		c.Baseline = d.Baseline
	}
	if c.RidgeLambda <= 0 {
		c.RidgeLambda = d.RidgeLambda
	}
	if c.Boost.MaxIter == 0 {
		c.Boost = d.Boost
	}
	return c
}
