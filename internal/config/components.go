package config

import (
	"cashcast/internal/baseline"
	"cashcast/internal/category"
	"cashcast/internal/forecast"
	"cashcast/internal/log"
	"cashcast/internal/trainer"
)

// Trainer maps the training keys onto a trainer configuration.
func (c *Config) Trainer() trainer.Config {
	tc := trainer.DefaultConfig()
	tc.DailyLags = c.DailyLags
	tc.MonthlyLags = c.MonthlyLags
	tc.MinImprovement = c.MinImprovement
	tc.DailyTrainWindow = c.TrainWindowDays
	tc.MonthlyTrainWindow = c.TrainWindowMonths
	tc.Baseline = c.baseline()
	tc.Boost.Seed = c.BoostSeed
	return tc
}

// Forecast maps the baseline and category keys onto an engine configuration.
func (c *Config) Forecast() forecast.Config {
	fc := forecast.DefaultConfig()
	fc.Baseline = c.baseline()
	fc.Category = category.Config{Decay: c.CategoryDecay, Smoothing: c.CategorySmoothing}
	return fc
}

// Logger builds the root logger for a binary at LOG_LEVEL in LOG_FORMAT.
func (c *Config) Logger(component string) *log.Logger {
	return log.New(log.Config{
		Level:     log.ParseLevel(c.LogLevel),
		Format:    log.ParseFormat(c.LogFormat),
		Component: component,
	})
}

func (c *Config) baseline() baseline.Config {
	b := baseline.DefaultConfig()
	b.Alpha = c.SeasonalAlpha
	return b
}
