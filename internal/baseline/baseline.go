// Package baseline implements the parameter-free predictors every trained model is
// measured against and that the forecast engine falls back to.
package baseline

import (
	"cashcast/internal/core"
	"cashcast/internal/stats"
)

const (
	DefaultAlpha         = 0.6
	DefaultWindow        = 7
	DefaultLookback      = 56
	DefaultMonthlyWindow = 3
)

// Config holds the seasonal blend parameters.
type Config struct {
	// Alpha weighs the same-weekday mean; 1-Alpha weighs the rolling mean.
	Alpha float64
	// Window is the rolling-mean length.
	Window int
	// Lookback bounds how many trailing observations are scanned for same-weekday values.
	Lookback int
	// MonthlyWindow is the rolling-mean length of the monthly baseline.
	MonthlyWindow int
}

func DefaultConfig() Config {
	return Config{
		Alpha:         DefaultAlpha,
		Window:        DefaultWindow,
		Lookback:      DefaultLookback,
		MonthlyWindow: DefaultMonthlyWindow,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Alpha < 0 || c.Alpha > 1 {
		c.Alpha = d.Alpha
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.Lookback <= 0 {
		c.Lookback = d.Lookback
	}
	if c.MonthlyWindow <= 0 {
		c.MonthlyWindow = d.MonthlyWindow
	}
	return c
}

// Seasonal predicts the value for target from a daily history. dates and vals are
// parallel and ordered; unparseable dates are skipped when collecting same-weekday
// values.
func Seasonal(cfg Config, dates []string, vals []float64, target core.Date) float64 {
	cfg = cfg.withDefaults()
	if len(vals) == 0 {
		return 0
	}
	ma := stats.RollingMean(vals, cfg.Window)

	n := min(len(dates), len(vals))
	lookback := min(n, cfg.Lookback)
	dow := core.Weekday(target)

	var same []float64
	for i := n - lookback; i < n; i++ {
		d, err := core.ParseDay(dates[i])
		if err != nil {
			continue
		}
		if core.Weekday(d) == dow {
			same = append(same, vals[i])
		}
	}
	if len(same) == 0 {
		return ma
	}
	return cfg.Alpha*stats.Mean(same) + (1-cfg.Alpha)*ma
}

// Monthly is the production baseline for monthly series.
func Monthly(cfg Config, vals []float64) float64 {
	cfg = cfg.withDefaults()
	return stats.RollingMean(vals, cfg.MonthlyWindow)
}

// LastValue returns the most recent observation, 0 for an empty history.
func LastValue(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return vals[len(vals)-1]
}

// Predict dispatches to the production baseline for g.
func Predict(cfg Config, g core.Granularity, dates []string, vals []float64, target core.Date) float64 {
	if g == core.Monthly {
		return Monthly(cfg, vals)
	}
	return Seasonal(cfg, dates, vals, target)
}
