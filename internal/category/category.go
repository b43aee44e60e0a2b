// Package category spreads a predicted expense total over spending categories using
// recency-weighted historical proportions.
package category

import (
	"math"
	"sort"
	"strings"

	"cashcast/internal/core"
)

const (
	DefaultDecay     = 0.965
	DefaultSmoothing = 1.0
	DefaultTopK      = 8
)

type Config struct {
	// Decay is the per-date multiplicative weight; the most recent date weighs 1.
	Decay float64
	// Smoothing is added to every category that has any weight.
	Smoothing float64
}

func DefaultConfig() Config {
	return Config{Decay: DefaultDecay, Smoothing: DefaultSmoothing}
}

// Weights maps a category to its non-negative accumulated weight.
type Weights map[string]float64

// BuildProfile computes category weights from per-day category expense rows. Rows with
// an invalid date are ignored, rows with a non-positive expense add no weight.
func BuildProfile(cfg Config, rows []core.CategoryRow) Weights {
	if cfg.Decay <= 0 || cfg.Decay > 1 {
		cfg.Decay = DefaultDecay
	}
	if cfg.Smoothing < 0 {
		cfg.Smoothing = DefaultSmoothing
	}

	type validRow struct {
		date string
		row  core.CategoryRow
	}
	valid := make([]validRow, 0, len(rows))
	dateSet := make(map[string]struct{})
	for _, r := range rows {
		d, err := core.ParseDay(r.Date)
		if err != nil {
			continue
		}
		key := d.String()
		valid = append(valid, validRow{date: key, row: r})
		dateSet[key] = struct{}{}
	}
	if len(valid) == 0 {
		return Weights{}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	total := len(dates)
	dateWeight := make(map[string]float64, total)
	for idx, d := range dates {
		dateWeight[d] = math.Pow(cfg.Decay, float64(total-1-idx))
	}

	w := Weights{}
	for _, v := range valid {
		amount := core.SafeAmount(v.row.Expense)
		if amount <= 0 {
			continue
		}
		name := strings.TrimSpace(v.row.Category)
		if name == "" {
			name = core.DefaultCategory
		}
		w[name] += amount * dateWeight[v.date]
	}
	if cfg.Smoothing > 0 {
		for k := range w {
			w[k] += cfg.Smoothing
		}
	}
	return w
}

// Allocate distributes total over the weights proportionally. Without usable weights
// the whole amount goes to the default category. The result sums to total.
func Allocate(total float64, w Weights) map[string]float64 {
	total = core.SafeAmount(total)
	sum := 0.0
	for _, v := range w {
		sum += core.SafeAmount(v)
	}
	if sum <= 0 {
		return map[string]float64{core.DefaultCategory: total}
	}
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = total * core.SafeAmount(v) / sum
	}
	return out
}

// Top returns the k largest allocations with their share of total, largest first.
// Ties are broken by category name so the order is stable.
func Top(alloc map[string]float64, total float64, k int) []core.CategoryShare {
	if k < 1 {
		k = 1
	}
	out := make([]core.CategoryShare, 0, len(alloc))
	for name, amount := range alloc {
		share := 0.0
		if total > 0 {
			share = amount / total
		}
		out = append(out, core.CategoryShare{Category: name, Amount: amount, Share: share})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Accumulate adds every allocation in alloc into sum.
func Accumulate(sum, alloc map[string]float64) {
	for k, v := range alloc {
		sum[k] += v
	}
}
