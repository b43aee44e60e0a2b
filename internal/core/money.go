// Package core provides money parsing and handling utilities.
//
// Amounts are persisted as integer cents and converted to float64 only at the
// boundary of the forecasting core.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in cents.
type Money struct {
	Cents int64
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Float returns the amount in currency units.
func (m Money) Float() float64 {
	return CentsToFloat(m.Cents)
}

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// Both dot (12.34) and comma (12,34) separators are accepted. Negative, zero and
// malformed values are rejected.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,345") -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	if strings.Count(s, ",") > 0 {
		if strings.Contains(s, ".") {
			return 0, errors.New("mixed decimal separators")
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.New("invalid amount format")
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// CentsToFloat converts cents to currency units.
func CentsToFloat(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// FloatToCents converts currency units to cents, rounding half away from zero.
func FloatToCents(v float64) int64 {
	return decimal.NewFromFloat(v).Shift(2).Round(0).IntPart()
}
