// Package stats provides the small set of descriptive statistics the forecasting
// packages share. Standard deviations are population deviations (divide by n).
package stats
