// Package indicator computes technical indicators over daily quote series.
//
// Two shapes are provided: streaming indicators (EMA, SMMA) fed one value at
// a time, and batch functions that map a whole series to an output series of
// the same length. Batch outputs use 0 as the "not yet valid" sentinel for
// leading bars; callers must not read those as real values.
package indicator

import "log/slog"

// Indicator is a streaming indicator over a single float series.
type Indicator interface {
	// Name returns the indicator name (e.g., "EMA", "SMMA").
	Name() string

	// Update feeds the next value.
	Update(v float64)

	// Value returns the current value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

func warnShort(name string, bars, need int) {
	slog.Warn("indicator: insufficient history",
		"indicator", name, "bars", bars, "need", need)
}
