package indicator

import (
	"math"

	"trading-backtest/internal/model"
)

// TrueRange is the largest of the bar's range and its gaps from prevClose.
func TrueRange(q model.Quote, prevClose float64) float64 {
	return math.Max(q.High-q.Low,
		math.Max(math.Abs(q.High-prevClose), math.Abs(q.Low-prevClose)))
}

// ATR returns Wilder's Average True Range. The first value sits at index
// period and is the mean of trueRange[1..period]; bar 0 has no true range.
// Needs period+1 bars, otherwise all zeros.
func ATR(quotes []model.Quote, period int) []float64 {
	out := make([]float64, len(quotes))
	if period <= 0 || len(quotes) < period+1 {
		warnShort("ATR", len(quotes), period+1)
		return out
	}

	s := NewSMMA(period)
	for i := 1; i < len(quotes); i++ {
		s.Update(TrueRange(quotes[i], quotes[i-1].Close))
		if s.Ready() {
			out[i] = s.Value()
		}
	}
	return out
}
