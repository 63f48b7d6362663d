package indicator

import "trading-backtest/internal/model"

// Donchian returns the rolling max and min of values over the trailing
// period values. Near the start the window shrinks to the available history.
func Donchian(values []float64, period int) (upper, lower []float64) {
	upper = make([]float64, len(values))
	lower = make([]float64, len(values))
	if period <= 0 {
		return upper, lower
	}
	for i := range values {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		hi, lo := values[start], values[start]
		for _, v := range values[start+1 : i+1] {
			if v > hi {
				hi = v
			}
			if v < lo {
				lo = v
			}
		}
		upper[i], lower[i] = hi, lo
	}
	return upper, lower
}

// QuoteDonchian is the price channel: highest high and lowest low.
func QuoteDonchian(quotes []model.Quote, period int) (upper, lower []float64) {
	highs := make([]float64, len(quotes))
	lows := make([]float64, len(quotes))
	for i, q := range quotes {
		highs[i], lows[i] = q.High, q.Low
	}
	upper, _ = Donchian(highs, period)
	_, lower = Donchian(lows, period)
	return upper, lower
}

// Trend labels a bar "Uptrend" when EMA5 > EMA10 > EMA20 and close > EMA50.
func Trend(q model.Quote) string {
	if q.EMA5 > q.EMA10 && q.EMA10 > q.EMA20 && q.Close > q.EMA50 {
		return model.TrendUp
	}
	return model.TrendDown
}
