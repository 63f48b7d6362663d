package indicator

import "trading-backtest/internal/model"

// Config selects the periods the Enricher computes.
type Config struct {
	EMAPeriods     []int
	ATRPeriod      int
	ADXPeriod      int
	DonchianPeriod int
}

// DefaultConfig is the standard daily set: EMA 5/10/20/50/100, ATR14,
// ADX14 and a 5-bar Donchian channel.
func DefaultConfig() Config {
	return Config{
		EMAPeriods:     []int{5, 10, 20, 50, 100},
		ATRPeriod:      14,
		ADXPeriod:      14,
		DonchianPeriod: 5,
	}
}

// Enricher fills the derived fields of a raw quote series.
type Enricher struct {
	cfg Config
}

// NewEnricher creates an Enricher.
func NewEnricher(cfg Config) *Enricher {
	return &Enricher{cfg: cfg}
}

// Enrich returns a copy of quotes (date-sorted) with EMA, ATR, ADX, Donchian
// and trend fields set. The input slice is not modified.
func (e *Enricher) Enrich(quotes []model.Quote) []model.Quote {
	out := make([]model.Quote, len(quotes))
	copy(out, quotes)
	if len(out) == 0 {
		return out
	}

	closes := make([]float64, len(out))
	for i, q := range out {
		closes[i] = q.Close
	}
	for _, p := range e.cfg.EMAPeriods {
		series := EMASeries(closes, p)
		for i := range out {
			setEMA(&out[i], p, series[i])
		}
	}

	atr := ATR(out, e.cfg.ATRPeriod)
	adx := ADX(out, e.cfg.ADXPeriod)
	upper, lower := QuoteDonchian(out, e.cfg.DonchianPeriod)
	for i := range out {
		out[i].ATR = atr[i]
		out[i].ADX = adx[i]
		out[i].DonchianUpper = upper[i]
		out[i].DonchianLower = lower[i]
		out[i].Trend = Trend(out[i])
	}
	return out
}

func setEMA(q *model.Quote, period int, v float64) {
	switch period {
	case 5:
		q.EMA5 = v
	case 10:
		q.EMA10 = v
	case 20:
		q.EMA20 = v
	case 50:
		q.EMA50 = v
	case 100:
		q.EMA100 = v
	}
}
