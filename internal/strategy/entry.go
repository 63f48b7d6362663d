package strategy

import (
	"fmt"

	"trading-backtest/internal/model"
)

// AlwaysTrue enters on every bar.
type AlwaysTrue struct{}

func (AlwaysTrue) Evaluate(*model.Stock, model.Quote, *model.BacktestContext) bool { return true }
func (AlwaysTrue) Description() string                                              { return "Always" }

// Uptrend requires EMA10 > EMA20 and close > EMA50.
type Uptrend struct{}

func (Uptrend) Evaluate(_ *model.Stock, q model.Quote, _ *model.BacktestContext) bool {
	return q.InUptrend()
}
func (Uptrend) Description() string { return "Stock in uptrend" }

// PriceAboveEMA requires close above the given EMA.
type PriceAboveEMA struct {
	Period int
}

func (c PriceAboveEMA) Evaluate(_ *model.Stock, q model.Quote, _ *model.BacktestContext) bool {
	ema, ok := q.EMA(c.Period)
	return ok && q.Close > ema
}

func (c PriceAboveEMA) Description() string { return fmt.Sprintf("Price > %dEMA", c.Period) }

// MinimumPrice filters out cheap stocks.
type MinimumPrice struct {
	Min float64
}

func (c MinimumPrice) Evaluate(_ *model.Stock, q model.Quote, _ *model.BacktestContext) bool {
	return q.Close >= c.Min
}

func (c MinimumPrice) Description() string { return fmt.Sprintf("Price ≥ $%.2f", c.Min) }

// ADXRange requires trend strength within [Min, Max].
type ADXRange struct {
	Min, Max float64
}

func (c ADXRange) Evaluate(_ *model.Stock, q model.Quote, _ *model.BacktestContext) bool {
	return q.ADX >= c.Min && q.ADX <= c.Max
}

func (c ADXRange) Description() string {
	return fmt.Sprintf("%.0f ≤ ADX ≤ %.0f", c.Min, c.Max)
}

func (c ADXRange) EvaluateWithDetails(s *model.Stock, q model.Quote, bc *model.BacktestContext) ConditionResult {
	passed := c.Evaluate(s, q, bc)
	return ConditionResult{
		Type:        "adxRange",
		Description: c.Description(),
		Passed:      passed,
		Actual:      fmt.Sprintf("%.1f", q.ADX),
		Threshold:   fmt.Sprintf("%.0f-%.0f", c.Min, c.Max),
		Message:     fmt.Sprintf("ADX: %.1f (%s) %s", q.ADX, adxStrength(q.ADX), mark(passed)),
	}
}

func adxStrength(adx float64) string {
	switch {
	case adx < 20:
		return "weak/ranging"
	case adx < 25:
		return "emerging"
	case adx < 50:
		return "strong"
	case adx < 75:
		return "very strong"
	}
	return "extreme"
}

// MarketBreadthAbove requires market bull percent ≥ Threshold.
type MarketBreadthAbove struct {
	Threshold float64
}

func (c MarketBreadthAbove) Evaluate(_ *model.Stock, q model.Quote, bc *model.BacktestContext) bool {
	b, ok := bc.MarketBreadth(q.Date)
	return ok && b.BullPercent >= c.Threshold
}

func (c MarketBreadthAbove) Description() string {
	return fmt.Sprintf("Market breadth ≥ %.0f%%", c.Threshold)
}

func (c MarketBreadthAbove) EvaluateWithDetails(s *model.Stock, q model.Quote, bc *model.BacktestContext) ConditionResult {
	b, ok := bc.MarketBreadth(q.Date)
	if !ok {
		return ConditionResult{Type: "marketBreadthAbove", Description: c.Description(),
			Message: "No market breadth data " + mark(false)}
	}
	passed := b.BullPercent >= c.Threshold
	return ConditionResult{
		Type:        "marketBreadthAbove",
		Description: c.Description(),
		Passed:      passed,
		Actual:      fmt.Sprintf("%.1f%%", b.BullPercent),
		Threshold:   fmt.Sprintf("≥ %.0f%%", c.Threshold),
		Message:     fmt.Sprintf("Market breadth %.1f%% %s", b.BullPercent, mark(passed)),
	}
}

// SectorBreadthAbove requires the stock's sector bull percent ≥ Threshold.
// Stocks without sector breadth never pass.
type SectorBreadthAbove struct {
	Threshold float64
}

func (c SectorBreadthAbove) Evaluate(s *model.Stock, q model.Quote, bc *model.BacktestContext) bool {
	b, ok := bc.SectorBreadth(s.Sector, q.Date)
	return ok && b.BullPercent >= c.Threshold
}

func (c SectorBreadthAbove) Description() string {
	return fmt.Sprintf("Sector breadth ≥ %.0f%%", c.Threshold)
}

// MarketUptrend requires market bull percent above its 10 EMA.
type MarketUptrend struct{}

func (MarketUptrend) Evaluate(_ *model.Stock, q model.Quote, bc *model.BacktestContext) bool {
	b, ok := bc.MarketBreadth(q.Date)
	return ok && b.InUptrend()
}
func (MarketUptrend) Description() string { return "Market in uptrend" }

// SectorUptrend requires sector bull percent above its 10 EMA.
type SectorUptrend struct{}

func (SectorUptrend) Evaluate(s *model.Stock, q model.Quote, bc *model.BacktestContext) bool {
	b, ok := bc.SectorBreadth(s.Sector, q.Date)
	return ok && b.InUptrend()
}
func (SectorUptrend) Description() string { return "Sector in uptrend" }

// SPYUptrend requires the reference index in an uptrend on the same date.
type SPYUptrend struct{}

func (SPYUptrend) Evaluate(_ *model.Stock, q model.Quote, bc *model.BacktestContext) bool {
	spy, ok := bc.SPYQuote(q.Date)
	return ok && spy.InUptrend()
}
func (SPYUptrend) Description() string { return "SPY in uptrend" }

func (c SPYUptrend) EvaluateWithDetails(s *model.Stock, q model.Quote, bc *model.BacktestContext) ConditionResult {
	passed := c.Evaluate(s, q, bc)
	actual := "Not uptrend"
	if passed {
		actual = "Uptrend"
	}
	return ConditionResult{
		Type:        "spyUptrend",
		Description: c.Description(),
		Passed:      passed,
		Actual:      actual,
		Threshold:   "10 > 20 EMA, price > 50 EMA",
		Message:     c.Description() + " " + mark(passed),
	}
}

// PriceNearDonchianHigh requires close within MaxDistancePercent of the
// Donchian upper band.
type PriceNearDonchianHigh struct {
	MaxDistancePercent float64
}

func (c PriceNearDonchianHigh) distance(q model.Quote) (float64, bool) {
	if q.DonchianUpper <= 0 || q.Close <= 0 {
		return 0, false
	}
	return (q.DonchianUpper - q.Close) / q.Close * 100, true
}

func (c PriceNearDonchianHigh) Evaluate(_ *model.Stock, q model.Quote, _ *model.BacktestContext) bool {
	d, ok := c.distance(q)
	return ok && d <= c.MaxDistancePercent
}

func (c PriceNearDonchianHigh) Description() string {
	return fmt.Sprintf("Price near Donchian high (within %.1f%%)", c.MaxDistancePercent)
}

func (c PriceNearDonchianHigh) EvaluateWithDetails(s *model.Stock, q model.Quote, bc *model.BacktestContext) ConditionResult {
	d, _ := c.distance(q)
	passed := c.Evaluate(s, q, bc)
	return ConditionResult{
		Type:        "priceNearDonchianHigh",
		Description: c.Description(),
		Passed:      passed,
		Actual:      fmt.Sprintf("%.2f%% below Donchian high", d),
		Threshold:   fmt.Sprintf("≤ %.1f%%", c.MaxDistancePercent),
		Message:     fmt.Sprintf("Price %.2f%% from Donchian high %s", d, mark(passed)),
	}
}

// VolumeAboveAverage requires volume ≥ Multiplier × the average volume of
// the bars in the preceding Lookback calendar days (at most Lookback bars,
// at least half that many).
type VolumeAboveAverage struct {
	Multiplier float64
	Lookback   int
}

func (c VolumeAboveAverage) average(s *model.Stock, q model.Quote) (float64, bool) {
	end := s.IndexOnOrAfter(q.Date)
	start := s.IndexOnOrAfter(q.Date.AddDate(0, 0, -c.Lookback))
	hist := s.Quotes[start:end]
	if len(hist) > c.Lookback {
		hist = hist[len(hist)-c.Lookback:]
	}
	if len(hist) == 0 || len(hist) < c.Lookback/2 {
		return 0, false
	}
	var sum float64
	for _, h := range hist {
		sum += float64(h.Volume)
	}
	return sum / float64(len(hist)), true
}

func (c VolumeAboveAverage) Evaluate(s *model.Stock, q model.Quote, _ *model.BacktestContext) bool {
	avg, ok := c.average(s, q)
	return ok && float64(q.Volume) >= avg*c.Multiplier
}

func (c VolumeAboveAverage) Description() string {
	return fmt.Sprintf("Volume ≥ %.1f× avg (%d days)", c.Multiplier, c.Lookback)
}

func (c VolumeAboveAverage) EvaluateWithDetails(s *model.Stock, q model.Quote, _ *model.BacktestContext) ConditionResult {
	avg, ok := c.average(s, q)
	if !ok {
		return ConditionResult{Type: "volumeAboveAverage", Description: c.Description(),
			Message: "Insufficient historical data " + mark(false)}
	}
	passed := float64(q.Volume) >= avg*c.Multiplier
	ratio := float64(q.Volume) / avg
	return ConditionResult{
		Type:        "volumeAboveAverage",
		Description: c.Description(),
		Passed:      passed,
		Actual:      fmt.Sprintf("%.2f×", ratio),
		Threshold:   fmt.Sprintf("≥ %.1f×", c.Multiplier),
		Message:     fmt.Sprintf("Volume: %d (%.2f× avg) %s", q.Volume, ratio, mark(passed)),
	}
}

// NotInOrderBlock rejects candles whose body overlaps a live bearish order
// block at least AgeInDays trading days old.
type NotInOrderBlock struct {
	AgeInDays int
}

func (c NotInOrderBlock) Evaluate(s *model.Stock, q model.Quote, _ *model.BacktestContext) bool {
	return !s.WithinOrderBlock(q, c.AgeInDays)
}

func (c NotInOrderBlock) Description() string {
	return fmt.Sprintf("Not in order block (age > %dd)", c.AgeInDays)
}

// BullishCandle requires close above open by at least MinPercent.
type BullishCandle struct {
	MinPercent float64
}

func (c BullishCandle) Evaluate(_ *model.Stock, q model.Quote, _ *model.BacktestContext) bool {
	if q.Open <= 0 {
		return false
	}
	return (q.Close-q.Open)/q.Open*100 >= c.MinPercent
}

func (c BullishCandle) Description() string {
	return fmt.Sprintf("Bullish candle (close > open by ≥%.1f%%)", c.MinPercent)
}

// PriceAbovePreviousLow requires close above the prior bar's low.
type PriceAbovePreviousLow struct{}

func (PriceAbovePreviousLow) Evaluate(s *model.Stock, q model.Quote, _ *model.BacktestContext) bool {
	prev, ok := s.PreviousQuote(q.Date)
	if !ok {
		return q.Close > 0
	}
	return q.Close > prev.Low
}
func (PriceAbovePreviousLow) Description() string { return "Price above previous low" }

// MarketBreadthNearDonchianLow requires market breadth in the bottom
// Percentile of its Donchian channel.
type MarketBreadthNearDonchianLow struct {
	Percentile float64
}

func (c MarketBreadthNearDonchianLow) Evaluate(_ *model.Stock, q model.Quote, bc *model.BacktestContext) bool {
	b, ok := bc.MarketBreadth(q.Date)
	if !ok {
		return false
	}
	width := b.DonchianUpper - b.DonchianLower
	if width <= 0 {
		return false
	}
	return b.BullPercent <= b.DonchianLower+width*c.Percentile
}

func (c MarketBreadthNearDonchianLow) Description() string {
	return fmt.Sprintf("Market breadth near Donchian low (bottom %.0f%%)", c.Percentile*100)
}
