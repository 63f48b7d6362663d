package model

import "time"

// MarketScope is the Breadth.Scope value for whole-market breadth.
const MarketScope = "MARKET"

// Breadth is the share of a market or sector's constituents in an uptrend
// on one date, plus indicators over that share.
type Breadth struct {
	Scope         string    `json:"scope"` // MarketScope or a sector code
	Date          time.Time `json:"date"`
	BullPercent   float64   `json:"bull_percent"`
	EMA5          float64   `json:"ema5"`
	EMA10         float64   `json:"ema10"`
	EMA20         float64   `json:"ema20"`
	DonchianUpper float64   `json:"donchian_upper"`
	DonchianLower float64   `json:"donchian_lower"`
	Total         int       `json:"total"`
}

// InUptrend reports bull percent above its 10 EMA.
func (b *Breadth) InUptrend() bool {
	return b.BullPercent > b.EMA10
}
