package model

import "time"

// OrderBlockType is the side of an order block.
type OrderBlockType string

const (
	Bullish OrderBlockType = "BULLISH"
	Bearish OrderBlockType = "BEARISH"
)

// Sensitivity is the detector tier that produced a block.
type Sensitivity string

const (
	SensitivityHigh Sensitivity = "HIGH"
	SensitivityLow  Sensitivity = "LOW"
)

// OrderBlock is a supply/demand zone anchored on an origin candle.
// EndDate is nil while the block is unmitigated.
type OrderBlock struct {
	Symbol         string         `json:"symbol,omitempty"`
	Low            float64        `json:"low"`
	High           float64        `json:"high"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        *time.Time     `json:"end_date,omitempty"`
	Type           OrderBlockType `json:"type"`
	Volume         int64          `json:"volume"`
	VolumeStrength float64        `json:"volume_strength"`
	Sensitivity    Sensitivity    `json:"sensitivity"`
	RateOfChange   float64        `json:"rate_of_change"`
}

// Mitigated returns a copy of b closed on date.
func (b OrderBlock) Mitigated(date time.Time) OrderBlock {
	end := date
	b.EndDate = &end
	return b
}

// IsActive reports whether the block has never been mitigated.
func (b OrderBlock) IsActive() bool {
	return b.EndDate == nil
}

// ActiveOn reports whether the block was live on date: started strictly
// before it and not yet ended on it.
func (b OrderBlock) ActiveOn(date time.Time) bool {
	if !b.StartDate.Before(date) {
		return false
	}
	return b.EndDate == nil || b.EndDate.After(date)
}
