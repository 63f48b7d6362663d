package strategy

import (
	"fmt"

	"trading-backtest/internal/model"
)

// ExitAfterDays exits once Days trading days have passed since entry.
type ExitAfterDays struct {
	Days int
}

func (c ExitAfterDays) ShouldExit(s *model.Stock, entry, q model.Quote, _ *model.BacktestContext) bool {
	return s.CountTradingDaysBetween(entry.Date, q.Date) >= c.Days
}

func (c ExitAfterDays) ExitReason() string  { return fmt.Sprintf("Held for %d trading days", c.Days) }
func (c ExitAfterDays) Description() string { return fmt.Sprintf("Exit after %d days", c.Days) }

// StopLoss exits when close falls ATRMultiplier entry ATRs below the entry close.
type StopLoss struct {
	ATRMultiplier float64
}

func (c StopLoss) ShouldExit(_ *model.Stock, entry, q model.Quote, _ *model.BacktestContext) bool {
	return q.Close < entry.Close-c.ATRMultiplier*entry.ATR
}

func (c StopLoss) ExitReason() string {
	return fmt.Sprintf("Stop loss triggered (%.1f ATR below entry)", c.ATRMultiplier)
}
func (c StopLoss) Description() string { return fmt.Sprintf("Stop loss (%.1f ATR)", c.ATRMultiplier) }

// TrailingStopLoss exits when close falls ATRMultiplier current ATRs below
// the highest close since entry.
type TrailingStopLoss struct {
	ATRMultiplier float64
}

func (c TrailingStopLoss) ShouldExit(s *model.Stock, entry, q model.Quote, _ *model.BacktestContext) bool {
	since := s.QuotesBetween(entry.Date, q.Date)
	if len(since) == 0 {
		return false
	}
	highest := since[0].Close
	for _, h := range since[1:] {
		if h.Close > highest {
			highest = h.Close
		}
	}
	return q.Close < highest-c.ATRMultiplier*q.ATR
}

func (c TrailingStopLoss) ExitReason() string {
	return fmt.Sprintf("ATR trailing stop loss triggered (%.1f ATR below highest price)", c.ATRMultiplier)
}
func (c TrailingStopLoss) Description() string {
	return fmt.Sprintf("ATR trailing stop (%.1f ATR)", c.ATRMultiplier)
}

// PriceBelowEMA exits on a close under the given EMA.
type PriceBelowEMA struct {
	Period int
}

func (c PriceBelowEMA) ShouldExit(_ *model.Stock, _ model.Quote, q model.Quote, _ *model.BacktestContext) bool {
	ema, ok := q.EMA(c.Period)
	return ok && q.Close < ema
}

func (c PriceBelowEMA) ExitReason() string  { return fmt.Sprintf("Price closed under the %d EMA", c.Period) }
func (c PriceBelowEMA) Description() string { return fmt.Sprintf("Price below %d EMA", c.Period) }

// EMACross exits on the bar the fast EMA crosses under the slow EMA.
type EMACross struct {
	Fast, Slow int
}

func (c EMACross) ShouldExit(s *model.Stock, _ model.Quote, q model.Quote, _ *model.BacktestContext) bool {
	fast, _ := q.EMA(c.Fast)
	slow, _ := q.EMA(c.Slow)
	if fast >= slow {
		return false
	}
	prev, ok := s.PreviousQuote(q.Date)
	if !ok {
		return false
	}
	prevFast, _ := prev.EMA(c.Fast)
	prevSlow, _ := prev.EMA(c.Slow)
	return prevFast >= prevSlow
}

func (c EMACross) ExitReason() string {
	return fmt.Sprintf("%d ema has crossed under the %d ema", c.Fast, c.Slow)
}
func (c EMACross) Description() string { return fmt.Sprintf("%dEMA crosses under %dEMA", c.Fast, c.Slow) }

// ProfitTarget exits when close extends ATRMultiplier ATRs above an EMA.
type ProfitTarget struct {
	ATRMultiplier float64
	EMAPeriod     int
}

func (c ProfitTarget) ShouldExit(_ *model.Stock, _ model.Quote, q model.Quote, _ *model.BacktestContext) bool {
	ema, ok := q.EMA(c.EMAPeriod)
	return ok && q.Close > ema+c.ATRMultiplier*q.ATR
}

func (c ProfitTarget) ExitReason() string {
	return fmt.Sprintf("Price is %.1f ATR above %d EMA", c.ATRMultiplier, c.EMAPeriod)
}
func (c ProfitTarget) Description() string {
	return fmt.Sprintf("Price > %dEMA + %.1fATR", c.EMAPeriod, c.ATRMultiplier)
}
