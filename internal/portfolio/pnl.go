package portfolio

import "trading-backtest/internal/model"

// Summary aggregates realized trades.
type Summary struct {
	TotalTrades      int     `json:"total_trades"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	WinRate          float64 `json:"win_rate"` // percent
	TotalProfit      float64 `json:"total_profit"`
	AvgProfitPercent float64 `json:"avg_profit_percent"`
	AvgWinPercent    float64 `json:"avg_win_percent"`
	AvgLossPercent   float64 `json:"avg_loss_percent"`
	AvgTradingDays   float64 `json:"avg_trading_days"`
}

// Summarize computes per-trade aggregates. Zero-profit trades count as
// neither win nor loss.
func Summarize(trades []model.Trade) Summary {
	var s Summary
	s.TotalTrades = len(trades)
	if len(trades) == 0 {
		return s
	}

	var sumPct, winPct, lossPct float64
	var days int
	for i := range trades {
		t := &trades[i]
		pct := t.ProfitPercent()
		s.TotalProfit += t.Profit
		sumPct += pct
		days += t.TradingDays()

		switch {
		case t.Profit > 0:
			s.Wins++
			winPct += pct
		case t.Profit < 0:
			s.Losses++
			lossPct += pct
		}
	}

	n := float64(len(trades))
	s.WinRate = float64(s.Wins) / n * 100
	s.AvgProfitPercent = sumPct / n
	s.AvgTradingDays = float64(days) / n
	if s.Wins > 0 {
		s.AvgWinPercent = winPct / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLossPercent = lossPct / float64(s.Losses)
	}
	return s
}
