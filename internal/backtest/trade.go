package backtest

import (
	"strings"

	"trading-backtest/internal/model"
)

// buildTrade scans forward from the entry on the strategy stock until the
// exit strategy matches, then realizes the trade on the trading stock.
// No exit within the data, a blank reason, or no trading quote on the exit
// date means no trade.
func (r *run) buildTrade(pe model.PotentialEntry) (model.Trade, bool) {
	strat := pe.Pair.Strategy
	var (
		exitQuote model.Quote
		reason    string
		found     bool
	)
	for _, q := range strat.QuotesAfter(pe.StrategyEntry.Date) {
		if r.req.Exit.Match(strat, pe.StrategyEntry, q, r.bc) {
			exitQuote = q
			reason = r.req.Exit.Reason(strat, pe.StrategyEntry, q, r.bc)
			found = true
			break
		}
	}
	if !found || strings.TrimSpace(reason) == "" {
		return model.Trade{}, false
	}

	trading := pe.Pair.Trading
	tradingExit, ok := trading.QuoteOn(exitQuote.Date)
	if !ok {
		return model.Trade{}, false
	}
	price := r.req.Exit.ExitPrice(trading, pe.TradingEntry, tradingExit)
	held := trading.QuotesBetween(pe.TradingEntry.Date, tradingExit.Date)
	quotes := make([]model.Quote, len(held))
	copy(quotes, held)

	return model.Trade{
		Symbol:           trading.Symbol,
		UnderlyingSymbol: pe.Pair.UnderlyingSymbol,
		EntryQuote:       pe.TradingEntry,
		Quotes:           quotes,
		ExitReason:       reason,
		Profit:           price - pe.TradingEntry.Close,
		StartDate:        pe.TradingEntry.Date,
		Sector:           trading.Sector,
	}, true
}

func markUsed(used map[model.QuoteKey]bool, quotes []model.Quote) {
	for i := range quotes {
		used[quotes[i].Key()] = true
	}
}
