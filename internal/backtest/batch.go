package backtest

import (
	"context"
	"sort"
	"time"

	"trading-backtest/internal/model"
)

// batch is one memory-bounded slice of the trading universe.
type batch struct {
	pairs []model.StockPair
	dates []time.Time // sorted distinct trading-stock dates in [After, Before]
}

func chunk(symbols []string, size int) [][]string {
	var out [][]string
	for len(symbols) > 0 {
		n := size
		if n > len(symbols) {
			n = len(symbols)
		}
		out = append(out, symbols[:n])
		symbols = symbols[n:]
	}
	return out
}

// loadBatch loads the trading symbols together with the underlyings that
// drive them and pairs them up. A missing underlying aborts the run.
func (r *run) loadBatch(ctx context.Context, symbols []string) (*batch, error) {
	toLoad := make([]string, 0, len(symbols)*2)
	seen := make(map[string]bool, len(symbols)*2)
	for _, s := range symbols {
		for _, sym := range []string{s, r.req.strategySymbol(s)} {
			if !seen[sym] {
				seen[sym] = true
				toLoad = append(toLoad, sym)
			}
		}
	}

	stocks, err := r.stocks.FindBySymbols(ctx, toLoad, r.req.After)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Warn("batch load failed, loading symbols one by one", "symbols", len(toLoad), "error", err)
		stocks = r.loadEach(ctx, toLoad)
	}
	bySymbol := make(map[string]*model.Stock, len(stocks))
	for _, s := range stocks {
		if s != nil {
			bySymbol[s.Symbol] = s
		}
	}

	var missing []string
	missingSeen := make(map[string]bool)
	for _, s := range symbols {
		if bySymbol[s] == nil {
			continue
		}
		u := r.req.strategySymbol(s)
		if u != s && bySymbol[u] == nil && !missingSeen[u] {
			missingSeen[u] = true
			missing = append(missing, u)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingUnderlyingError{Symbols: missing}
	}

	b := &batch{}
	var trading []*model.Stock
	for _, s := range symbols {
		ts := bySymbol[s]
		if ts == nil {
			r.log.Debug("no data for symbol", "symbol", s)
			continue
		}
		pair := model.StockPair{Trading: ts, Strategy: ts}
		if u := r.req.strategySymbol(s); u != s {
			pair.Strategy = bySymbol[u]
			pair.UnderlyingSymbol = u
		}
		b.pairs = append(b.pairs, pair)
		trading = append(trading, ts)
	}
	b.dates = tradingDates(trading, r.req.After, r.req.Before)
	return b, nil
}

// loadEach is the per-symbol fallback when a batch query fails. Symbols
// that still fail are reported and skipped.
func (r *run) loadEach(ctx context.Context, symbols []string) []*model.Stock {
	out := make([]*model.Stock, 0, len(symbols))
	for _, sym := range symbols {
		s, err := r.stocks.FindBySymbol(ctx, sym, r.req.After)
		if err != nil {
			r.stats.FailedStocks++
			r.stockFailed(sym, err)
			continue
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func tradingDates(stocks []*model.Stock, after, before time.Time) []time.Time {
	set := make(map[time.Time]struct{})
	for _, s := range stocks {
		for _, q := range s.QuotesBetween(after, before) {
			set[q.Date] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// resolveEntry applies the entry delay to a signal found on dates[i].
func (r *run) resolveEntry(p model.StockPair, dates []time.Time, i int) (model.PotentialEntry, bool) {
	j := i + r.req.EntryDelayDays
	if j >= len(dates) {
		return model.PotentialEntry{}, false
	}
	d := dates[j]
	sq, ok := p.Strategy.QuoteOn(d)
	if !ok {
		return model.PotentialEntry{}, false
	}
	tq, ok := p.Trading.QuoteOn(d)
	if !ok {
		return model.PotentialEntry{}, false
	}
	return model.PotentialEntry{Pair: p, StrategyEntry: sq, TradingEntry: tq}, true
}

// entrySignal reports whether the pair has an entry signal on d.
func (r *run) entrySignal(p model.StockPair, d time.Time) (model.Quote, bool) {
	sq, ok := p.Strategy.QuoteOn(d)
	if !ok {
		return model.Quote{}, false
	}
	if _, ok := p.Trading.QuoteOn(d); !ok {
		return model.Quote{}, false
	}
	if !r.req.Entry.Test(p.Strategy, sq, r.bc) {
		return model.Quote{}, false
	}
	return sq, true
}
