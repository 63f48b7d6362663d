package backtest

import (
	"context"
	"math"
	"time"

	"trading-backtest/internal/model"
)

// runUnlimited evaluates every stock independently. A stock's trades never
// overlap: quotes consumed by a trade cannot start another.
func (r *run) runUnlimited(ctx context.Context) ([]model.Trade, error) {
	groups := chunk(r.req.Symbols, r.batchSize)
	r.stats.Batches = len(groups)
	m := newMeter(len(r.req.Symbols), 10, func(pct float64) {
		r.log.Info("backtest progress", "percent", math.Round(pct))
		r.progress(pct)
	})

	var trades []model.Trade
	for n, symbols := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := r.loadBatch(ctx, symbols)
		if err != nil {
			return nil, err
		}
		r.log.Debug("batch loaded",
			"batch", n+1, "batches", len(groups),
			"stocks", len(b.pairs), "dates", len(b.dates))

		perPair := make([][]model.Trade, len(b.pairs))
		failed := r.forEach(ctx, b.pairs, func(i int, p model.StockPair) error {
			perPair[i] = r.pairTrades(p, b.dates)
			m.add(1)
			return nil
		})
		r.stats.FailedStocks += failed
		m.add(len(symbols) - len(b.pairs) + failed)
		for _, ts := range perPair {
			trades = append(trades, ts...)
		}
	}
	return trades, ctx.Err()
}

// pairTrades walks the calendar for one pair.
func (r *run) pairTrades(p model.StockPair, dates []time.Time) []model.Trade {
	used := make(map[model.QuoteKey]bool)
	var out []model.Trade
	for i, d := range dates {
		if _, ok := r.entrySignal(p, d); !ok {
			continue
		}
		pe, ok := r.resolveEntry(p, dates, i)
		if !ok {
			continue
		}
		if used[pe.TradingEntry.Key()] {
			continue
		}
		t, ok := r.buildTrade(pe)
		if !ok {
			continue
		}
		out = append(out, t)
		markUsed(used, t.Quotes)
	}
	return out
}
