package backtest

import (
	"context"
	"math"
	"sort"
	"time"

	"trading-backtest/internal/model"
	"trading-backtest/internal/portfolio"
)

type candidate struct {
	entry model.PotentialEntry
	score float64
}

// runConstrained collects entry signals across all batches, reloads only
// the symbols that signalled, and then simulates the calendar in order so
// that same-day candidates compete for free position slots.
func (r *run) runConstrained(ctx context.Context) (trades, missed []model.Trade, err error) {
	signals, err := r.collectSignals(ctx)
	if err != nil {
		return nil, nil, err
	}
	r.stats.Signals = len(signals)
	if len(signals) == 0 {
		r.log.Info("no entry signals")
		return nil, nil, nil
	}

	symbols := make([]string, 0)
	seen := make(map[string]bool)
	for _, s := range signals {
		if !seen[s.TradingSymbol] {
			seen[s.TradingSymbol] = true
			symbols = append(symbols, s.TradingSymbol)
		}
	}
	b, err := r.loadBatch(ctx, symbols)
	if err != nil {
		return nil, nil, err
	}
	pairs := make(map[string]model.StockPair, len(b.pairs))
	for _, p := range b.pairs {
		pairs[p.Trading.Symbol] = p
	}
	byDate := make(map[time.Time][]Signal)
	for _, s := range signals {
		byDate[s.Date] = append(byDate[s.Date], s)
	}
	r.log.Info("simulating", "signals", len(signals), "symbols", len(symbols), "dates", len(b.dates))

	book := portfolio.NewBook(r.req.MaxPositions)
	cd := newCooldown(r.req.CooldownDays, b.dates)
	usedTrade := make(map[model.QuoteKey]bool)
	usedMissed := make(map[model.QuoteKey]bool)
	step := len(b.dates) / 20
	if step == 0 {
		step = 1
	}

	for i, d := range b.dates {
		if i%step == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			pct := 50 + float64(i)*50/float64(len(b.dates))
			r.log.Info("backtest progress", "percent", math.Round(pct), "date", d.Format(model.DateLayout))
			r.progress(pct)
		}
		if cd.blocks(i) {
			continue
		}
		cands := r.candidates(byDate[d], pairs, b.dates, i)
		if len(cands) == 0 {
			continue
		}

		selected, rest := cands, []candidate(nil)
		if book.Limited() {
			if slots := book.AvailableSlots(d); slots < len(cands) {
				selected, rest = cands[:slots], cands[slots:]
			}
		}
		for _, c := range selected {
			if usedTrade[c.entry.TradingEntry.Key()] {
				continue
			}
			t, ok := r.buildTrade(c.entry)
			if !ok {
				continue
			}
			trades = append(trades, t)
			markUsed(usedTrade, t.Quotes)
			accepted := t
			book.Add(&accepted)
			cd.record(t.ExitDate())
		}
		for _, c := range rest {
			k := c.entry.TradingEntry.Key()
			if usedMissed[k] || usedTrade[k] {
				continue
			}
			t, ok := r.buildTrade(c.entry)
			if !ok {
				continue
			}
			missed = append(missed, t)
			markUsed(usedMissed, t.Quotes)
		}
	}
	r.progress(100)
	return trades, missed, nil
}

// candidates resolves the day's signals into ranked potential entries,
// best score first.
func (r *run) candidates(signals []Signal, pairs map[string]model.StockPair, dates []time.Time, i int) []candidate {
	var out []candidate
	for _, s := range signals {
		p, ok := pairs[s.TradingSymbol]
		if !ok {
			continue
		}
		pe, ok := r.resolveEntry(p, dates, i)
		if !ok {
			continue
		}
		out = append(out, candidate{
			entry: pe,
			score: r.req.Ranker.Score(p.Strategy, pe.StrategyEntry, r.bc),
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].score > out[b].score })
	return out
}

// collectSignals runs the entry strategy over every batch and keeps only
// (date, symbol, score) tuples so the stocks can be released.
func (r *run) collectSignals(ctx context.Context) ([]Signal, error) {
	groups := chunk(r.req.Symbols, r.batchSize)
	r.stats.Batches = len(groups)
	m := newMeter(len(r.req.Symbols), 10, func(pct float64) {
		r.log.Info("signal scan progress", "percent", math.Round(pct))
		r.progress(pct / 2)
	})

	var signals []Signal
	for n, symbols := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := r.loadBatch(ctx, symbols)
		if err != nil {
			return nil, err
		}
		r.log.Debug("signal batch loaded", "batch", n+1, "batches", len(groups), "stocks", len(b.pairs))

		perPair := make([][]Signal, len(b.pairs))
		failed := r.forEach(ctx, b.pairs, func(i int, p model.StockPair) error {
			for _, d := range b.dates {
				sq, ok := r.entrySignal(p, d)
				if !ok {
					continue
				}
				perPair[i] = append(perPair[i], Signal{
					Date:             d,
					TradingSymbol:    p.Trading.Symbol,
					UnderlyingSymbol: p.UnderlyingSymbol,
					Score:            r.req.Ranker.Score(p.Strategy, sq, r.bc),
				})
			}
			m.add(1)
			return nil
		})
		r.stats.FailedStocks += failed
		m.add(len(symbols) - len(b.pairs) + failed)
		for _, s := range perPair {
			signals = append(signals, s...)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(signals, func(i, j int) bool {
		if !signals[i].Date.Equal(signals[j].Date) {
			return signals[i].Date.Before(signals[j].Date)
		}
		return signals[i].TradingSymbol < signals[j].TradingSymbol
	})
	return signals, nil
}
