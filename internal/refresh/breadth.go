package refresh

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trading-backtest/internal/indicator"
	"trading-backtest/internal/model"
)

const breadthDonchianPeriod = 5

type tally struct {
	up, total int
}

// ComputeBreadth returns market breadth and per-sector breadth rows for
// every date on which any of stocks has a quote. Stocks without a sector
// only count toward the market. Rows are ordered by scope, then date.
func ComputeBreadth(stocks []*model.Stock) []model.Breadth {
	market := map[time.Time]*tally{}
	sectors := map[string]map[time.Time]*tally{}

	for _, s := range stocks {
		if s == nil {
			continue
		}
		for _, q := range s.Quotes {
			d := model.Day(q.Date)
			count(market, d, q.Trend == model.TrendUp)
			if s.Sector == "" {
				continue
			}
			bySector, ok := sectors[s.Sector]
			if !ok {
				bySector = map[time.Time]*tally{}
				sectors[s.Sector] = bySector
			}
			count(bySector, d, q.Trend == model.TrendUp)
		}
	}

	out := series(model.MarketScope, market)
	names := make([]string, 0, len(sectors))
	for name := range sectors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, series(name, sectors[name])...)
	}
	return out
}

// RebuildBreadth loads symbols, recomputes breadth over them and saves the
// rows. It returns the number of rows written.
func RebuildBreadth(ctx context.Context, stocks model.StockRepository, writer model.StockWriter, symbols []string) (int, error) {
	loaded, err := stocks.FindBySymbols(ctx, symbols, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("breadth: load stocks: %w", err)
	}
	rows := ComputeBreadth(loaded)
	if err := writer.SaveBreadth(ctx, rows); err != nil {
		return 0, fmt.Errorf("breadth: save: %w", err)
	}
	return len(rows), nil
}

func count(m map[time.Time]*tally, d time.Time, up bool) {
	t, ok := m[d]
	if !ok {
		t = &tally{}
		m[d] = t
	}
	t.total++
	if up {
		t.up++
	}
}

// series turns per-date tallies into a date-ordered breadth series with
// EMA 5/10/20 and a Donchian channel over the bull percent.
func series(scope string, tallies map[time.Time]*tally) []model.Breadth {
	if len(tallies) == 0 {
		return nil
	}
	dates := make([]time.Time, 0, len(tallies))
	for d := range tallies {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	bull := make([]float64, len(dates))
	for i, d := range dates {
		t := tallies[d]
		bull[i] = float64(t.up) / float64(t.total) * 100
	}
	ema5 := indicator.EMASeries(bull, 5)
	ema10 := indicator.EMASeries(bull, 10)
	ema20 := indicator.EMASeries(bull, 20)
	upper, lower := indicator.Donchian(bull, breadthDonchianPeriod)

	out := make([]model.Breadth, len(dates))
	for i, d := range dates {
		out[i] = model.Breadth{
			Scope:         scope,
			Date:          d,
			BullPercent:   bull[i],
			EMA5:          ema5[i],
			EMA10:         ema10[i],
			EMA20:         ema20[i],
			DonchianUpper: upper[i],
			DonchianLower: lower[i],
			Total:         tallies[d].total,
		}
	}
	return out
}
