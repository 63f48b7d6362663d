package model

import "time"

type sectorDay struct {
	sector string
	date   time.Time
}

// BacktestContext is the read-only market state shared by every condition
// during a run. Build it once with NewBacktestContext; it is never mutated
// afterwards and is safe for concurrent readers.
type BacktestContext struct {
	sector map[sectorDay]Breadth
	market map[time.Time]Breadth
	spy    map[time.Time]Quote
}

// NewBacktestContext indexes breadth series and reference quotes by date.
// sectorBreadth is keyed by sector code.
func NewBacktestContext(sectorBreadth map[string][]Breadth, marketBreadth []Breadth, spy []Quote) *BacktestContext {
	c := &BacktestContext{
		sector: make(map[sectorDay]Breadth),
		market: make(map[time.Time]Breadth, len(marketBreadth)),
		spy:    make(map[time.Time]Quote, len(spy)),
	}
	for sector, series := range sectorBreadth {
		for _, b := range series {
			c.sector[sectorDay{sector: sector, date: b.Date}] = b
		}
	}
	for _, b := range marketBreadth {
		c.market[b.Date] = b
	}
	for _, q := range spy {
		c.spy[q.Date] = q
	}
	return c
}

// EmptyContext has no breadth and no reference quotes.
func EmptyContext() *BacktestContext {
	return NewBacktestContext(nil, nil, nil)
}

// SectorBreadth returns the sector's breadth on date.
func (c *BacktestContext) SectorBreadth(sector string, date time.Time) (Breadth, bool) {
	b, ok := c.sector[sectorDay{sector: sector, date: date}]
	return b, ok
}

// MarketBreadth returns market breadth on date.
func (c *BacktestContext) MarketBreadth(date time.Time) (Breadth, bool) {
	b, ok := c.market[date]
	return b, ok
}

// SPYQuote returns the reference index quote on date.
func (c *BacktestContext) SPYQuote(date time.Time) (Quote, bool) {
	q, ok := c.spy[date]
	return q, ok
}
