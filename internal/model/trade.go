package model

import "time"

// Trade is a realized (or missed) round trip on the trading symbol.
// Quotes runs from the entry bar to the exit bar inclusive.
type Trade struct {
	Symbol           string    `json:"symbol"`
	UnderlyingSymbol string    `json:"underlying_symbol,omitempty"`
	EntryQuote       Quote     `json:"entry_quote"`
	Quotes           []Quote   `json:"quotes"`
	ExitReason       string    `json:"exit_reason"`
	Profit           float64   `json:"profit"`
	StartDate        time.Time `json:"start_date"`
	Sector           string    `json:"sector"`
}

// ExitQuote is the last quote of the trade.
func (t *Trade) ExitQuote() Quote {
	if len(t.Quotes) == 0 {
		return t.EntryQuote
	}
	return t.Quotes[len(t.Quotes)-1]
}

// ExitDate is the date of the last quote.
func (t *Trade) ExitDate() time.Time {
	return t.ExitQuote().Date
}

// ProfitPercent is profit relative to the entry close.
func (t *Trade) ProfitPercent() float64 {
	if t.EntryQuote.Close == 0 {
		return 0
	}
	return t.Profit / t.EntryQuote.Close * 100
}

// TradingDays is the number of bars held after entry.
func (t *Trade) TradingDays() int {
	if len(t.Quotes) == 0 {
		return 0
	}
	return len(t.Quotes) - 1
}

// Straddles reports whether the trade is open on date.
func (t *Trade) Straddles(date time.Time) bool {
	return !t.StartDate.After(date) && !t.ExitDate().Before(date)
}

// StockPair couples the stock whose P&L is realized with the stock whose
// signals drive it. They are the same stock unless an underlying is mapped.
type StockPair struct {
	Trading          *Stock
	Strategy         *Stock
	UnderlyingSymbol string // empty when Strategy == Trading
}

// PotentialEntry is an entry candidate before its exit has been found.
type PotentialEntry struct {
	Pair          StockPair
	StrategyEntry Quote
	TradingEntry  Quote
}
