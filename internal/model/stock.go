package model

import (
	"sort"
	"time"
)

// Stock is a symbol with its date-sorted, date-unique quotes and detected
// order blocks.
type Stock struct {
	Symbol      string       `json:"symbol"`
	Sector      string       `json:"sector"`
	Quotes      []Quote      `json:"quotes"`
	OrderBlocks []OrderBlock `json:"order_blocks"`
}

// SortQuotes orders quotes by date and drops duplicates, keeping the last
// quote seen for a date.
func (s *Stock) SortQuotes() {
	sort.SliceStable(s.Quotes, func(i, j int) bool {
		return s.Quotes[i].Date.Before(s.Quotes[j].Date)
	})
	out := s.Quotes[:0]
	for _, q := range s.Quotes {
		if n := len(out); n > 0 && out[n-1].Date.Equal(q.Date) {
			out[n-1] = q
			continue
		}
		out = append(out, q)
	}
	s.Quotes = out
}

// indexAfter is the index of the first quote dated after d.
func (s *Stock) indexAfter(d time.Time) int {
	return sort.Search(len(s.Quotes), func(i int) bool {
		return s.Quotes[i].Date.After(d)
	})
}

// IndexOnOrAfter is the index of the first quote dated on or after d,
// len(Quotes) when there is none.
func (s *Stock) IndexOnOrAfter(d time.Time) int {
	return sort.Search(len(s.Quotes), func(i int) bool {
		return !s.Quotes[i].Date.Before(d)
	})
}

// QuoteOn returns the quote dated d.
func (s *Stock) QuoteOn(d time.Time) (Quote, bool) {
	i := s.IndexOnOrAfter(d)
	if i < len(s.Quotes) && s.Quotes[i].Date.Equal(d) {
		return s.Quotes[i], true
	}
	return Quote{}, false
}

// PreviousQuote returns the last quote dated strictly before d.
func (s *Stock) PreviousQuote(d time.Time) (Quote, bool) {
	i := s.IndexOnOrAfter(d) - 1
	if i < 0 {
		return Quote{}, false
	}
	return s.Quotes[i], true
}

// QuotesAfter returns the quotes dated strictly after d. The slice aliases
// the stock's backing array.
func (s *Stock) QuotesAfter(d time.Time) []Quote {
	return s.Quotes[s.indexAfter(d):]
}

// QuotesBetween returns quotes with from <= date <= to.
func (s *Stock) QuotesBetween(from, to time.Time) []Quote {
	lo, hi := s.IndexOnOrAfter(from), s.indexAfter(to)
	if lo >= hi {
		return nil
	}
	return s.Quotes[lo:hi]
}

// CountTradingDaysBetween counts quotes with start < date <= end.
func (s *Stock) CountTradingDaysBetween(start, end time.Time) int {
	n := s.indexAfter(end) - s.indexAfter(start)
	if n < 0 {
		return 0
	}
	return n
}

// OrderBlocksActiveOn returns the blocks of typ live on date.
func (s *Stock) OrderBlocksActiveOn(date time.Time, typ OrderBlockType) []OrderBlock {
	var out []OrderBlock
	for _, b := range s.OrderBlocks {
		if b.Type == typ && b.ActiveOn(date) {
			out = append(out, b)
		}
	}
	return out
}

// WithinOrderBlock reports whether q's candle body overlaps a bearish block
// that is live on q's date and at least minAge trading days old.
func (s *Stock) WithinOrderBlock(q Quote, minAge int) bool {
	top, bottom := q.Open, q.Close
	if bottom > top {
		top, bottom = bottom, top
	}
	for _, b := range s.OrderBlocksActiveOn(q.Date, Bearish) {
		if s.CountTradingDaysBetween(b.StartDate, q.Date) < minAge {
			continue
		}
		if top >= b.Low && bottom <= b.High {
			return true
		}
	}
	return false
}

// LastQuote returns the most recent quote.
func (s *Stock) LastQuote() (Quote, bool) {
	if len(s.Quotes) == 0 {
		return Quote{}, false
	}
	return s.Quotes[len(s.Quotes)-1], true
}
