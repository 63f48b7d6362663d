// Package portfolio tracks the positions accepted during a simulated run
// and summarizes realized trades.
package portfolio

import (
	"time"

	"trading-backtest/internal/model"
)

// Book holds accepted trades and answers how many are open on a date.
// Queries must come in non-decreasing date order: trades that exited
// before the queried date are dropped from the working set.
// A Book is not safe for concurrent use.
type Book struct {
	maxPositions int // 0 = unlimited
	open         []*model.Trade
	accepted     int
}

// NewBook creates a Book. maxPositions <= 0 means unlimited.
func NewBook(maxPositions int) *Book {
	if maxPositions < 0 {
		maxPositions = 0
	}
	return &Book{maxPositions: maxPositions}
}

// Limited reports whether the book enforces a position limit.
func (b *Book) Limited() bool {
	return b.maxPositions > 0
}

// Add records an accepted trade.
func (b *Book) Add(t *model.Trade) {
	b.open = append(b.open, t)
	b.accepted++
}

// OpenOn counts accepted trades whose [entry, exit] interval contains date.
func (b *Book) OpenOn(date time.Time) int {
	kept := b.open[:0]
	n := 0
	for _, t := range b.open {
		if t.ExitDate().Before(date) {
			continue
		}
		kept = append(kept, t)
		if t.Straddles(date) {
			n++
		}
	}
	for i := len(kept); i < len(b.open); i++ {
		b.open[i] = nil
	}
	b.open = kept
	return n
}

// AvailableSlots is max(0, maxPositions - open) on date. Unlimited books
// return -1.
func (b *Book) AvailableSlots(date time.Time) int {
	if !b.Limited() {
		return -1
	}
	slots := b.maxPositions - b.OpenOn(date)
	if slots < 0 {
		return 0
	}
	return slots
}

// Accepted is the number of trades ever added.
func (b *Book) Accepted() int {
	return b.accepted
}
