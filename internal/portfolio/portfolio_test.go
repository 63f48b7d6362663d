package portfolio

import (
	"math"
	"testing"
	"time"

	"trading-backtest/internal/model"
)

var day0 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func d(i int) time.Time { return day0.AddDate(0, 0, i) }

func trade(entry, exit int, entryClose, profit float64) *model.Trade {
	t := &model.Trade{
		Symbol:     "T",
		StartDate:  d(entry),
		EntryQuote: model.Quote{Date: d(entry), Close: entryClose},
		Profit:     profit,
	}
	for i := entry; i <= exit; i++ {
		t.Quotes = append(t.Quotes, model.Quote{Date: d(i)})
	}
	return t
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f", label, got, want)
	}
}

// ─── Book ─────────────────────────────────────────────────────────────────────

func TestBook_OpenOnStraddle(t *testing.T) {
	b := NewBook(2)
	b.Add(trade(0, 3, 10, 0))
	b.Add(trade(2, 5, 10, 0))

	cases := []struct {
		day       int
		open      int
		available int
	}{
		{0, 1, 1},
		{2, 2, 0},
		{3, 2, 0}, // exit day still counts
		{4, 1, 1},
		{6, 0, 2},
	}
	for _, tc := range cases {
		if got := b.OpenOn(d(tc.day)); got != tc.open {
			t.Errorf("day %d: OpenOn = %d, want %d", tc.day, got, tc.open)
		}
		if got := b.AvailableSlots(d(tc.day)); got != tc.available {
			t.Errorf("day %d: AvailableSlots = %d, want %d", tc.day, got, tc.available)
		}
	}
	if b.Accepted() != 2 {
		t.Errorf("Accepted = %d, want 2", b.Accepted())
	}
}

func TestBook_FutureEntryNotOpenYet(t *testing.T) {
	b := NewBook(1)
	b.Add(trade(5, 8, 10, 0)) // accepted with a delayed entry
	if got := b.AvailableSlots(d(3)); got != 1 {
		t.Errorf("AvailableSlots before entry = %d, want 1", got)
	}
	if got := b.AvailableSlots(d(6)); got != 0 {
		t.Errorf("AvailableSlots during trade = %d, want 0", got)
	}
}

func TestBook_Unlimited(t *testing.T) {
	b := NewBook(0)
	b.Add(trade(0, 3, 10, 0))
	if b.Limited() {
		t.Error("0 should mean unlimited")
	}
	if got := b.AvailableSlots(d(1)); got != -1 {
		t.Errorf("AvailableSlots = %d, want -1", got)
	}
}

// ─── Summary ──────────────────────────────────────────────────────────────────

func TestSummarize(t *testing.T) {
	trades := []model.Trade{
		*trade(0, 4, 100, 10), // +10%, 4 days
		*trade(5, 7, 50, -5),  // -10%, 2 days
		*trade(8, 8, 20, 0),   // flat, 0 days
	}
	s := Summarize(trades)

	if s.TotalTrades != 3 || s.Wins != 1 || s.Losses != 1 {
		t.Fatalf("counts = %+v", s)
	}
	assertClose(t, "WinRate", s.WinRate, 33.333333, 1e-5)
	assertClose(t, "TotalProfit", s.TotalProfit, 5, 1e-9)
	assertClose(t, "AvgProfitPercent", s.AvgProfitPercent, 0, 1e-9)
	assertClose(t, "AvgWinPercent", s.AvgWinPercent, 10, 1e-9)
	assertClose(t, "AvgLossPercent", s.AvgLossPercent, -10, 1e-9)
	assertClose(t, "AvgTradingDays", s.AvgTradingDays, 2, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	if s := Summarize(nil); s.TotalTrades != 0 || s.WinRate != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
}
