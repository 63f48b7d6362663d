package markethours

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ─── Calendar ───

func TestIsTradingDay(t *testing.T) {
	tests := []struct {
		name string
		d    time.Time
		want bool
	}{
		{"regular tuesday", day(2024, time.January, 2), true},
		{"new year", day(2024, time.January, 1), false},
		{"saturday", day(2024, time.January, 6), false},
		{"good friday 2025", day(2025, time.April, 18), false},
		{"mourning day 2025", day(2025, time.January, 9), false},
		{"july 3 observed 2026", day(2026, time.July, 3), false},
		{"outside table", day(2030, time.January, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTradingDay(tt.d); got != tt.want {
				t.Errorf("IsTradingDay(%s) = %v, want %v", tt.d.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestTradingDays(t *testing.T) {
	// Dec 29 2023 (Fri) .. Jan 5 2024 (Fri): Jan 1 is a holiday.
	got := TradingDays(day(2023, time.December, 29), day(2024, time.January, 5))
	want := []time.Time{
		day(2023, time.December, 29),
		day(2024, time.January, 2),
		day(2024, time.January, 3),
		day(2024, time.January, 4),
		day(2024, time.January, 5),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d days, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("day %d = %s, want %s", i, got[i], want[i])
		}
	}

	if n := len(TradingDays(day(2024, time.January, 5), day(2024, time.January, 1))); n != 0 {
		t.Errorf("reversed range yielded %d days", n)
	}
}

func TestNextPreviousTradingDay(t *testing.T) {
	if got := NextTradingDay(day(2024, time.March, 28)); !got.Equal(day(2024, time.April, 1)) {
		t.Errorf("next after Mar 28 = %s, want Apr 1 (skips Good Friday and weekend)", got)
	}
	if got := PreviousTradingDay(day(2024, time.January, 2)); !got.Equal(day(2023, time.December, 29)) {
		t.Errorf("previous before Jan 2 = %s", got)
	}
}

// ─── Session ───

func TestIsMarketOpen(t *testing.T) {
	open := time.Date(2024, time.January, 2, 10, 0, 0, 0, ET)
	if !IsMarketOpen(open) {
		t.Error("10:00 ET on a trading day should be open")
	}
	if IsMarketOpen(time.Date(2024, time.January, 2, 16, 0, 0, 0, ET)) {
		t.Error("16:00 ET is after the close")
	}
	if IsMarketOpen(time.Date(2024, time.January, 1, 10, 0, 0, 0, ET)) {
		t.Error("holiday should be closed")
	}
}

func TestLastCompletedSession(t *testing.T) {
	during := time.Date(2024, time.January, 3, 11, 0, 0, 0, ET)
	if got := LastCompletedSession(during); !got.Equal(day(2024, time.January, 2)) {
		t.Errorf("during session = %s, want Jan 2", got)
	}
	after := time.Date(2024, time.January, 3, 17, 0, 0, 0, ET)
	if got := LastCompletedSession(after); !got.Equal(day(2024, time.January, 3)) {
		t.Errorf("after close = %s, want Jan 3", got)
	}
}
