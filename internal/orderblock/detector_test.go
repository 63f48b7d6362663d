package orderblock

import (
	"testing"
	"time"

	"trading-backtest/internal/model"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// flat builds n doji bars: open = close = 100, range 99..101.
func flat(n int) []model.Quote {
	qs := make([]model.Quote, n)
	for i := range qs {
		qs[i] = model.Quote{
			Symbol: "OB",
			Date:   day0.AddDate(0, 0, i),
			Open:   100, High: 101, Low: 99, Close: 100,
			Volume: 1000,
		}
	}
	return qs
}

// setOpens moves open (and close, keeping the bar a doji) from index from on.
func setOpens(qs []model.Quote, from int, open float64) {
	for i := from; i < len(qs); i++ {
		qs[i].Open, qs[i].Close = open, open
	}
}

// ─── Detection ────────────────────────────────────────────────────────────────

func TestDetect_ShortSeriesIsEmpty(t *testing.T) {
	if got := NewDetector(DefaultConfig()).Detect(flat(18)); len(got) != 0 {
		t.Fatalf("expected no blocks for 18 bars, got %d", len(got))
	}
}

func TestDetect_BearishBlockOnLastGreenCandle(t *testing.T) {
	qs := flat(25)
	// Green origin candle at 6.
	qs[6].Close, qs[6].High, qs[6].Low = 101, 102, 99.5
	// Opens drop 0.5% from bar 10: ROC[10] = (99.5-100)/100*100 = -0.5 < -0.28
	setOpens(qs, 10, 99.5)

	blocks := NewDetector(DefaultConfig()).Detect(qs)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(blocks), blocks)
	}
	b := blocks[0]
	if b.Type != model.Bearish {
		t.Errorf("Type = %s, want BEARISH", b.Type)
	}
	if !b.StartDate.Equal(qs[6].Date) {
		t.Errorf("StartDate = %s, want %s", b.StartDate, qs[6].Date)
	}
	if b.High != 102 || b.Low != 99.5 {
		t.Errorf("bounds = %v..%v, want 99.5..102", b.Low, b.High)
	}
	if b.Sensitivity != model.SensitivityHigh {
		t.Errorf("Sensitivity = %s, want HIGH", b.Sensitivity)
	}
	if b.RateOfChange > -0.49 || b.RateOfChange < -0.51 {
		t.Errorf("RateOfChange = %f, want -0.5", b.RateOfChange)
	}
	// Origin index 6 < 20 → default strength.
	if b.VolumeStrength != 1.0 {
		t.Errorf("VolumeStrength = %f, want 1.0", b.VolumeStrength)
	}
	if !b.IsActive() {
		t.Errorf("block should be unmitigated, EndDate = %v", b.EndDate)
	}
}

func TestDetect_BearishMitigatedDayAfterCloseAbove(t *testing.T) {
	qs := flat(25)
	qs[6].Close, qs[6].High, qs[6].Low = 101, 102, 99.5
	setOpens(qs, 10, 99.5)
	// Close above 102 at bar 20 → endDate is bar 21.
	qs[20].Close, qs[20].High = 103, 103.5

	blocks := NewDetector(DefaultConfig()).Detect(qs)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].EndDate == nil || !blocks[0].EndDate.Equal(qs[21].Date) {
		t.Fatalf("EndDate = %v, want %s", blocks[0].EndDate, qs[21].Date)
	}
}

func TestDetect_BullishMitigatedOnBarAfterCloseBelowLow(t *testing.T) {
	qs := flat(25)
	// Red origin candle at 6.
	qs[6].Close, qs[6].High, qs[6].Low = 99, 100.5, 98.5
	// ROC[10] = (100.5-100)/100*100 = +0.5 > 0.28
	setOpens(qs, 10, 100.5)
	// Close below 98.5 at bar 18.
	qs[18].Close, qs[18].Low = 98, 97.5

	blocks := NewDetector(DefaultConfig()).Detect(qs)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.Type != model.Bullish {
		t.Fatalf("Type = %s, want BULLISH", b.Type)
	}
	if b.EndDate == nil {
		t.Fatal("expected block to be mitigated")
	}
	if !b.EndDate.Equal(qs[19].Date) {
		t.Errorf("EndDate = %s, want %s (never earlier than the bar after the close)", b.EndDate, qs[19].Date)
	}
	if b.ActiveOn(qs[19].Date) {
		t.Error("block should not be active on its end date")
	}
	if !b.ActiveOn(qs[18].Date) {
		t.Error("block should be active on the mitigating close's own bar")
	}
}

func TestDetect_NoOriginCandleNoBlock(t *testing.T) {
	qs := flat(25) // all dojis: no green candle to anchor on
	setOpens(qs, 10, 99.5)
	if got := NewDetector(DefaultConfig()).Detect(qs); len(got) != 0 {
		t.Fatalf("expected no blocks without an origin candle, got %d", len(got))
	}
}

func TestDetect_BelowThresholdNoBlock(t *testing.T) {
	qs := flat(25)
	qs[6].Close, qs[6].High = 101, 102
	// ROC -0.4 crosses the HIGH tier's 0.28 but not the LOW tier's 0.5.
	setOpens(qs, 10, 99.6)
	if got := NewDetector(LowConfig()).Detect(qs); len(got) != 0 {
		t.Fatalf("expected no LOW-tier blocks, got %d", len(got))
	}
}

// ─── Spacing ──────────────────────────────────────────────────────────────────

func TestDetect_SameTypeSpacingSuppresses(t *testing.T) {
	qs := flat(30)
	qs[6].Close, qs[6].High = 101, 102
	setOpens(qs, 10, 99.5) // bearish crossing at 10
	qs[11].Open, qs[11].Close = 100, 100
	// Bar 12 open 99.5 vs bar 8 open 100 → second bearish crossing at 12.
	// Later crossings at 15 are within 5 bars of the (suppressed) one at 12.

	blocks := NewDetector(DefaultConfig()).Detect(qs)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block after spacing suppression, got %d", len(blocks))
	}
}

func TestCrossingHistory_SuppressedStillCounts(t *testing.T) {
	d := NewDetector(DefaultConfig())
	history := []crossing{
		{index: 10, typ: model.Bearish},
		{index: 14, typ: model.Bearish}, // suppressed, but recorded
	}
	// 18-10 = 8 is outside the window, 18-14 = 4 is inside.
	if !d.tooClose(history, 18, model.Bearish) {
		t.Error("crossing at 18 should be suppressed by the recorded one at 14")
	}
	if d.tooClose(history, 20, model.Bullish) {
		t.Error("crossing at 20 is 6 bars from the last one and should pass")
	}
}

// ─── Volume strength ──────────────────────────────────────────────────────────

func TestVolumeStrength(t *testing.T) {
	qs := flat(30)
	qs[25].Volume = 3000
	qs[10].Volume = 0 // zero volumes are excluded from the average

	// Preceding 20 bars (5..24): 19 × 1000 non-zero → avg 1000 → 3.0
	if got := volumeStrength(qs, 25); got != 3.0 {
		t.Errorf("volumeStrength = %f, want 3.0", got)
	}
	if got := volumeStrength(qs, 19); got != 1.0 {
		t.Errorf("volumeStrength with short history = %f, want 1.0", got)
	}
	qs[26].Volume = 0
	if got := volumeStrength(qs, 26); got != 1.0 {
		t.Errorf("volumeStrength with zero volume = %f, want 1.0", got)
	}
}

func TestMitigate_ReplacesRecordAndShrinksActiveSet(t *testing.T) {
	blocks := []model.OrderBlock{
		{Type: model.Bearish, Low: 10, High: 12},
		{Type: model.Bullish, Low: 8, High: 9},
	}
	prev := model.Quote{Close: 13}
	cur := model.Quote{Date: day0}

	active := mitigate(blocks, []int{0, 1}, cur, prev)
	if len(active) != 1 || active[0] != 1 {
		t.Fatalf("active = %v, want [1]", active)
	}
	if blocks[0].EndDate == nil || !blocks[0].EndDate.Equal(day0) {
		t.Errorf("bearish block EndDate = %v, want %s", blocks[0].EndDate, day0)
	}
	if blocks[1].EndDate != nil {
		t.Error("bullish block should remain active")
	}
}
