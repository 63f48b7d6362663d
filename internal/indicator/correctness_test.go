package indicator

import (
	"math"
	"testing"
	"time"

	"trading-backtest/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(i int, high, low, close float64) model.Quote {
	return model.Quote{
		Symbol: "TEST",
		Date:   day0.AddDate(0, 0, i),
		Open:   close, High: high, Low: low, Close: close,
		Volume: 1000,
	}
}

func flatBars(n int, price float64) []model.Quote {
	out := make([]model.Quote, n)
	for i := range out {
		out[i] = bar(i, price, price, price)
	}
	return out
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): multiplier = 2/(3+1) = 0.5
	// Prices: 100, 102, 104, 103, 105
	//
	// Value 1: sum=100
	// Value 2: sum=202
	// Value 3: sum=306 → initial EMA = 306/3 = 102.0 (SMA seed)
	// Value 4: EMA = (103-102.0)*0.5 + 102.0 = 102.5
	// Value 5: EMA = (105-102.5)*0.5 + 102.5 = 103.75

	ema := NewEMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.5, 103.75}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		ema.Update(p)
		if ema.Ready() != ready[i] {
			t.Errorf("value %d: Ready()=%v, want %v", i, ema.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "EMA(3)", ema.Value(), expected[i], 0.0001)
		}
	}
}

func TestEMASeries_SentinelAndSeed(t *testing.T) {
	// 30 prices 1..30, period 10.
	// EMA[8] is still the sentinel, EMA[9] = mean(1..10) = 5.5
	// EMA[10] = (11-5.5)*(2/11) + 5.5 = 6.5
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = float64(i + 1)
	}
	out := EMASeries(prices, 10)

	if len(out) != len(prices) {
		t.Fatalf("len = %d, want %d", len(out), len(prices))
	}
	for i := 0; i < 9; i++ {
		if out[i] != 0 {
			t.Errorf("EMA[%d] = %f, want sentinel 0", i, out[i])
		}
	}
	assertClose(t, "EMA[9]", out[9], 5.5, 1e-9)
	assertClose(t, "EMA[10]", out[10], 6.5, 1e-9)
}

func TestEMASeries_ShortInputIsAllZero(t *testing.T) {
	out := EMASeries([]float64{1, 2, 3}, 5)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	for i, v := range out {
		if v != 0 {
			t.Errorf("EMA[%d] = %f, want 0", i, v)
		}
	}
}

// ────────────────────────────────────────────────────────────
// SMMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMMA_Correctness_Period3(t *testing.T) {
	// SMMA(3): first value = SMA(3) seed, then Wilder smoothing
	// Prices: 100, 102, 104, 103, 105
	//
	// Value 1-3: seed = (100+102+104)/3 = 102.0
	// Value 4: SMMA = (102.0 * 2 + 103) / 3 = (204+103)/3 = 102.3333
	// Value 5: SMMA = (102.3333 * 2 + 105) / 3 = (204.6667+105)/3 = 103.2222

	smma := NewSMMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.3333, 103.2222}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		smma.Update(p)
		if smma.Ready() != ready[i] {
			t.Errorf("value %d: Ready()=%v, want %v", i, smma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMMA(3)", smma.Value(), expected[i], 0.001)
		}
	}
}

// ────────────────────────────────────────────────────────────
// ATR Correctness
// ────────────────────────────────────────────────────────────

func TestATR_Correctness_Period3(t *testing.T) {
	// Bars (H, L, C):
	//   0: 10, 8, 9
	//   1: 11, 9, 10  TR = max(2, |11-9|, |9-9|)   = 2
	//   2: 12, 10, 11 TR = max(2, |12-10|, |10-10|) = 2
	//   3: 13, 10, 12 TR = max(3, |13-11|, |10-11|) = 3
	//   4: 12, 9, 10  TR = max(3, |12-12|, |9-12|)  = 3
	//
	// ATR[3] = (2+2+3)/3 = 2.3333
	// ATR[4] = (2.3333*2 + 3)/3 = 2.5556
	quotes := []model.Quote{
		bar(0, 10, 8, 9),
		bar(1, 11, 9, 10),
		bar(2, 12, 10, 11),
		bar(3, 13, 10, 12),
		bar(4, 12, 9, 10),
	}
	atr := ATR(quotes, 3)
	expected := []float64{0, 0, 0, 2.3333, 2.5556}
	for i := range expected {
		assertClose(t, "ATR", atr[i], expected[i], 0.001)
	}
}

func TestATR_InsufficientHistory(t *testing.T) {
	atr := ATR(flatBars(14, 100), 14)
	if len(atr) != 14 {
		t.Fatalf("len = %d, want 14", len(atr))
	}
	for i, v := range atr {
		if v != 0 {
			t.Errorf("ATR[%d] = %f, want 0", i, v)
		}
	}
}

func TestATR_FlatSeriesIsZero(t *testing.T) {
	atr := ATR(flatBars(40, 50), 14)
	for i, v := range atr {
		if v != 0 {
			t.Errorf("ATR[%d] = %f, want 0", i, v)
		}
	}
}

// ────────────────────────────────────────────────────────────
// ADX Correctness
// ────────────────────────────────────────────────────────────

func TestADX_SteadyUptrendIs100(t *testing.T) {
	// Highs and lows step up by 1 each bar with a 2-point range:
	//   TR = 2, +DM = 1, -DM = 0 on every bar after the first.
	// Period 2 seed (bars 1..2): sTR=4, s+DM=2, s-DM=0 → +DI=50, -DI=0 → DX=100
	// Smoothing keeps sTR=4, s+DM=2, so DX stays 100.
	// ADX[3] = mean(DX[2..3]) = 100, ADX[4] = (100*1 + 100)/2 = 100
	quotes := make([]model.Quote, 5)
	for i := range quotes {
		f := float64(i)
		quotes[i] = bar(i, 10+f, 8+f, 9+f)
	}
	adx := ADX(quotes, 2)
	expected := []float64{0, 0, 0, 100, 100}
	for i := range expected {
		assertClose(t, "ADX", adx[i], expected[i], 1e-9)
	}
}

func TestADX_FlatSeriesIsZero(t *testing.T) {
	adx := ADX(flatBars(60, 20), 14)
	for i, v := range adx {
		if v != 0 {
			t.Errorf("ADX[%d] = %f, want 0", i, v)
		}
	}
}

func TestADX_InsufficientHistory(t *testing.T) {
	// 2*14+1 = 29 bars required.
	quotes := make([]model.Quote, 28)
	for i := range quotes {
		f := float64(i)
		quotes[i] = bar(i, 10+f, 8+f, 9+f)
	}
	for i, v := range ADX(quotes, 14) {
		if v != 0 {
			t.Errorf("ADX[%d] = %f, want 0", i, v)
		}
	}
}

func TestADX_FirstValueAtTwoPeriodsMinusOne(t *testing.T) {
	quotes := make([]model.Quote, 40)
	for i := range quotes {
		f := float64(i)
		quotes[i] = bar(i, 10+f, 8+f, 9+f)
	}
	adx := ADX(quotes, 14)
	if adx[26] != 0 {
		t.Errorf("ADX[26] = %f, want 0", adx[26])
	}
	if adx[27] == 0 {
		t.Error("ADX[27] should be the first valid value")
	}
}

// ────────────────────────────────────────────────────────────
// Donchian
// ────────────────────────────────────────────────────────────

func TestDonchian_WindowTruncatedAtStart(t *testing.T) {
	values := []float64{5, 3, 8, 1, 4, 6}
	upper, lower := Donchian(values, 3)

	// i=0 window [5]        → 5/5
	// i=1 window [5,3]      → 5/3
	// i=2 window [5,3,8]    → 8/3
	// i=3 window [3,8,1]    → 8/1
	// i=4 window [8,1,4]    → 8/1
	// i=5 window [1,4,6]    → 6/1
	wantUpper := []float64{5, 5, 8, 8, 8, 6}
	wantLower := []float64{5, 3, 3, 1, 1, 1}
	for i := range values {
		if upper[i] != wantUpper[i] || lower[i] != wantLower[i] {
			t.Errorf("i=%d: got %v/%v, want %v/%v", i, upper[i], lower[i], wantUpper[i], wantLower[i])
		}
	}
}

func TestDonchian_BandsBoundTheWindow(t *testing.T) {
	values := []float64{10, 12, 9, 15, 11, 13, 8, 14, 10, 16}
	const period = 4
	upper, lower := Donchian(values, period)
	for i := range values {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		for _, v := range values[start : i+1] {
			if v > upper[i] {
				t.Errorf("i=%d: value %v above upper %v", i, v, upper[i])
			}
			if v < lower[i] {
				t.Errorf("i=%d: value %v below lower %v", i, v, lower[i])
			}
		}
	}
}

func TestQuoteDonchian_WindowOneIsBar(t *testing.T) {
	quotes := []model.Quote{bar(0, 11, 9, 10), bar(1, 14, 12, 13), bar(2, 12, 7, 8)}
	upper, lower := QuoteDonchian(quotes, 1)
	for i, q := range quotes {
		if upper[i] != q.High || lower[i] != q.Low {
			t.Errorf("i=%d: got %v/%v, want %v/%v", i, upper[i], lower[i], q.High, q.Low)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Trend + Enricher
// ────────────────────────────────────────────────────────────

func TestTrend(t *testing.T) {
	up := model.Quote{Close: 60, EMA5: 58, EMA10: 56, EMA20: 54, EMA50: 50}
	if got := Trend(up); got != model.TrendUp {
		t.Errorf("Trend = %s, want Uptrend", got)
	}
	belowFifty := up
	belowFifty.Close = 49
	if got := Trend(belowFifty); got != model.TrendDown {
		t.Errorf("Trend = %s, want Downtrend", got)
	}
	misordered := up
	misordered.EMA10 = 59
	if got := Trend(misordered); got != model.TrendDown {
		t.Errorf("Trend = %s, want Downtrend", got)
	}
}

func TestEnricher_RisingSeries(t *testing.T) {
	raw := make([]model.Quote, 120)
	for i := range raw {
		f := float64(i)
		raw[i] = bar(i, 101+f, 99+f, 100+f)
	}
	out := NewEnricher(DefaultConfig()).Enrich(raw)

	if len(out) != len(raw) {
		t.Fatalf("len = %d, want %d", len(out), len(raw))
	}
	if raw[119].EMA10 != 0 {
		t.Error("input slice must not be modified")
	}

	last := out[119]
	if last.EMA5 <= last.EMA10 || last.EMA10 <= last.EMA20 || last.EMA20 <= last.EMA50 {
		t.Errorf("EMAs out of order on a rising series: %+v", last)
	}
	if last.Trend != model.TrendUp {
		t.Errorf("Trend = %s, want Uptrend", last.Trend)
	}
	// Every bar has H-L = 2 and gaps of 1, so ATR is exactly 2.
	assertClose(t, "ATR", last.ATR, 2, 1e-9)
	assertClose(t, "ADX", last.ADX, 100, 1e-9)
	assertClose(t, "DonchianUpper", last.DonchianUpper, 220, 1e-9)
	assertClose(t, "DonchianLower", last.DonchianLower, 214, 1e-9)

	if out[3].EMA5 != 0 || out[4].EMA5 == 0 {
		t.Errorf("EMA5 should start at index 4, got [3]=%f [4]=%f", out[3].EMA5, out[4].EMA5)
	}
	if out[98].EMA100 != 0 || out[99].EMA100 == 0 {
		t.Error("EMA100 should start at index 99")
	}
}
