package indicator

import (
	"math"

	"trading-backtest/internal/model"
)

// ADX returns Wilder's Average Directional Index.
//
// TR, +DM and -DM are smoothed with smoothed = smoothed - smoothed/period + x,
// seeded by the sum of bars 1..period. The first DX sits at index period.
// ADX starts at index 2*period-1 as the mean of DX[period..2*period-1] and is
// Wilder-smoothed from there. Needs 2*period+1 bars, otherwise all zeros.
func ADX(quotes []model.Quote, period int) []float64 {
	n := len(quotes)
	out := make([]float64, n)
	if period <= 0 || n < 2*period+1 {
		warnShort("ADX", n, 2*period+1)
		return out
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		cur, prev := quotes[i], quotes[i-1]
		tr[i] = TrueRange(cur, prev.Close)

		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	var sTR, sPlus, sMinus float64
	for i := 1; i <= period; i++ {
		sTR += tr[i]
		sPlus += plusDM[i]
		sMinus += minusDM[i]
	}

	p := float64(period)
	adx := NewSMMA(period)
	for i := period; i < n; i++ {
		if i > period {
			sTR = sTR - sTR/p + tr[i]
			sPlus = sPlus - sPlus/p + plusDM[i]
			sMinus = sMinus - sMinus/p + minusDM[i]
		}
		adx.Update(directionalIndex(sTR, sPlus, sMinus))
		if adx.Ready() {
			out[i] = adx.Value()
		}
	}
	return out
}

// directionalIndex is DX = 100*|+DI - -DI| / (+DI + -DI).
func directionalIndex(sTR, sPlus, sMinus float64) float64 {
	if sTR == 0 {
		return 0
	}
	plusDI := 100 * sPlus / sTR
	minusDI := 100 * sMinus / sTR
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return 100 * math.Abs(plusDI-minusDI) / sum
}
