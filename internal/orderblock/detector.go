// Package orderblock detects order blocks: the origin candle of a strong
// momentum move, kept as a supply (bearish) or demand (bullish) zone until
// price closes through it.
package orderblock

import (
	"sort"

	"trading-backtest/internal/model"
)

const (
	// DefaultSensitivity is the HIGH tier ROC threshold in whole percent.
	DefaultSensitivity = 28.0
	// LowSensitivity is the LOW tier threshold.
	LowSensitivity = 50.0

	SameTypeSpacing  = 5
	CrossTypeSpacing = 5

	lookbackMin    = 4
	lookbackMax    = 15
	rocPeriod      = 4
	volumeLookback = 20
)

// Config tunes a Detector.
type Config struct {
	Sensitivity      float64 // whole percent, e.g. 28
	Level            model.Sensitivity
	SameTypeSpacing  int
	CrossTypeSpacing int
}

// DefaultConfig is the HIGH sensitivity tier.
func DefaultConfig() Config {
	return Config{
		Sensitivity:      DefaultSensitivity,
		Level:            model.SensitivityHigh,
		SameTypeSpacing:  SameTypeSpacing,
		CrossTypeSpacing: CrossTypeSpacing,
	}
}

// LowConfig is the LOW sensitivity tier.
func LowConfig() Config {
	cfg := DefaultConfig()
	cfg.Sensitivity = LowSensitivity
	cfg.Level = model.SensitivityLow
	return cfg
}

type crossing struct {
	index int
	typ   model.OrderBlockType
}

// Detector scans a quote series for order blocks. It holds no state between
// calls and is safe for concurrent use.
type Detector struct {
	cfg Config
}

// NewDetector creates a Detector.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect returns the order blocks found in quotes. Series shorter than
// lookbackMax+rocPeriod bars yield nil.
func (d *Detector) Detect(quotes []model.Quote) []model.OrderBlock {
	if len(quotes) < lookbackMax+rocPeriod {
		return nil
	}

	qs := make([]model.Quote, len(quotes))
	copy(qs, quotes)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Date.Before(qs[j].Date) })

	threshold := d.cfg.Sensitivity / 100
	var (
		blocks    []model.OrderBlock
		crossings []crossing
		active    []int // indexes into blocks, unmitigated only
	)

	for i := rocPeriod + 1; i < len(qs); i++ {
		roc := rateOfChange(qs, i)
		prevRoc := rateOfChange(qs, i-1)

		var typ model.OrderBlockType
		switch {
		case prevRoc > -threshold && roc < -threshold:
			typ = model.Bearish
		case prevRoc < threshold && roc > threshold:
			typ = model.Bullish
		}

		if typ != "" {
			suppressed := d.tooClose(crossings, i, typ)
			crossings = append(crossings, crossing{index: i, typ: typ})

			if !suppressed {
				if b, ok := d.originBlock(qs, i, typ, roc); ok {
					blocks = append(blocks, b)
					if b.IsActive() {
						active = append(active, len(blocks)-1)
					}
				}
			}
		}

		active = mitigate(blocks, active, qs[i], qs[i-1])
	}
	return blocks
}

// tooClose reports whether a previous crossing sits within the spacing
// window for typ. Suppressed crossings count too.
func (d *Detector) tooClose(crossings []crossing, i int, typ model.OrderBlockType) bool {
	for k := len(crossings) - 1; k >= 0; k-- {
		c := crossings[k]
		spacing := d.cfg.CrossTypeSpacing
		if c.typ == typ {
			spacing = d.cfg.SameTypeSpacing
		}
		if i-c.index <= spacing {
			return true
		}
	}
	return false
}

// originBlock finds the most recent opposite-colour candle in
// [trigger-lookbackMax, trigger-lookbackMin] and builds the block on it.
func (d *Detector) originBlock(qs []model.Quote, trigger int, typ model.OrderBlockType, roc float64) (model.OrderBlock, bool) {
	for j := trigger - lookbackMin; j >= trigger-lookbackMax; j-- {
		if j < 0 {
			break
		}
		q := qs[j]
		origin := (typ == model.Bearish && q.IsBullish()) || (typ == model.Bullish && q.IsBearish())
		if !origin {
			continue
		}
		b := model.OrderBlock{
			Symbol:         q.Symbol,
			Low:            q.Low,
			High:           q.High,
			StartDate:      q.Date,
			Type:           typ,
			Volume:         q.Volume,
			VolumeStrength: volumeStrength(qs, j),
			Sensitivity:    d.cfg.Level,
			RateOfChange:   roc,
		}
		if k, ok := mitigationIndex(qs, j, b); ok {
			b = b.Mitigated(qs[k].Date)
		}
		return b, true
	}
	return model.OrderBlock{}, false
}

// mitigationIndex is the first k > origin where close[k-1] has crossed the
// block boundary.
func mitigationIndex(qs []model.Quote, origin int, b model.OrderBlock) (int, bool) {
	for k := origin + 1; k < len(qs); k++ {
		if closedThrough(b, qs[k-1].Close) {
			return k, true
		}
	}
	return 0, false
}

func closedThrough(b model.OrderBlock, close float64) bool {
	if b.Type == model.Bearish {
		return close > b.High
	}
	return close < b.Low
}

// mitigate closes active blocks that prev's close went through, dated on
// cur, and returns the still-active set.
func mitigate(blocks []model.OrderBlock, active []int, cur, prev model.Quote) []int {
	kept := active[:0]
	for _, idx := range active {
		if closedThrough(blocks[idx], prev.Close) {
			blocks[idx] = blocks[idx].Mitigated(cur.Date)
			continue
		}
		kept = append(kept, idx)
	}
	return kept
}

// rateOfChange is the percent change of open over rocPeriod bars.
func rateOfChange(qs []model.Quote, i int) float64 {
	if i < rocPeriod {
		return 0
	}
	prev := qs[i-rocPeriod].Open
	if prev == 0 {
		return 0
	}
	return (qs[i].Open - prev) / prev * 100
}

// volumeStrength is volume[j] over the mean non-zero volume of the
// preceding volumeLookback bars; 1.0 when that cannot be computed.
func volumeStrength(qs []model.Quote, j int) float64 {
	if j < volumeLookback || qs[j].Volume == 0 {
		return 1.0
	}
	var sum float64
	var n int
	for _, q := range qs[j-volumeLookback : j] {
		if q.Volume > 0 {
			sum += float64(q.Volume)
			n++
		}
	}
	if n == 0 || sum == 0 {
		return 1.0
	}
	return float64(qs[j].Volume) / (sum / float64(n))
}
