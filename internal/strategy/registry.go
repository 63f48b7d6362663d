package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrUnknownCondition is returned for a condition type not in the registry.
var ErrUnknownCondition = errors.New("unknown condition type")

// Params are the free-form parameters of a configured condition.
type Params map[string]interface{}

// Float returns the numeric parameter key, or def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("param %s: %w", key, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("param %s: unsupported type %T", key, v)
}

// Int returns the integer parameter key, or def when absent.
func (p Params) Int(key string, def int) (int, error) {
	f, err := p.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("param %s: %v is not an integer", key, f)
	}
	return int(f), nil
}

// paramReader collects the first error across several lookups.
type paramReader struct {
	p   Params
	err error
}

func (r *paramReader) float(key string, def float64) float64 {
	v, err := r.p.Float(key, def)
	if err != nil && r.err == nil {
		r.err = err
	}
	return v
}

func (r *paramReader) int(key string, def int) int {
	v, err := r.p.Int(key, def)
	if err != nil && r.err == nil {
		r.err = err
	}
	return v
}

func emaPeriod(r *paramReader, key string, def int) int {
	v := r.int(key, def)
	switch v {
	case 5, 10, 20, 50, 100:
	default:
		if r.err == nil {
			r.err = fmt.Errorf("param %s: unsupported EMA period %d", key, v)
		}
	}
	return v
}

type entryFactory func(r *paramReader) EntryCondition
type exitFactory func(r *paramReader) ExitCondition

// entryRegistry is the closed table of entry condition types.
var entryRegistry = map[string]entryFactory{
	"alwaysTrue": func(*paramReader) EntryCondition { return AlwaysTrue{} },
	"uptrend":    func(*paramReader) EntryCondition { return Uptrend{} },
	"priceAboveEma": func(r *paramReader) EntryCondition {
		return PriceAboveEMA{Period: emaPeriod(r, "emaPeriod", 10)}
	},
	"minimumPrice": func(r *paramReader) EntryCondition {
		return MinimumPrice{Min: r.float("minPrice", 10)}
	},
	"adxRange": func(r *paramReader) EntryCondition {
		return ADXRange{Min: r.float("min", 20), Max: r.float("max", 50)}
	},
	"marketBreadthAbove": func(r *paramReader) EntryCondition {
		return MarketBreadthAbove{Threshold: r.float("threshold", 50)}
	},
	"sectorBreadthAbove": func(r *paramReader) EntryCondition {
		return SectorBreadthAbove{Threshold: r.float("threshold", 50)}
	},
	"marketUptrend": func(*paramReader) EntryCondition { return MarketUptrend{} },
	"sectorUptrend": func(*paramReader) EntryCondition { return SectorUptrend{} },
	"spyUptrend":    func(*paramReader) EntryCondition { return SPYUptrend{} },
	"priceNearDonchianHigh": func(r *paramReader) EntryCondition {
		return PriceNearDonchianHigh{MaxDistancePercent: r.float("maxDistancePercent", 1.5)}
	},
	"volumeAboveAverage": func(r *paramReader) EntryCondition {
		return VolumeAboveAverage{Multiplier: r.float("multiplier", 1.3), Lookback: r.int("lookbackDays", 20)}
	},
	"notInOrderBlock": func(r *paramReader) EntryCondition {
		return NotInOrderBlock{AgeInDays: r.int("ageInDays", 120)}
	},
	"bullishCandle": func(r *paramReader) EntryCondition {
		return BullishCandle{MinPercent: r.float("minPercent", 0.5)}
	},
	"priceAbovePreviousLow": func(*paramReader) EntryCondition { return PriceAbovePreviousLow{} },
	"marketBreadthNearDonchianLow": func(r *paramReader) EntryCondition {
		return MarketBreadthNearDonchianLow{Percentile: r.float("percentile", 0.10)}
	},
}

// exitRegistry is the closed table of exit condition types.
var exitRegistry = map[string]exitFactory{
	"exitAfterDays": func(r *paramReader) ExitCondition {
		return ExitAfterDays{Days: r.int("days", 10)}
	},
	"stopLoss": func(r *paramReader) ExitCondition {
		return StopLoss{ATRMultiplier: r.float("atrMultiplier", 2.0)}
	},
	"trailingStopLoss": func(r *paramReader) ExitCondition {
		return TrailingStopLoss{ATRMultiplier: r.float("atrMultiplier", 2.7)}
	},
	"priceBelowEma": func(r *paramReader) ExitCondition {
		return PriceBelowEMA{Period: emaPeriod(r, "emaPeriod", 10)}
	},
	"emaCross": func(r *paramReader) ExitCondition {
		return EMACross{Fast: emaPeriod(r, "fastEma", 10), Slow: emaPeriod(r, "slowEma", 20)}
	},
	"profitTarget": func(r *paramReader) ExitCondition {
		return ProfitTarget{ATRMultiplier: r.float("atrMultiplier", 3.0), EMAPeriod: emaPeriod(r, "emaPeriod", 20)}
	},
}

// NewEntryCondition builds the registered entry condition kind.
func NewEntryCondition(kind string, p Params) (EntryCondition, error) {
	f, ok := entryRegistry[kind]
	if !ok {
		return nil, fmt.Errorf("entry %q: %w", kind, ErrUnknownCondition)
	}
	r := &paramReader{p: p}
	c := f(r)
	if r.err != nil {
		return nil, fmt.Errorf("entry %q: %w", kind, r.err)
	}
	return c, nil
}

// NewExitCondition builds the registered exit condition kind.
func NewExitCondition(kind string, p Params) (ExitCondition, error) {
	f, ok := exitRegistry[kind]
	if !ok {
		return nil, fmt.Errorf("exit %q: %w", kind, ErrUnknownCondition)
	}
	r := &paramReader{p: p}
	c := f(r)
	if r.err != nil {
		return nil, fmt.Errorf("exit %q: %w", kind, r.err)
	}
	return c, nil
}

// EntryTypes lists registered entry condition types, sorted.
func EntryTypes() []string { return sortedKeys(entryRegistry) }

// ExitTypes lists registered exit condition types, sorted.
func ExitTypes() []string { return sortedKeys(exitRegistry) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
