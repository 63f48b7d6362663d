package strategy

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"trading-backtest/internal/model"
)

// StockRanker scores same-day entry candidates. Higher is preferred.
type StockRanker interface {
	Score(stock *model.Stock, q model.Quote, bc *model.BacktestContext) float64
	Description() string
}

// VolatilityRanker prefers high ATR relative to price.
type VolatilityRanker struct{}

func (VolatilityRanker) Score(_ *model.Stock, q model.Quote, _ *model.BacktestContext) float64 {
	if q.Close == 0 {
		return 0
	}
	return q.ATR / q.Close * 100
}
func (VolatilityRanker) Description() string { return "ATR as % of price (higher volatility = better)" }

// DistanceFrom10EMARanker prefers closes nearest the 10 EMA.
type DistanceFrom10EMARanker struct{}

func (DistanceFrom10EMARanker) Score(_ *model.Stock, q model.Quote, _ *model.BacktestContext) float64 {
	if q.EMA10 == 0 {
		return 0
	}
	return -math.Abs((q.Close - q.EMA10) / q.EMA10 * 100)
}
func (DistanceFrom10EMARanker) Description() string { return "Distance from 10 EMA (closer = better)" }

// SectorStrengthRanker prefers stocks in sectors with high bull percent.
type SectorStrengthRanker struct{}

func (SectorStrengthRanker) Score(s *model.Stock, q model.Quote, bc *model.BacktestContext) float64 {
	b, ok := bc.SectorBreadth(s.Sector, q.Date)
	if !ok {
		return 0
	}
	return b.BullPercent
}
func (SectorStrengthRanker) Description() string { return "Sector strength (sector bull %)" }

// CompositeRanker blends volatility, EMA distance and sector strength after
// normalizing each to 0-100.
type CompositeRanker struct {
	VolatilityWeight float64
	DistanceWeight   float64
	SectorWeight     float64
}

// NewCompositeRanker uses weights 0.4 / 0.3 / 0.3.
func NewCompositeRanker() CompositeRanker {
	return CompositeRanker{VolatilityWeight: 0.4, DistanceWeight: 0.3, SectorWeight: 0.3}
}

func (r CompositeRanker) Score(s *model.Stock, q model.Quote, bc *model.BacktestContext) float64 {
	vol := normalize(VolatilityRanker{}.Score(s, q, bc), 0, 10)
	dist := normalize(DistanceFrom10EMARanker{}.Score(s, q, bc), -10, 0)
	sector := normalize(SectorStrengthRanker{}.Score(s, q, bc), 0, 100)
	return vol*r.VolatilityWeight + dist*r.DistanceWeight + sector*r.SectorWeight
}

func (r CompositeRanker) Description() string {
	return fmt.Sprintf("Composite (Volatility %.0f%%, Distance %.0f%%, Sector %.0f%%)",
		r.VolatilityWeight*100, r.DistanceWeight*100, r.SectorWeight*100)
}

func normalize(v, min, max float64) float64 {
	if max == min {
		return 50
	}
	return (v - min) / (max - min) * 100
}

// RandomRanker is a baseline. Safe for concurrent use.
type RandomRanker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomRanker seeds a RandomRanker for reproducible runs.
func NewRandomRanker(seed int64) *RandomRanker {
	return &RandomRanker{rng: rand.New(rand.NewSource(seed))}
}

func (r *RandomRanker) Score(*model.Stock, model.Quote, *model.BacktestContext) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() * 100
}
func (r *RandomRanker) Description() string { return "Random (baseline)" }

// AdaptiveRanker ranks by volatility when market breadth is above 60% and
// by EMA distance otherwise.
type AdaptiveRanker struct{}

func (AdaptiveRanker) Score(s *model.Stock, q model.Quote, bc *model.BacktestContext) float64 {
	if b, ok := bc.MarketBreadth(q.Date); ok && b.BullPercent > 60 {
		return VolatilityRanker{}.Score(s, q, bc)
	}
	return DistanceFrom10EMARanker{}.Score(s, q, bc)
}
func (AdaptiveRanker) Description() string {
	return "Adaptive (Volatility in strong markets, DistanceFrom10Ema otherwise)"
}

// NewRanker returns the ranker registered under name. Empty means composite.
func NewRanker(name string, seed int64) (StockRanker, error) {
	switch name {
	case "", "composite":
		return NewCompositeRanker(), nil
	case "volatility":
		return VolatilityRanker{}, nil
	case "distanceFrom10Ema":
		return DistanceFrom10EMARanker{}, nil
	case "sectorStrength":
		return SectorStrengthRanker{}, nil
	case "random":
		return NewRandomRanker(seed), nil
	case "adaptive":
		return AdaptiveRanker{}, nil
	}
	return nil, fmt.Errorf("unknown ranker %q", name)
}
