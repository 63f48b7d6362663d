// Package redis caches stock loads in Redis in front of a slower
// repository. Cache errors never fail a load: the circuit breaker trips
// and calls go straight to the backing repository until Redis recovers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-backtest/internal/model"
)

// ClientConfig configures the Redis connection.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client and pings the server.
func NewClient(cfg ClientConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return client, nil
}

// CacheObserver receives hit and miss counts.
type CacheObserver interface {
	CacheHits(n int)
	CacheMisses(n int)
}

// CachedRepository is a read-through model.StockRepository.
type CachedRepository struct {
	client   goredis.UniversalClient
	backing  model.StockRepository
	cb       *CircuitBreaker
	ttl      time.Duration
	observer CacheObserver
}

// CacheOption configures a CachedRepository.
type CacheOption func(*CachedRepository)

// WithBreaker replaces the default breaker (5 failures, 30s reset).
func WithBreaker(cb *CircuitBreaker) CacheOption {
	return func(c *CachedRepository) { c.cb = cb }
}

// WithCacheObserver reports hits and misses.
func WithCacheObserver(o CacheObserver) CacheOption {
	return func(c *CachedRepository) { c.observer = o }
}

// NewCachedRepository wraps backing with a Redis cache whose entries live
// for ttl.
func NewCachedRepository(client goredis.UniversalClient, backing model.StockRepository, ttl time.Duration, opts ...CacheOption) *CachedRepository {
	c := &CachedRepository{
		client:  client,
		backing: backing,
		ttl:     ttl,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cb == nil {
		c.cb = NewCircuitBreaker(5, 30*time.Second)
		c.cb.OnStateChange = func(from, to State) {
			log.Printf("[redis] cache circuit %s -> %s", from, to)
		}
	}
	return c
}

// Breaker exposes the circuit breaker for health reporting.
func (c *CachedRepository) Breaker() *CircuitBreaker { return c.cb }

// CacheKey is the Redis key of a stock loaded with the given quotesAfter.
func CacheKey(symbol string, quotesAfter time.Time) string {
	return "stock:" + strings.ToUpper(symbol) + ":" + quotesAfter.Format(model.DateLayout)
}

// FindBySymbol implements model.StockRepository.
func (c *CachedRepository) FindBySymbol(ctx context.Context, symbol string, quotesAfter time.Time) (*model.Stock, error) {
	stocks, err := c.FindBySymbols(ctx, []string{symbol}, quotesAfter)
	if err != nil || len(stocks) == 0 {
		return nil, err
	}
	return stocks[0], nil
}

// FindBySymbols serves what it can from the cache, loads the rest from the
// backing repository in one call and writes them back. Unknown symbols are
// cached as null so repeated runs do not hit the backing store for them.
func (c *CachedRepository) FindBySymbols(ctx context.Context, symbols []string, quotesAfter time.Time) ([]*model.Stock, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = CacheKey(s, quotesAfter)
	}

	found := make(map[string]*model.Stock, len(symbols))
	var values []interface{}
	err := c.cb.Execute(func() error {
		var err error
		values, err = c.client.MGet(ctx, keys...).Result()
		return err
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] cache read failed: %v", err)
	}

	var missing []string
	for i, sym := range symbols {
		if i < len(values) {
			if raw, ok := values[i].(string); ok {
				var s *model.Stock
				if err := json.Unmarshal([]byte(raw), &s); err == nil {
					if s != nil {
						found[sym] = s
					}
					continue
				}
			}
		}
		missing = append(missing, sym)
	}
	c.observeHits(len(symbols)-len(missing), len(missing))

	if len(missing) > 0 {
		loaded, err := c.backing.FindBySymbols(ctx, missing, quotesAfter)
		if err != nil {
			return nil, err
		}
		fresh := make(map[string]*model.Stock, len(loaded))
		for _, s := range loaded {
			if s != nil {
				fresh[strings.ToUpper(s.Symbol)] = s
			}
		}
		for _, sym := range missing {
			if s := fresh[strings.ToUpper(sym)]; s != nil {
				found[sym] = s
			}
		}
		c.store(ctx, missing, fresh, quotesAfter)
	}

	out := make([]*model.Stock, 0, len(found))
	for _, sym := range symbols {
		if s, ok := found[sym]; ok {
			out = append(out, s)
			delete(found, sym)
		}
	}
	return out, nil
}

// store writes freshly loaded stocks, and nulls for unknown symbols, in one
// pipeline.
func (c *CachedRepository) store(ctx context.Context, symbols []string, fresh map[string]*model.Stock, quotesAfter time.Time) {
	err := c.cb.Execute(func() error {
		_, err := c.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
			for _, sym := range symbols {
				data, err := json.Marshal(fresh[strings.ToUpper(sym)])
				if err != nil {
					return err
				}
				p.Set(ctx, CacheKey(sym, quotesAfter), data, c.ttl)
			}
			return nil
		})
		return err
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] cache write failed: %v", err)
	}
}

// Invalidate drops every cached load of the given symbols.
func (c *CachedRepository) Invalidate(ctx context.Context, symbols ...string) error {
	return c.cb.Execute(func() error {
		for _, sym := range symbols {
			iter := c.client.Scan(ctx, 0, "stock:"+strings.ToUpper(sym)+":*", 100).Iterator()
			var keys []string
			for iter.Next(ctx) {
				keys = append(keys, iter.Val())
			}
			if err := iter.Err(); err != nil {
				return fmt.Errorf("redis scan %s: %w", sym, err)
			}
			if len(keys) > 0 {
				if err := c.client.Del(ctx, keys...).Err(); err != nil {
					return fmt.Errorf("redis del %s: %w", sym, err)
				}
			}
		}
		return nil
	})
}

func (c *CachedRepository) observeHits(hits, misses int) {
	if c.observer == nil {
		return
	}
	if hits > 0 {
		c.observer.CacheHits(hits)
	}
	if misses > 0 {
		c.observer.CacheMisses(misses)
	}
}
