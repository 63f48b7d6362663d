package redis

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"trading-backtest/internal/model"
)

type countingRepo struct {
	mu     sync.Mutex
	stocks map[string]*model.Stock
	calls  int
	asked  [][]string
}

func (r *countingRepo) FindBySymbol(ctx context.Context, symbol string, after time.Time) (*model.Stock, error) {
	out, err := r.FindBySymbols(ctx, []string{symbol}, after)
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

func (r *countingRepo) FindBySymbols(_ context.Context, symbols []string, _ time.Time) ([]*model.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.asked = append(r.asked, append([]string(nil), symbols...))
	var out []*model.Stock
	for _, s := range symbols {
		if st, ok := r.stocks[s]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

type countingObserver struct{ hits, misses int }

func (o *countingObserver) CacheHits(n int)   { o.hits += n }
func (o *countingObserver) CacheMisses(n int) { o.misses += n }

func sampleRepo() *countingRepo {
	d := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return &countingRepo{stocks: map[string]*model.Stock{
		"AAPL": {Symbol: "AAPL", Sector: "XLK", Quotes: []model.Quote{{Symbol: "AAPL", Date: d, Close: 185.5, ATR: 2.5}}},
		"MSFT": {Symbol: "MSFT", Sector: "XLK", Quotes: []model.Quote{{Symbol: "MSFT", Date: d, Close: 370}}},
	}}
}

func TestCacheKey(t *testing.T) {
	got := CacheKey("aapl", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if got != "stock:AAPL:2024-01-01" {
		t.Errorf("CacheKey = %q", got)
	}
}

// ─── Redis unavailable ────────────────────────────────────────────────────────

func TestCachedRepository_FallsBackWhenRedisDown(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	backing := sampleRepo()
	obs := &countingObserver{}
	cb, _ := newTestBreaker(2, time.Minute)
	repo := NewCachedRepository(client, backing, time.Hour, WithBreaker(cb), WithCacheObserver(obs))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := repo.FindBySymbols(ctx, []string{"MSFT", "NOPE", "AAPL"}, time.Time{})
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if len(got) != 2 || got[0].Symbol != "MSFT" || got[1].Symbol != "AAPL" {
			t.Fatalf("call %d: got %+v", i, got)
		}
	}
	if backing.calls != 3 {
		t.Errorf("backing calls = %d, want 3", backing.calls)
	}
	// first call: failed read + failed write trips the breaker
	if cb.CurrentState() != StateOpen {
		t.Errorf("breaker = %v, want open", cb.CurrentState())
	}
	if obs.misses != 9 || obs.hits != 0 {
		t.Errorf("hits=%d misses=%d, want 0 and 9", obs.hits, obs.misses)
	}

	s, err := repo.FindBySymbol(ctx, "NOPE", time.Time{})
	if err != nil || s != nil {
		t.Errorf("unknown symbol = %v, %v", s, err)
	}
}

// ─── Live Redis ───────────────────────────────────────────────────────────────

func TestCachedRepository_ReadThrough(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client, err := NewClient(ClientConfig{Addr: addr, DB: 15})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	ctx := context.Background()
	client.FlushDB(ctx)

	backing := sampleRepo()
	obs := &countingObserver{}
	repo := NewCachedRepository(client, backing, time.Minute, WithCacheObserver(obs))
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := repo.FindBySymbols(ctx, []string{"AAPL", "NOPE"}, after); err != nil {
		t.Fatal(err)
	}
	got, err := repo.FindBySymbols(ctx, []string{"AAPL", "NOPE", "MSFT"}, after)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Quotes[0].Close != 185.5 || got[0].Quotes[0].ATR != 2.5 {
		t.Fatalf("got %+v", got)
	}
	// second call only asks the backing store for MSFT
	if backing.calls != 2 || len(backing.asked[1]) != 1 || backing.asked[1][0] != "MSFT" {
		t.Errorf("backing asked %v", backing.asked)
	}
	if obs.hits != 2 || obs.misses != 3 {
		t.Errorf("hits=%d misses=%d, want 2 and 3", obs.hits, obs.misses)
	}

	if err := repo.Invalidate(ctx, "AAPL"); err != nil {
		t.Fatal(err)
	}
	if n, _ := client.Exists(ctx, CacheKey("AAPL", after)).Result(); n != 0 {
		t.Error("AAPL still cached after Invalidate")
	}
}
