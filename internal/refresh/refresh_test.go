package refresh

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"trading-backtest/internal/model"
)

func assertClose(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func rising(symbol string, n int) *model.Stock {
	s := &model.Stock{Symbol: symbol, Sector: "XLK"}
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		s.Quotes = append(s.Quotes, model.Quote{
			Symbol: symbol, Date: day0.AddDate(0, 0, i),
			Open: c - 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
		})
	}
	return s
}

type memStore struct {
	mu       sync.Mutex
	stocks   map[string]*model.Stock
	quotes   map[string][]model.Quote
	blocks   map[string][]model.OrderBlock
	breadth  []model.Breadth
	failOn   string
	failSave string
	gate     chan struct{}
}

func newMemStore(stocks ...*model.Stock) *memStore {
	m := &memStore{
		stocks: map[string]*model.Stock{},
		quotes: map[string][]model.Quote{},
		blocks: map[string][]model.OrderBlock{},
	}
	for _, s := range stocks {
		m.stocks[s.Symbol] = s
	}
	return m
}

func (m *memStore) FindBySymbol(_ context.Context, symbol string, _ time.Time) (*model.Stock, error) {
	if m.gate != nil {
		<-m.gate
	}
	if symbol == m.failOn {
		return nil, errors.New("disk on fire")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stocks[symbol]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.Quotes = append([]model.Quote(nil), s.Quotes...)
	return &cp, nil
}

func (m *memStore) FindBySymbols(ctx context.Context, symbols []string, after time.Time) ([]*model.Stock, error) {
	var out []*model.Stock
	for _, sym := range symbols {
		s, err := m.FindBySymbol(ctx, sym, after)
		if err != nil {
			return nil, err
		}
		if s != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) UpsertStock(context.Context, string, string) error { return nil }

func (m *memStore) SaveQuotes(_ context.Context, quotes []model.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range quotes {
		m.quotes[q.Symbol] = append(m.quotes[q.Symbol], q)
	}
	return nil
}

func (m *memStore) ReplaceOrderBlocks(_ context.Context, symbol string, blocks []model.OrderBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[symbol] = blocks
	return nil
}

func (m *memStore) SaveEnriched(ctx context.Context, symbol string, quotes []model.Quote, blocks []model.OrderBlock) error {
	if symbol == m.failSave {
		return errors.New("write rejected")
	}
	if err := m.SaveQuotes(ctx, quotes); err != nil {
		return err
	}
	return m.ReplaceOrderBlocks(ctx, symbol, blocks)
}

func (m *memStore) SaveBreadth(_ context.Context, rows []model.Breadth) error {
	m.breadth = rows
	return nil
}

type recorder struct {
	mu       sync.Mutex
	done     map[string]error
	rejected []string
}

func (r *recorder) RefreshDone(symbol string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		r.done = map[string]error{}
	}
	r.done[symbol] = err
}

func (r *recorder) RefreshRejected(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, symbol)
}

// ─── Queue ───

func TestProcessEnrichesQuotes(t *testing.T) {
	store := newMemStore(rising("AAPL", 30))
	q := NewQueue(store, store)

	if err := q.Process(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	got := store.quotes["AAPL"]
	if len(got) != 30 {
		t.Fatalf("saved %d quotes, want 30", len(got))
	}
	// EMA5 seeds with the SMA of closes 100..104.
	assertClose(t, "EMA5[4]", got[4].EMA5, 102)
	if got[3].EMA5 != 0 {
		t.Errorf("EMA5[3] = %v, want 0 before warmup", got[3].EMA5)
	}
	// Donchian5 upper on bar 10 is the high of bar 10.
	assertClose(t, "DonchianUpper[10]", got[10].DonchianUpper, 111)
	if _, ok := store.blocks["AAPL"]; !ok {
		t.Error("order blocks were not replaced")
	}
}

func TestProcessSaveFailureLeavesStoreUntouched(t *testing.T) {
	store := newMemStore(rising("AAPL", 30))
	store.failSave = "AAPL"
	err := NewQueue(store, store).Process(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("Process succeeded with a failing writer")
	}
	if len(store.quotes["AAPL"]) != 0 {
		t.Errorf("saved %d quotes despite the failed write", len(store.quotes["AAPL"]))
	}
	if _, ok := store.blocks["AAPL"]; ok {
		t.Error("order blocks replaced despite the failed write")
	}
}

func TestProcessUnknownSymbol(t *testing.T) {
	store := newMemStore()
	q := NewQueue(store, store)
	if err := q.Process(context.Background(), "NOPE"); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("err = %v, want ErrUnknownSymbol", err)
	}
}

func TestQueueDrainsOnClose(t *testing.T) {
	store := newMemStore(rising("AAPL", 30), rising("MSFT", 30))
	store.failOn = "MSFT"
	rec := &recorder{}
	q := NewQueue(store, store, WithWorkers(2), WithObserver(rec))
	q.Start(context.Background())

	for _, sym := range []string{"aapl", " MSFT ", "NVDA"} {
		if err := q.Enqueue(sym); err != nil {
			t.Fatalf("enqueue %s: %v", sym, err)
		}
	}
	q.Close()

	if len(rec.done) != 3 {
		t.Fatalf("done = %v, want 3 tasks", rec.done)
	}
	if rec.done["AAPL"] != nil {
		t.Errorf("AAPL err = %v", rec.done["AAPL"])
	}
	if rec.done["MSFT"] == nil {
		t.Error("MSFT should fail")
	}
	if !errors.Is(rec.done["NVDA"], ErrUnknownSymbol) {
		t.Errorf("NVDA err = %v", rec.done["NVDA"])
	}
	if err := q.Enqueue("AAPL"); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("enqueue after close = %v, want ErrQueueClosed", err)
	}
}

func TestQueueFull(t *testing.T) {
	store := newMemStore(rising("AAPL", 30))
	store.gate = make(chan struct{})
	rec := &recorder{}
	q := NewQueue(store, store, WithWorkers(1), WithQueueSize(1), WithObserver(rec))

	// No workers yet, so the buffer holds exactly one task.
	if err := q.Enqueue("AAPL"); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue("AAPL"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
	if len(rec.rejected) != 1 {
		t.Errorf("rejected = %v", rec.rejected)
	}

	q.Start(context.Background())
	close(store.gate)
	q.Close()
	if q.Pending() != 0 {
		t.Errorf("pending = %d, want 0", q.Pending())
	}
}

// ─── Breadth ───

func TestComputeBreadth(t *testing.T) {
	mk := func(symbol, sector string, trends ...string) *model.Stock {
		s := &model.Stock{Symbol: symbol, Sector: sector}
		for i, tr := range trends {
			s.Quotes = append(s.Quotes, model.Quote{Date: day0.AddDate(0, 0, i), Trend: tr})
		}
		return s
	}
	up, down := model.TrendUp, model.TrendDown
	stocks := []*model.Stock{
		mk("A", "XLK", up, up),
		mk("B", "XLK", down, up),
		mk("C", "XLF", down, down),
		mk("D", "", up),
	}

	rows := ComputeBreadth(stocks)
	// MARKET x2, XLF x2, XLK x2
	if len(rows) != 6 {
		t.Fatalf("rows = %d, want 6", len(rows))
	}

	market := rows[:2]
	if market[0].Scope != model.MarketScope {
		t.Fatalf("first scope = %q", market[0].Scope)
	}
	// day 0: A, D up out of A,B,C,D
	assertClose(t, "market day0", market[0].BullPercent, 50)
	if market[0].Total != 4 {
		t.Errorf("market day0 total = %d, want 4", market[0].Total)
	}
	// day 1: A, B up out of A,B,C
	assertClose(t, "market day1", market[1].BullPercent, 200.0/3)
	assertClose(t, "market donchian upper", market[1].DonchianUpper, 200.0/3)
	assertClose(t, "market donchian lower", market[1].DonchianLower, 50)

	xlf, xlk := rows[2:4], rows[4:6]
	if xlf[0].Scope != "XLF" || xlk[0].Scope != "XLK" {
		t.Fatalf("sector order = %q, %q", xlf[0].Scope, xlk[0].Scope)
	}
	assertClose(t, "XLF day1", xlf[1].BullPercent, 0)
	assertClose(t, "XLK day0", xlk[0].BullPercent, 50)
	assertClose(t, "XLK day1", xlk[1].BullPercent, 100)
}

func TestComputeBreadthEMA(t *testing.T) {
	s := &model.Stock{Symbol: "A", Sector: "XLK"}
	for i := 0; i < 6; i++ {
		trend := model.TrendDown
		if i%2 == 0 {
			trend = model.TrendUp
		}
		s.Quotes = append(s.Quotes, model.Quote{Date: day0.AddDate(0, 0, i), Trend: trend})
	}
	rows := ComputeBreadth([]*model.Stock{s})
	// bull: 100 0 100 0 100 0; EMA5 seed = 300/5 = 60, next = 0*(1/3) + 60*(2/3) = 40
	assertClose(t, "EMA5[4]", rows[4].EMA5, 60)
	assertClose(t, "EMA5[5]", rows[5].EMA5, 40)
	if rows[5].EMA10 != 0 {
		t.Errorf("EMA10 = %v, want 0 before warmup", rows[5].EMA10)
	}
}

func TestRebuildBreadth(t *testing.T) {
	store := newMemStore(rising("AAPL", 3), rising("MSFT", 3))
	n, err := RebuildBreadth(context.Background(), store, store, []string{"AAPL", "MSFT", "NOPE"})
	if err != nil {
		t.Fatal(err)
	}
	// 3 market + 3 XLK
	if n != 6 || len(store.breadth) != 6 {
		t.Errorf("rows = %d (stored %d), want 6", n, len(store.breadth))
	}
}
