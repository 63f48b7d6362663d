package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"trading-backtest/internal/model"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func openPair(t *testing.T) (*Writer, *Reader, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "market.db")
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return w, r, path
}

func quotes(symbol string, closes ...float64) []model.Quote {
	out := make([]model.Quote, len(closes))
	for i, c := range closes {
		out[i] = model.Quote{
			Symbol: symbol, Date: day0.AddDate(0, 0, i),
			Open: c - 1, High: c + 1, Low: c - 2, Close: c, Volume: int64(1000 * (i + 1)),
			EMA10: c - 0.5, ATR: 1.25, Trend: model.TrendUp,
		}
	}
	return out
}

// ─── Stocks and quotes ────────────────────────────────────────────────────────

func TestWriterReader_StockRoundTrip(t *testing.T) {
	ctx := context.Background()
	w, r, _ := openPair(t)

	if err := w.UpsertStock(ctx, "AAPL", "XLK"); err != nil {
		t.Fatal(err)
	}
	if err := w.SaveQuotes(ctx, quotes("AAPL", 100, 101, 102)); err != nil {
		t.Fatal(err)
	}
	end := day0.AddDate(0, 0, 2)
	blocks := []model.OrderBlock{
		{Low: 98, High: 100, StartDate: day0, Type: model.Bearish, Volume: 500, Sensitivity: model.SensitivityHigh, RateOfChange: -0.4},
		{Low: 95, High: 97, StartDate: day0, EndDate: &end, Type: model.Bullish, Sensitivity: model.SensitivityLow},
	}
	if err := w.ReplaceOrderBlocks(ctx, "AAPL", blocks); err != nil {
		t.Fatal(err)
	}

	s, err := r.FindBySymbol(ctx, "AAPL", day0.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("FindBySymbol: %v", err)
	}
	if s == nil || s.Sector != "XLK" {
		t.Fatalf("stock = %+v", s)
	}
	// quotesAfter is inclusive: days 1 and 2
	if len(s.Quotes) != 2 || !s.Quotes[0].Date.Equal(day0.AddDate(0, 0, 1)) {
		t.Fatalf("quotes = %+v", s.Quotes)
	}
	q := s.Quotes[1]
	if q.Close != 102 || q.Volume != 3000 || q.ATR != 1.25 || q.Trend != model.TrendUp || q.Symbol != "AAPL" {
		t.Errorf("quote fields lost: %+v", q)
	}
	if len(s.OrderBlocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(s.OrderBlocks))
	}
	var closed *model.OrderBlock
	for i := range s.OrderBlocks {
		if s.OrderBlocks[i].Type == model.Bullish {
			closed = &s.OrderBlocks[i]
		}
	}
	if closed == nil || closed.EndDate == nil || !closed.EndDate.Equal(end) || closed.Sensitivity != model.SensitivityLow {
		t.Errorf("closed block = %+v", closed)
	}
}

func TestReader_UnknownSymbol(t *testing.T) {
	_, r, _ := openPair(t)
	s, err := r.FindBySymbol(context.Background(), "NOPE", time.Time{})
	if err != nil || s != nil {
		t.Errorf("FindBySymbol = %v, %v; want nil, nil", s, err)
	}
}

func TestReader_FindBySymbolsKeepsOrder(t *testing.T) {
	ctx := context.Background()
	w, r, _ := openPair(t)
	for _, sym := range []string{"MSFT", "AAPL", "NVDA"} {
		if err := w.UpsertStock(ctx, sym, "XLK"); err != nil {
			t.Fatal(err)
		}
		if err := w.SaveQuotes(ctx, quotes(sym, 10, 11)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.FindBySymbols(ctx, []string{"NVDA", "ZZZ", "AAPL"}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Symbol != "NVDA" || got[1].Symbol != "AAPL" {
		t.Errorf("got %d stocks", len(got))
	}

	syms, err := r.ListSymbols(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 3 || syms[0] != "AAPL" || syms[2] != "NVDA" {
		t.Errorf("ListSymbols = %v", syms)
	}
}

func TestWriter_ReplaceOrderBlocks(t *testing.T) {
	ctx := context.Background()
	w, r, _ := openPair(t)
	w.UpsertStock(ctx, "AAPL", "XLK")
	w.SaveQuotes(ctx, quotes("AAPL", 100))

	first := []model.OrderBlock{{Low: 1, High: 2, StartDate: day0, Type: model.Bearish, Sensitivity: model.SensitivityHigh}}
	second := []model.OrderBlock{
		{Low: 3, High: 4, StartDate: day0, Type: model.Bullish, Sensitivity: model.SensitivityHigh},
		{Low: 5, High: 6, StartDate: day0, Type: model.Bullish, Sensitivity: model.SensitivityLow},
	}
	if err := w.ReplaceOrderBlocks(ctx, "AAPL", first); err != nil {
		t.Fatal(err)
	}
	if err := w.ReplaceOrderBlocks(ctx, "AAPL", second); err != nil {
		t.Fatal(err)
	}
	s, _ := r.FindBySymbol(ctx, "AAPL", time.Time{})
	if len(s.OrderBlocks) != 2 || s.OrderBlocks[0].Low != 3 {
		t.Errorf("blocks = %+v", s.OrderBlocks)
	}
}

func TestWriter_SaveEnriched(t *testing.T) {
	ctx := context.Background()
	w, r, _ := openPair(t)
	w.UpsertStock(ctx, "AAPL", "XLK")
	old := []model.OrderBlock{{Low: 1, High: 2, StartDate: day0, Type: model.Bearish, Sensitivity: model.SensitivityHigh}}
	if err := w.SaveEnriched(ctx, "AAPL", quotes("AAPL", 100, 101), old); err != nil {
		t.Fatalf("SaveEnriched: %v", err)
	}

	// A failing block insert must roll back the quotes written before it.
	_, err := w.DB().ExecContext(ctx, `
		CREATE TRIGGER reject_blocks BEFORE INSERT ON order_blocks
		BEGIN SELECT RAISE(ABORT, 'blocks rejected'); END`)
	if err != nil {
		t.Fatal(err)
	}
	fresh := []model.OrderBlock{{Low: 7, High: 8, StartDate: day0, Type: model.Bullish, Sensitivity: model.SensitivityLow}}
	if err := w.SaveEnriched(ctx, "AAPL", quotes("AAPL", 200, 201), fresh); err == nil {
		t.Fatal("SaveEnriched succeeded with a rejecting trigger")
	}

	s, err := r.FindBySymbol(ctx, "AAPL", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Quotes) != 2 || s.Quotes[0].Close != 100 || s.Quotes[1].Close != 101 {
		t.Errorf("quotes changed after rollback: %+v", s.Quotes)
	}
	if len(s.OrderBlocks) != 1 || s.OrderBlocks[0].Low != 1 {
		t.Errorf("blocks changed after rollback: %+v", s.OrderBlocks)
	}
}

func TestWriter_RunFlushesOnClose(t *testing.T) {
	w, r, _ := openPair(t)
	ch := make(chan model.Quote, 10)
	for _, q := range quotes("SPY", 470, 471, 472) {
		ch <- q
	}
	close(ch)
	w.Run(context.Background(), ch)

	s, err := r.FindBySymbol(context.Background(), "SPY", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if s == nil || len(s.Quotes) != 3 {
		t.Fatalf("stock = %+v", s)
	}
}

// ─── Breadth ──────────────────────────────────────────────────────────────────

func TestBreadthRoundTrip(t *testing.T) {
	ctx := context.Background()
	w, r, _ := openPair(t)
	rows := []model.Breadth{
		{Scope: model.MarketScope, Date: day0, BullPercent: 55, EMA10: 50, Total: 100},
		{Scope: model.MarketScope, Date: day0.AddDate(0, 0, 1), BullPercent: 60, EMA10: 52, Total: 100},
		{Scope: "XLK", Date: day0, BullPercent: 70, Total: 10},
	}
	if err := w.SaveBreadth(ctx, rows); err != nil {
		t.Fatal(err)
	}

	market, err := r.MarketBreadth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(market) != 2 || market[1].BullPercent != 60 || !market[0].InUptrend() {
		t.Errorf("market = %+v", market)
	}
	sectors, err := r.SectorBreadth(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sectors) != 1 || len(sectors["XLK"]) != 1 || sectors["XLK"][0].Total != 10 {
		t.Errorf("sectors = %+v", sectors)
	}
}

// ─── Journal ──────────────────────────────────────────────────────────────────

func TestJournal_SaveRun(t *testing.T) {
	ctx := context.Background()
	_, _, path := openPair(t)
	j, err := NewJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	qs := quotes("TQQQ", 50, 51, 53)
	trade := model.Trade{
		Symbol: "TQQQ", UnderlyingSymbol: "QQQ", EntryQuote: qs[0], Quotes: qs,
		ExitReason: "Held for 2 trading days", Profit: 3, StartDate: qs[0].Date, Sector: "XLK",
	}
	missed := trade
	missed.Symbol = "SOXL"

	run := RunRecord{
		RunID: "run-1", Strategy: "plan-alpha", Mode: "constrained", Symbols: 2,
		After: day0, Before: day0.AddDate(0, 1, 0), MaxPositions: 1,
		Trades: 1, MissedTrades: 1, WinRate: 100, TotalProfit: 3, Duration: 1500 * time.Millisecond,
	}
	if err := j.SaveRun(ctx, run, []model.Trade{trade}, []model.Trade{missed}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	recs, err := j.GetTrades(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	// ordered by entry date then symbol: SOXL before TQQQ
	if !recs[0].Missed || recs[1].Missed {
		t.Errorf("missed flags = %v, %v", recs[0].Missed, recs[1].Missed)
	}
	tq := recs[1]
	// entry 50, profit 3 → exit 53, 6%
	if tq.ExitPrice != 53 || tq.ProfitPercent != 6 || tq.TradingDays != 2 || tq.Underlying != "QQQ" {
		t.Errorf("trade record = %+v", tq)
	}
	if tq.ExitDate != day0.AddDate(0, 0, 2).Format(model.DateLayout) {
		t.Errorf("exit date = %s", tq.ExitDate)
	}

	runs, err := j.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Strategy != "plan-alpha" || runs[0].Duration != 1500*time.Millisecond {
		t.Errorf("runs = %+v", runs)
	}
	if !runs[0].After.Equal(day0) {
		t.Errorf("after = %v", runs[0].After)
	}
}
