// Package refresh recomputes the derived data of stored stocks: indicator
// fields, order blocks at both sensitivity tiers, and market/sector breadth.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"trading-backtest/internal/indicator"
	"trading-backtest/internal/model"
	"trading-backtest/internal/orderblock"
)

var (
	// ErrQueueFull is returned by Enqueue when the task buffer is saturated.
	ErrQueueFull = errors.New("refresh queue full")
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("refresh queue closed")
	// ErrUnknownSymbol is returned when the store has no such stock.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

// Observer receives per-task outcomes.
type Observer interface {
	RefreshDone(symbol string, elapsed time.Duration, err error)
	RefreshRejected(symbol string)
}

// Queue is a bounded task queue of symbols drained by a fixed worker pool.
type Queue struct {
	stocks    model.StockRepository
	writer    model.StockWriter
	enricher  *indicator.Enricher
	detectors []*orderblock.Detector
	log       *slog.Logger
	observers []Observer
	workers   int
	size      int

	mu     sync.RWMutex
	tasks  chan string
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.size = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.log = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(q *Queue) { q.observers = append(q.observers, o) }
}

// NewQueue creates a queue that reads raw stocks from stocks and writes the
// enriched result to writer. Call Start before Enqueue.
func NewQueue(stocks model.StockRepository, writer model.StockWriter, opts ...Option) *Queue {
	q := &Queue{
		stocks:   stocks,
		writer:   writer,
		enricher: indicator.NewEnricher(indicator.DefaultConfig()),
		detectors: []*orderblock.Detector{
			orderblock.NewDetector(orderblock.DefaultConfig()),
			orderblock.NewDetector(orderblock.LowConfig()),
		},
		log:     slog.Default(),
		workers: DefaultWorkers,
		size:    DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan string, q.size)
	return q
}

// Start launches the workers. They exit once Close has been called and the
// buffer is drained.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.log.Info("refresh: workers started", "workers", q.workers, "queue_size", q.size)
}

// Enqueue schedules symbol without blocking.
func (q *Queue) Enqueue(symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- symbol:
		return nil
	default:
		for _, o := range q.observers {
			o.RefreshRejected(symbol)
		}
		return ErrQueueFull
	}
}

// Pending returns the number of buffered tasks.
func (q *Queue) Pending() int {
	return len(q.tasks)
}

// Close stops accepting tasks and waits for the workers to drain the buffer.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for symbol := range q.tasks {
		start := time.Now()
		err := q.Process(ctx, symbol)
		elapsed := time.Since(start)
		if err != nil {
			q.log.Warn("refresh: task failed", "symbol", symbol, "error", err)
		} else {
			q.log.Debug("refresh: task done", "symbol", symbol, "elapsed", elapsed)
		}
		for _, o := range q.observers {
			o.RefreshDone(symbol, elapsed, err)
		}
	}
}

// Process enriches one stored stock in place: indicators on every quote and
// a fresh set of order blocks from both detector tiers.
func (q *Queue) Process(ctx context.Context, symbol string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stock, err := q.stocks.FindBySymbol(ctx, symbol, time.Time{})
	if err != nil {
		return fmt.Errorf("refresh %s: load: %w", symbol, err)
	}
	if stock == nil {
		return fmt.Errorf("refresh %s: %w", symbol, ErrUnknownSymbol)
	}

	stock.SortQuotes()
	quotes := q.enricher.Enrich(stock.Quotes)
	for i := range quotes {
		quotes[i].Symbol = stock.Symbol
	}

	var blocks []model.OrderBlock
	for _, d := range q.detectors {
		for _, b := range d.Detect(quotes) {
			b.Symbol = stock.Symbol
			blocks = append(blocks, b)
		}
	}

	if err := q.writer.SaveEnriched(ctx, stock.Symbol, quotes, blocks); err != nil {
		return fmt.Errorf("refresh %s: save: %w", symbol, err)
	}
	return nil
}
