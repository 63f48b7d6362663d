package backtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"trading-backtest/internal/model"
)

// forEach runs fn over pairs on the worker pool. A pair whose fn errors or
// panics is reported and counted; the others are unaffected.
func (r *run) forEach(ctx context.Context, pairs []model.StockPair, fn func(i int, p model.StockPair) error) int {
	workers := r.workers
	if workers > len(pairs) {
		workers = len(pairs)
	}
	jobs := make(chan int)
	var failed atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := safeCall(i, pairs[i], fn); err != nil {
					failed.Add(1)
					r.stockFailed(pairs[i].Trading.Symbol, err)
				}
			}
		}()
	}

feed:
	for i := range pairs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return int(failed.Load())
}

func safeCall(i int, p model.StockPair, fn func(int, model.StockPair) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(i, p)
}

// meter reports progress each time another step percent completes.
type meter struct {
	total    int64
	step     int64
	done     atomic.Int64
	lastStep atomic.Int64
	onStep   func(percent float64)
}

func newMeter(total, stepPercent int, onStep func(float64)) *meter {
	return &meter{total: int64(total), step: int64(stepPercent), onStep: onStep}
}

func (m *meter) add(n int) {
	done := m.done.Add(int64(n))
	if m.total <= 0 || m.step <= 0 {
		return
	}
	step := done * 100 / m.total / m.step
	for {
		last := m.lastStep.Load()
		if step <= last {
			return
		}
		if m.lastStep.CompareAndSwap(last, step) {
			m.onStep(float64(done) * 100 / float64(m.total))
			return
		}
	}
}
