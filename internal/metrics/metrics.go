package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the backtester. It satisfies the
// backtest engine's Observer, the cache's CacheObserver and the refresh
// queue's observer.
type Metrics struct {
	RunsTotal      *prometheus.CounterVec // labels: mode
	RunErrors      prometheus.Counter
	TradesTotal    *prometheus.CounterVec // labels: kind=trade|missed
	SignalsTotal   prometheus.Counter
	StockFailures  prometheus.Counter
	RunDuration    prometheus.Histogram
	ProgressPct    prometheus.Gauge
	RunsInProgress prometheus.Gauge

	// Cache
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
	CacheCircuitState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	CacheCircuitTrips prometheus.Counter

	// Refresh pipeline
	RefreshTasks    *prometheus.CounterVec // labels: status=ok|error|rejected
	RefreshDuration prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Backtest runs started (by execution mode)",
		}, []string{"mode"}),
		RunErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_run_errors_total",
			Help: "Backtest runs that ended with an error",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Trades produced (kind=trade|missed)",
		}, []string{"kind"}),
		SignalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_signals_total",
			Help: "Entry signals collected in constrained runs",
		}),
		StockFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_stock_failures_total",
			Help: "Stocks skipped because loading or evaluation failed",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_run_duration_seconds",
			Help:    "Wall time of a backtest run",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		ProgressPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_progress_percent",
			Help: "Progress of the current run (0-100)",
		}),
		RunsInProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_runs_in_progress",
			Help: "Backtest runs currently executing",
		}),

		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Stock loads served from Redis",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Stock loads that fell through to the backing store",
		}),
		CacheCircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_circuit_breaker_state",
			Help: "Redis cache circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		CacheCircuitTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_circuit_breaker_trips_total",
			Help: "Times the Redis cache circuit breaker tripped open",
		}),

		RefreshTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refresh_tasks_total",
			Help: "Refresh tasks by outcome (ok, error, rejected)",
		}, []string{"status"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "refresh_task_duration_seconds",
			Help:    "Time to enrich and store one symbol",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunErrors,
		m.TradesTotal,
		m.SignalsTotal,
		m.StockFailures,
		m.RunDuration,
		m.ProgressPct,
		m.RunsInProgress,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheCircuitState,
		m.CacheCircuitTrips,
		m.RefreshTasks,
		m.RefreshDuration,
	)

	return m
}

// ── Engine observer ──

func (m *Metrics) RunStarted(_ string, mode string, _ int) {
	m.RunsTotal.WithLabelValues(mode).Inc()
	m.RunsInProgress.Inc()
	m.ProgressPct.Set(0)
}

func (m *Metrics) RunProgress(_ string, percent float64) {
	m.ProgressPct.Set(percent)
}

func (m *Metrics) StockFailed(string, string, error) {
	m.StockFailures.Inc()
}

func (m *Metrics) RunFinished(_ string, _ string, signals, trades, missed int, elapsed time.Duration, err error) {
	m.RunsInProgress.Dec()
	m.RunDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.RunErrors.Inc()
		return
	}
	m.ProgressPct.Set(100)
	m.SignalsTotal.Add(float64(signals))
	m.TradesTotal.WithLabelValues("trade").Add(float64(trades))
	m.TradesTotal.WithLabelValues("missed").Add(float64(missed))
}

// ── Cache observer ──

func (m *Metrics) CacheHits(n int)   { m.CacheHitsTotal.Add(float64(n)) }
func (m *Metrics) CacheMisses(n int) { m.CacheMissesTotal.Add(float64(n)) }

// BreakerStateChanged mirrors the cache breaker state into the gauge.
func (m *Metrics) BreakerStateChanged(state int) {
	if state == 1 {
		m.CacheCircuitTrips.Inc()
	}
	m.CacheCircuitState.Set(float64(state))
}

// ── Refresh observer ──

func (m *Metrics) RefreshDone(_ string, elapsed time.Duration, err error) {
	if err != nil {
		m.RefreshTasks.WithLabelValues("error").Inc()
		return
	}
	m.RefreshTasks.WithLabelValues("ok").Inc()
	m.RefreshDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RefreshRejected(string) {
	m.RefreshTasks.WithLabelValues("rejected").Inc()
}
