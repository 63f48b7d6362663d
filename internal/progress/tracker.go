// Package progress publishes the state of the current backtest or refresh
// job as a single atomically swapped snapshot, and streams it to WebSocket
// clients.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Job kinds.
const (
	KindBacktest = "backtest"
	KindRefresh  = "refresh"
)

// Job states.
const (
	StatusIdle     = "idle"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Snapshot is an immutable view of one job's progress.
type Snapshot struct {
	RunID     string    `json:"run_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Status    string    `json:"status"`
	Percent   float64   `json:"percent"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Failed    int       `json:"failed"`
	Signals   int       `json:"signals,omitempty"`
	Trades    int       `json:"trades,omitempty"`
	Missed    int       `json:"missed,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker holds the latest Snapshot. Readers never block writers.
type Tracker struct {
	snap atomic.Pointer[Snapshot]
	now  func() time.Time

	mu        sync.RWMutex
	listeners []func(Snapshot)
}

func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.snap.Store(&Snapshot{Status: StatusIdle})
	return t
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	return *t.snap.Load()
}

// Subscribe registers fn to receive every new snapshot. fn runs on the
// updating goroutine and must not block.
func (t *Tracker) Subscribe(fn func(Snapshot)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

func (t *Tracker) update(fn func(*Snapshot)) {
	for {
		old := t.snap.Load()
		next := *old
		fn(&next)
		next.UpdatedAt = t.now()
		if t.snap.CompareAndSwap(old, &next) {
			t.notify(next)
			return
		}
	}
}

func (t *Tracker) reset(s Snapshot) {
	now := t.now()
	s.StartedAt, s.UpdatedAt = now, now
	t.snap.Store(&s)
	t.notify(s)
}

func (t *Tracker) notify(s Snapshot) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, fn := range t.listeners {
		fn(s)
	}
}

// ── Engine observer ──

func (t *Tracker) RunStarted(runID, mode string, symbols int) {
	t.reset(Snapshot{RunID: runID, Kind: KindBacktest, Mode: mode, Status: StatusRunning, Total: symbols})
}

func (t *Tracker) RunProgress(runID string, percent float64) {
	t.update(func(s *Snapshot) {
		if s.RunID != runID || percent < s.Percent {
			return
		}
		s.Percent = percent
	})
}

func (t *Tracker) StockFailed(runID, _ string, _ error) {
	t.update(func(s *Snapshot) {
		if s.RunID == runID {
			s.Failed++
		}
	})
}

func (t *Tracker) RunFinished(runID, _ string, signals, trades, missed int, _ time.Duration, err error) {
	t.update(func(s *Snapshot) {
		if s.RunID != runID {
			return
		}
		s.Signals, s.Trades, s.Missed = signals, trades, missed
		if err != nil {
			s.Status = StatusFailed
			s.Error = err.Error()
			return
		}
		s.Status = StatusFinished
		s.Percent = 100
	})
}

// ── Refresh ──

// StartRefresh begins tracking a refresh job of total symbols.
func (t *Tracker) StartRefresh(runID string, total int) {
	t.reset(Snapshot{RunID: runID, Kind: KindRefresh, Status: StatusRunning, Total: total})
}

// RefreshDone counts one processed symbol and finishes the job on the last.
func (t *Tracker) RefreshDone(_ string, _ time.Duration, err error) {
	t.update(func(s *Snapshot) {
		if s.Kind != KindRefresh || s.Status != StatusRunning {
			return
		}
		s.Done++
		if err != nil {
			s.Failed++
		}
		if s.Total > 0 {
			s.Percent = float64(s.Done) / float64(s.Total) * 100
		}
		if s.Done >= s.Total {
			s.Status = StatusFinished
		}
	})
}

// RefreshRejected is a no-op: a rejected symbol may be enqueued again, so
// only completed tasks move the snapshot.
func (t *Tracker) RefreshRejected(string) {}
