package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// HealthStatus represents the backtester's dependency health.
type HealthStatus struct {
	mu sync.RWMutex

	StoreOK        bool      `json:"store_ok"`
	CacheEnabled   bool      `json:"cache_enabled"`
	CacheConnected bool      `json:"cache_connected"`
	PublisherOK    bool      `json:"publisher_ok"`
	LastRunID      string    `json:"last_run_id"`
	LastRunAt      time.Time `json:"last_run_at"`

	// Liveness probe results
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	StoreLatencyMs float64   `json:"store_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt:   time.Now(),
		PublisherOK: true,
	}
}

func (h *HealthStatus) SetStoreOK(v bool) {
	h.mu.Lock()
	h.StoreOK = v
	h.mu.Unlock()
}

// SetCacheConnected also marks the cache as enabled; a disabled cache does
// not degrade health.
func (h *HealthStatus) SetCacheConnected(v bool) {
	h.mu.Lock()
	h.CacheEnabled = true
	h.CacheConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetPublisherOK(v bool) {
	h.mu.Lock()
	h.PublisherOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastRun(runID string, at time.Time) {
	h.mu.Lock()
	h.LastRunID = runID
	h.LastRunAt = at
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb goredis.UniversalClient) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.CacheEnabled = true
	h.CacheConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckStore pings the quote database and records latency + health.
func (h *HealthStatus) CheckStore(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StoreOK = err == nil
	h.StoreLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either dependency
// may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb goredis.UniversalClient, db *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if db != nil {
					h.CheckStore(probeCtx, db)
				}
				cancel()
			}
		}
	}()
}

// status reports the overall verdict. The store is the only hard
// dependency: a broken cache or publisher degrades but never fails.
func (h *HealthStatus) status() (string, int) {
	if !h.StoreOK {
		return "unhealthy", http.StatusServiceUnavailable
	}
	if (h.CacheEnabled && !h.CacheConnected) || !h.PublisherOK {
		return "degraded", http.StatusOK
	}
	return "healthy", http.StatusOK
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus, httpCode := h.status()

	lastRun := ""
	if !h.LastRunAt.IsZero() {
		lastRun = h.LastRunAt.Format(time.RFC3339)
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		StoreOK        bool    `json:"store_ok"`
		StoreLatencyMs float64 `json:"store_latency_ms"`
		CacheEnabled   bool    `json:"cache_enabled"`
		CacheConnected bool    `json:"cache_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		PublisherOK    bool    `json:"publisher_ok"`
		LastRunID      string  `json:"last_run_id,omitempty"`
		LastRunAt      string  `json:"last_run_at,omitempty"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		StoreOK:        h.StoreOK,
		StoreLatencyMs: h.StoreLatencyMs,
		CacheEnabled:   h.CacheEnabled,
		CacheConnected: h.CacheConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		PublisherOK:    h.PublisherOK,
		LastRunID:      h.LastRunID,
		LastRunAt:      lastRun,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
