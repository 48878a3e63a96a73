// Package metrics exposes Prometheus metrics and a /healthz endpoint for the
// valuation pipeline and the dashboard gateway.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard.
type Metrics struct {
	BuildsTotal      prometheus.Counter
	BuildErrorsTotal prometheus.Counter
	BuildDuration    prometheus.Histogram
	RowsTotal        prometheus.Counter

	// Per-row market-data resolution misses (degraded-to-nil fields)
	QuoteMisses     prometheus.Counter
	PrevCloseMisses prometheus.Counter

	SnapshotPublishes prometheus.Counter
	PublishErrors     prometheus.Counter

	WSClients   prometheus.Gauge
	MarketState prometheus.Gauge // 0=closed, 1=open
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashd_builds_total",
			Help: "Total portfolio valuation builds",
		}),
		BuildErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashd_build_errors_total",
			Help: "Valuation builds aborted by a holdings fetch failure",
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dashd_build_duration_seconds",
			Help:    "Full valuation build latency (2N market-data calls)",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashd_rows_total",
			Help: "Total valuation rows produced",
		}),
		QuoteMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashd_quote_misses_total",
			Help: "Rows whose last traded price degraded to null",
		}),
		PrevCloseMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashd_prev_close_misses_total",
			Help: "Rows whose previous close degraded to null",
		}),
		SnapshotPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashd_snapshot_publishes_total",
			Help: "Portfolio snapshots published to Redis PubSub",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dashd_publish_errors_total",
			Help: "Failed Redis snapshot publishes",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashd_ws_clients",
			Help: "Connected dashboard WebSocket clients",
		}),
		MarketState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dashd_market_state",
			Help: "Market session state (0=closed, 1=open)",
		}),
	}

	prometheus.MustRegister(
		m.BuildsTotal,
		m.BuildErrorsTotal,
		m.BuildDuration,
		m.RowsTotal,
		m.QuoteMisses,
		m.PrevCloseMisses,
		m.SnapshotPublishes,
		m.PublishErrors,
		m.WSClients,
		m.MarketState,
	)
	return m
}

// HealthStatus tracks dependency liveness for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	StartedAt       time.Time
	SessionOK       bool
	RedisConnected  bool
	RedisLatencyMs  float64
	MasterOK        bool
	MasterLatencyMs float64
	LastBuildAt     time.Time
	LastBuildRows   int
	LastCheckAt     time.Time
}

// NewHealthStatus creates a HealthStatus anchored at now.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetSessionOK(v bool) {
	h.mu.Lock()
	h.SessionOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetMasterOK(v bool) {
	h.mu.Lock()
	h.MasterOK = v
	h.mu.Unlock()
}

// SetLastBuild records the completion of one valuation build.
func (h *HealthStatus) SetLastBuild(at time.Time, rows int) {
	h.mu.Lock()
	h.LastBuildAt = at
	h.LastBuildRows = rows
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckMaster pings the instrument-master database and records latency.
func (h *HealthStatus) CheckMaster(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.MasterOK = err == nil
	h.MasterLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil dependencies are
// skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, masterDB *sql.DB, interval time.Duration) {
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
				if masterDB != nil {
					h.CheckMaster(probeCtx, masterDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SessionOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	buildAge := ""
	if !h.LastBuildAt.IsZero() {
		buildAge = time.Since(h.LastBuildAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		SessionOK       bool    `json:"session_ok"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		MasterOK        bool    `json:"master_ok"`
		MasterLatencyMs float64 `json:"master_latency_ms"`
		LastBuildAt     string  `json:"last_build_at"`
		BuildAge        string  `json:"build_age"`
		LastBuildRows   int     `json:"last_build_rows"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		SessionOK:       h.SessionOK,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		MasterOK:        h.MasterOK,
		MasterLatencyMs: h.MasterLatencyMs,
		LastBuildAt:     h.LastBuildAt.Format(time.RFC3339),
		BuildAge:        buildAge,
		LastBuildRows:   h.LastBuildRows,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	srv *http.Server
}

// NewServer creates the metrics server on addr.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", health)
	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) {
	_ = s.srv.Shutdown(ctx)
}
