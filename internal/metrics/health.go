package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// HealthStatus tracks dependency liveness and the last refresh outcome.
type HealthStatus struct {
	mu sync.RWMutex

	redisChecked   bool
	sqliteChecked  bool
	redisConnected bool
	sqliteOK       bool

	redisLatencyMs  float64
	sqliteLatencyMs float64
	lastCheckAt     time.Time

	lastRefresh    time.Time
	lastRefreshErr string
	startedAt      time.Time
}

// Health is a point-in-time copy of HealthStatus, as served on /healthz.
type Health struct {
	Status          string   `json:"status"`
	Uptime          string   `json:"uptime"`
	RedisConnected  *bool    `json:"redis_connected,omitempty"`
	RedisLatencyMs  float64  `json:"redis_latency_ms,omitempty"`
	SQLiteOK        *bool    `json:"sqlite_ok,omitempty"`
	SQLiteLatencyMs float64  `json:"sqlite_latency_ms,omitempty"`
	LastRefresh     string   `json:"last_refresh,omitempty"`
	LastError       string   `json:"last_error,omitempty"`
	LastCheckAt     string   `json:"last_check_at,omitempty"`
	Details         []string `json:"details,omitempty"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		startedAt: time.Now(),
	}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.redisChecked = true
	h.redisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.sqliteChecked = true
	h.sqliteOK = v
	h.mu.Unlock()
}

// RecordRefresh stores the outcome of a refresh cycle.
func (h *HealthStatus) RecordRefresh(at time.Time, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.lastRefreshErr = err.Error()
		return
	}
	h.lastRefresh = at
	h.lastRefreshErr = ""
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.redisChecked = true
	h.redisConnected = err == nil
	h.redisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.lastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.sqliteChecked = true
	h.sqliteOK = err == nil
	h.sqliteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.lastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil dependencies are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	check := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		check()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

// Report returns the current health and the HTTP status code to serve it with.
func (h *HealthStatus) Report() (Health, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := Health{
		Status:    "healthy",
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		LastError: h.lastRefreshErr,
	}
	code := http.StatusOK

	if h.redisChecked {
		ok := h.redisConnected
		out.RedisConnected = &ok
		out.RedisLatencyMs = h.redisLatencyMs
		if !ok {
			out.Details = append(out.Details, "redis unreachable")
		}
	}
	if h.sqliteChecked {
		ok := h.sqliteOK
		out.SQLiteOK = &ok
		out.SQLiteLatencyMs = h.sqliteLatencyMs
		if !ok {
			out.Details = append(out.Details, "sqlite unavailable")
		}
	}
	if h.lastRefreshErr != "" {
		out.Details = append(out.Details, "last refresh failed")
	}
	if !h.lastRefresh.IsZero() {
		out.LastRefresh = h.lastRefresh.Format(time.RFC3339)
	}
	if !h.lastCheckAt.IsZero() {
		out.LastCheckAt = h.lastCheckAt.Format(time.RFC3339)
	}

	if len(out.Details) > 0 {
		out.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return out, code
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, code := h.Report()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("component", "metrics").Str("addr", s.addr).Msg("server listening")
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Str("component", "metrics").Err(err).Msg("server error")
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
