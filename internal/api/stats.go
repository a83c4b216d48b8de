package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"poiatlas/pkg/resolver"
	"poiatlas/pkg/tracker"
)

// StatsHandler reports provider counters, cache occupancy and process memory.
type StatsHandler struct {
	tracker *tracker.Tracker
	ctrl    *resolver.Controller
	started time.Time

	mu     sync.Mutex
	maxMem uint64
}

func NewStatsHandler(t *tracker.Tracker, ctrl *resolver.Controller) *StatsHandler {
	return &StatsHandler{
		tracker: t,
		ctrl:    ctrl,
		started: time.Now(),
	}
}

type ProviderStatsDTO struct {
	CacheHits       int64 `json:"cache_hits"`
	CacheMisses     int64 `json:"cache_misses"`
	APISuccess      int64 `json:"api_success"`
	APIZeroResult   int64 `json:"api_zero"`
	APIFailures     int64 `json:"api_errors"`
	BreakerRejected int64 `json:"breaker_rejected"`
	HitRate         int64 `json:"hit_rate"`
}

type Diagnostics struct {
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
	UptimeSec   int64  `json:"uptime_sec"`
}

type StatsResponse struct {
	Diagnostics Diagnostics                 `json:"diagnostics"`
	Cache       map[string]int              `json:"cache"`
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	Order       []string                    `json:"order"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Diagnostics: h.diagnostics(),
		Providers:   make(map[string]ProviderStatsDTO, len(snapshot)),
	}
	if h.ctrl != nil {
		resp.Cache = h.ctrl.Stats()
	}

	for provider, stats := range snapshot {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:       stats.CacheHits,
			CacheMisses:     stats.CacheMisses,
			APISuccess:      stats.APISuccess,
			APIZeroResult:   stats.APIZeroResult,
			APIFailures:     stats.APIFailures,
			BreakerRejected: stats.BreakerRejects,
			HitRate:         hitRate,
		}
		resp.Order = append(resp.Order, provider)
	}
	sort.Strings(resp.Order)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *StatsHandler) diagnostics() Diagnostics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.mu.Lock()
	if m.Sys > h.maxMem {
		h.maxMem = m.Sys
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	return Diagnostics{
		MemoryMB:    bToMb(m.Sys),
		MemoryMaxMB: bToMb(maxMem),
		Goroutines:  runtime.NumGoroutine(),
		UptimeSec:   int64(time.Since(h.started).Seconds()),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
