package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tally/internal/cache"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if s.ready != nil {
		if err := s.ready.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			code = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "not_checked"
	}

	rl := s.rateLimiter.GetMetrics()
	checks["rate_limiter"] = map[string]any{
		"active_clients": rl.ClientCount,
		"status":         "ok",
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.traceMiddleware.GetMetrics()
	rl := s.rateLimiter.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric(w, "http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric(w, "http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric(w, "http_client_errors_total", "counter", "Responses with a 4xx status", tm.ClientErrors)
	metric(w, "http_request_duration_microseconds_total", "counter", "Cumulative request handling time", tm.TotalDurationUS)
	metric(w, "rate_limit_rejections_total", "counter", "Requests rejected by the rate limiter", rl.Rejected)
	metric(w, "rate_limit_active_clients", "gauge", "Clients tracked by the rate limiter", rl.ClientCount)

	if s.stats != nil {
		summary, charts := s.stats.CacheStats()
		for _, c := range []struct {
			name string
			st   cache.Stats
		}{{"summary", summary}, {"charts", charts}} {
			metric(w, "stats_"+c.name+"_cache_hits_total", "counter", "Cache hits", c.st.Hits)
			metric(w, "stats_"+c.name+"_cache_misses_total", "counter", "Cache misses", c.st.Misses)
			metric(w, "stats_"+c.name+"_cache_entries", "gauge", "Cached entries", int64(c.st.Size))
		}
	}

	metric(w, "uptime_seconds", "gauge", "Seconds since the server started", int64(s.now().Sub(s.started).Seconds()))
}

func metric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n\n", name, value)
}
