package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

type appMetrics struct {
	started time.Time

	requests      atomic.Int64
	created       atomic.Int64
	updated       atomic.Int64
	deleted       atomic.Int64
	invalidAmount atomic.Int64
	notFound      atomic.Int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{started: time.Now()}
}

func (m *appMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	rl := s.limiter.GetMetrics()
	views := s.views.Stats()

	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n\n", name, help, name, name, v)
	}

	counter("http_requests_total", "Total number of HTTP requests", s.metrics.requests.Load())
	counter("ledger_transactions_created_total", "Transactions added", s.metrics.created.Load())
	counter("ledger_transactions_updated_total", "Transactions updated in place", s.metrics.updated.Load())
	counter("ledger_transactions_deleted_total", "Transactions deleted", s.metrics.deleted.Load())
	counter("ledger_invalid_amount_total", "Submissions rejected for an invalid amount", s.metrics.invalidAmount.Load())
	counter("ledger_not_found_total", "Operations on a transaction id that no longer exists", s.metrics.notFound.Load())
	counter("view_cache_hits_total", "Rendered view cache hits", int64(views.Hits))
	counter("view_cache_misses_total", "Rendered view cache misses", int64(views.Misses))
	gauge("view_cache_entries", "Current rendered view cache entries", views.Size)
	counter("rate_limit_rejections_total", "Requests rejected by the rate limiter", rl.Rejected)
	gauge("active_rate_limit_clients", "Currently tracked rate limit clients", rl.ClientCount)
	gauge("ledger_version", "Current ledger version", s.ledger.Version())
	gauge("uptime_seconds", "Application uptime in seconds", int64(time.Since(s.metrics.started).Seconds()))
}
