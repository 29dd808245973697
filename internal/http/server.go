package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tally/internal/auth"
	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/ports"
	"tally/internal/services"
	"tally/internal/stats"
)

// ExpenseAPI is the expense use case surface the handlers call.
type ExpenseAPI interface {
	List(ctx context.Context, userID string, page int, category *core.Category) (services.ListResult, error)
	Create(ctx context.Context, userID string, in core.ExpenseInput) (core.Expense, error)
	Update(ctx context.Context, id, userID string, in core.ExpenseInput) (core.Expense, error)
	Delete(ctx context.Context, id, userID string) error
}

// StatsAPI serves the dashboard figures.
type StatsAPI interface {
	Summary(ctx context.Context, userID string, now time.Time) (stats.Summary, error)
	Charts(ctx context.Context, userID string, now time.Time) (stats.Charts, error)
	CacheStats() (summary, charts cache.Stats)
}

// Options wires a Server. Ready is optional; without it /readyz only
// reports that the process is up.
type Options struct {
	Addr               string
	Expenses           ExpenseAPI
	Stats              StatsAPI
	Verifier           *auth.Verifier
	Ready              ports.Pinger
	RateLimitPerMinute int
	Logger             *log.Logger
	Now                func() time.Time
}

type Server struct {
	http.Server
	expenses ExpenseAPI
	stats    StatsAPI
	ready    ports.Pinger
	logger   *log.Logger
	access   *log.StructuredLogger
	now      func() time.Time
	started  time.Time

	ipResolver      *security.IPResolver
	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer builds the API server. Every /api/ route requires a bearer
// token; health and metrics endpoints do not.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDefault()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rlCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		expenses:    opts.Expenses,
		stats:       opts.Stats,
		ready:       opts.Ready,
		logger:      logger.WithComponent(log.ComponentHTTP),
		now:         now,
		started:     now(),
		ipResolver:  security.NewIPResolver(),
		rateLimiter: ratelimit.NewLimiter(rlCfg),
	}
	s.access = log.NewStructuredLogger(s.logger)
	s.traceMiddleware = trace.NewMiddleware(s.logger, s.ipResolver.ClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/expenses", s.handleListExpenses)
	api.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	api.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	api.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	api.HandleFunc("GET /api/stats/summary", s.handleSummary)
	api.HandleFunc("GET /api/stats/charts", s.handleCharts)

	protected := auth.Middleware(opts.Verifier, func(w http.ResponseWriter, r *http.Request, err error) {
		UnauthorizedError("Unauthorized").Write(w)
	})(s.rateLimiter.Middleware(s.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError("Rate limit exceeded").Write(w)
	})(api))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", protected)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.traceMiddleware.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// rateLimitKey buckets authenticated callers by user and falls back to
// the client address.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	return "ip:" + s.ipResolver.ClientIP(r)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// identity returns the caller set by the auth middleware. Handlers are
// only mounted behind it, so a missing identity is a wiring fault.
func identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		UnauthorizedError("Unauthorized").Write(w)
		return "", false
	}
	return id.UserID, true
}
