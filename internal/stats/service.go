package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/ports"
)

// Source is the read side of the expense store.
type Source interface {
	ports.ExpenseLister
	ports.ExpenseCounter
}

// Config tunes the result caches.
type Config struct {
	CacheSize int
	CacheTTL  time.Duration
	// Location decides which calendar month "now" falls in.
	Location *time.Location
}

// Service loads the slices the aggregator needs and caches the results
// per user. Invalidate must be called after every mutation.
type Service struct {
	source    Source
	loc       *time.Location
	summaries *cache.LRUCache[Summary]
	charts    *cache.LRUCache[Charts]
	logger    *log.Logger

	// gen counts invalidations per user. A result loaded under an older
	// generation is returned but never cached.
	mu  sync.Mutex
	gen map[string]uint64
}

func NewService(source Source, cfg Config, logger *log.Logger) *Service {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 500
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = log.NewDefault()
	}
	return &Service{
		source:    source,
		loc:       cfg.Location,
		summaries: cache.NewLRUCache[Summary](cfg.CacheSize, cfg.CacheTTL),
		charts:    cache.NewLRUCache[Charts](cfg.CacheSize, cfg.CacheTTL),
		logger:    logger.WithComponent(log.ComponentStats),
		gen:       make(map[string]uint64),
	}
}

// Register hands the caches to m for periodic expiry.
func (s *Service) Register(m *cache.Manager) {
	m.Register(s.summaries)
	m.Register(s.charts)
}

// Summary runs the four summary queries concurrently and combines them.
func (s *Service) Summary(ctx context.Context, userID string, now time.Time) (Summary, error) {
	now = now.In(s.loc)
	key := cacheKey(userID, now.Format("2006-01-02"))
	if v, ok := s.summaries.Get(key); ok {
		s.logger.DebugContext(ctx, "Summary cache hit", log.FieldUserID, userID)
		return v, nil
	}
	gen := s.generation(userID)

	thisFrom, thisTo := MonthWindow(now)
	lastFrom, lastTo := PreviousMonthWindow(now)

	var (
		thisMonth, lastMonth, recurring []core.Expense
		count                           int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		thisMonth, err = s.all(gctx, userID, ports.DateRange(thisFrom, thisTo))
		return err
	})
	g.Go(func() (err error) {
		lastMonth, err = s.all(gctx, userID, ports.DateRange(lastFrom, lastTo))
		return err
	})
	g.Go(func() (err error) {
		recurring, err = s.all(gctx, userID, ports.Recurring())
		return err
	})
	g.Go(func() (err error) {
		count, err = s.source.CountExpenses(gctx, userID, ports.Filter{})
		if err != nil {
			err = fmt.Errorf("count expenses: %w", err)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	out := Summarize(thisMonth, lastMonth, recurring, count)
	s.store(userID, gen, func() { s.summaries.Set(key, out) })
	return out, nil
}

// Charts aggregates the last ChartMonths months by category and by month.
func (s *Service) Charts(ctx context.Context, userID string, now time.Time) (Charts, error) {
	now = now.In(s.loc)
	key := cacheKey(userID, now.Format("2006-01-02"))
	if v, ok := s.charts.Get(key); ok {
		s.logger.DebugContext(ctx, "Charts cache hit", log.FieldUserID, userID)
		return v, nil
	}
	gen := s.generation(userID)

	expenses, err := s.all(ctx, userID, ChartFilter(now))
	if err != nil {
		return Charts{}, err
	}
	out := Charts{Categories: ByCategory(expenses), Monthly: ByMonth(expenses)}
	s.store(userID, gen, func() { s.charts.Set(key, out) })
	return out, nil
}

// Invalidate drops every cached result for userID.
func (s *Service) Invalidate(userID string) {
	prefix := cacheKey(userID, "")
	s.mu.Lock()
	s.gen[userID]++
	n := s.summaries.DeletePrefix(prefix) + s.charts.DeletePrefix(prefix)
	s.mu.Unlock()
	if n > 0 {
		s.logger.Debug("Stats cache invalidated", log.FieldUserID, userID, log.FieldCount, n)
	}
}

// CacheStats reports summary and chart cache counters.
func (s *Service) CacheStats() (summary, charts cache.Stats) {
	return s.summaries.Stats(), s.charts.Stats()
}

func (s *Service) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[userID]
}

// store runs set only if userID was not invalidated since gen was read.
func (s *Service) store(userID string, gen uint64, set func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[userID] != gen {
		s.logger.Debug("Stats result stale, not cached", log.FieldUserID, userID)
		return
	}
	set()
}

func (s *Service) all(ctx context.Context, userID string, f ports.Filter) ([]core.Expense, error) {
	list, _, err := s.source.ListExpenses(ctx, userID, f, core.Page{}, nil)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return list, nil
}

func cacheKey(userID, suffix string) string {
	return userID + "\x00" + suffix
}
