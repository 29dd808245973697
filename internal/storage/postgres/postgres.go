// Package postgres stores expenses in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/ports"
	"tally/internal/storage"
)

// Config holds the pool settings.
type Config struct {
	URL         string
	MaxPoolSize int
}

type Store struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// New connects, verifies the connection and applies migrations.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewDefault()
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := RunMigrations(cfg.URL); err != nil {
		pool.Close()
		return nil, err
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("connected to PostgreSQL",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database)

	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) ListExpenses(ctx context.Context, userID string, f ports.Filter, p core.Page, sort []ports.SortKey) ([]core.Expense, int, error) {
	total, err := s.CountExpenses(ctx, userID, f)
	if err != nil {
		return nil, 0, err
	}

	q := storage.NewQuery(storage.Postgres).Scope(userID, f)
	stmt := "SELECT " + storage.Columns + " FROM expenses" + q.WhereClause() +
		storage.OrderBy(sort, "seq DESC") + q.Paginate(p)

	rows, err := s.pool.Query(ctx, stmt, q.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (core.Expense, error) {
		return scanExpense(r)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("collect expenses: %w", err)
	}
	if out == nil {
		out = []core.Expense{}
	}
	return out, total, nil
}

func (s *Store) CountExpenses(ctx context.Context, userID string, f ports.Filter) (int, error) {
	q := storage.NewQuery(storage.Postgres).Scope(userID, f)
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM expenses"+q.WhereClause(), q.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (s *Store) CreateExpense(ctx context.Context, userID string, f core.ExpenseFields) (core.Expense, error) {
	if err := f.Validate(); err != nil {
		return core.Expense{}, err
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO expenses (id, user_id, description, amount_cents, category, is_recurring, expense_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+storage.Columns,
		uuid.NewString(), userID, f.Description, f.Amount.Cents, f.Category.String(), f.IsRecurring,
		f.ExpenseDate.Format(storage.DateLayout))
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	s.logger.DebugContext(ctx, "Expense stored",
		log.FieldExpenseID, e.ID,
		log.FieldUserID, userID,
		log.FieldAmountCents, e.Amount.Cents)
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, id, userID string, f core.ExpenseFields) (core.Expense, error) {
	if err := f.Validate(); err != nil {
		return core.Expense{}, err
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE expenses
		 SET description = $1, amount_cents = $2, category = $3, is_recurring = $4, expense_date = $5
		 WHERE id = $6 AND user_id = $7
		 RETURNING `+storage.Columns,
		f.Description, f.Amount.Cents, f.Category.String(), f.IsRecurring,
		f.ExpenseDate.Format(storage.DateLayout), id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM expenses WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e        core.Expense
		cents    int64
		category string
		date     time.Time
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Description, &cents, &category, &e.IsRecurring, &date, &e.CreatedAt); err != nil {
		return core.Expense{}, err
	}
	c, ok := core.ParseCategory(category)
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: unknown category %q", e.ID, category)
	}
	e.Amount = core.Money{Cents: cents}
	e.Category = c
	e.ExpenseDate = core.DateOf(date)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
