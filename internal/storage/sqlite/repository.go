// Package sqlite stores expenses in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/ports"
	"tally/internal/storage"
)

// timestampLayout is fixed width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

type Repository struct {
	db     *sql.DB
	now    func() time.Time
	logger *log.Logger
}

// NewRepository opens (creating if needed) the database at dbPath and
// applies migrations.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:     db,
		now:    time.Now,
		logger: log.NewDefault().WithComponent(log.ComponentStorage),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) ListExpenses(ctx context.Context, userID string, f ports.Filter, p core.Page, sort []ports.SortKey) ([]core.Expense, int, error) {
	total, err := r.CountExpenses(ctx, userID, f)
	if err != nil {
		return nil, 0, err
	}

	q := storage.NewQuery(storage.SQLite).Scope(userID, f)
	stmt := "SELECT " + storage.Columns + " FROM expenses" + q.WhereClause() +
		storage.OrderBy(sort, "rowid DESC") + q.Paginate(p)

	rows, err := r.db.QueryContext(ctx, stmt, q.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, total, nil
}

func (r *Repository) CountExpenses(ctx context.Context, userID string, f ports.Filter) (int, error) {
	q := storage.NewQuery(storage.SQLite).Scope(userID, f)
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM expenses"+q.WhereClause(), q.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (r *Repository) CreateExpense(ctx context.Context, userID string, f core.ExpenseFields) (core.Expense, error) {
	if err := f.Validate(); err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Description: f.Description,
		Amount:      f.Amount,
		Category:    f.Category,
		IsRecurring: f.IsRecurring,
		ExpenseDate: f.ExpenseDate,
		CreatedAt:   r.now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO expenses ("+storage.Columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.UserID, e.Description, e.Amount.Cents, e.Category.String(), e.IsRecurring,
		e.ExpenseDate.Format(storage.DateLayout), e.CreatedAt.Format(timestampLayout))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	r.logger.DebugContext(ctx, "Expense stored",
		log.FieldExpenseID, e.ID,
		log.FieldUserID, userID,
		log.FieldAmountCents, e.Amount.Cents)
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, id, userID string, f core.ExpenseFields) (core.Expense, error) {
	if err := f.Validate(); err != nil {
		return core.Expense{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET description = ?, amount_cents = ?, category = ?, is_recurring = ?, expense_date = ?
		 WHERE id = ? AND user_id = ?`,
		f.Description, f.Amount.Cents, f.Category.String(), f.IsRecurring,
		f.ExpenseDate.Format(storage.DateLayout), id, userID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if err := requireOne(res); err != nil {
		return core.Expense{}, err
	}

	row := r.db.QueryRowContext(ctx, "SELECT "+storage.Columns+" FROM expenses WHERE id = ? AND user_id = ?", id, userID)
	return scanExpense(row)
}

func (r *Repository) DeleteExpense(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireOne(res)
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                     core.Expense
		cents                 int64
		category, date, stamp string
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.Description, &cents, &category, &e.IsRecurring, &date, &stamp); err != nil {
		if err == sql.ErrNoRows {
			return core.Expense{}, ports.ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	c, ok := core.ParseCategory(category)
	if !ok {
		return core.Expense{}, fmt.Errorf("scan expense %s: unknown category %q", e.ID, category)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense %s: %w", e.ID, err)
	}
	created, err := time.Parse(timestampLayout, stamp)
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense %s: %w", e.ID, err)
	}
	e.Amount = core.Money{Cents: cents}
	e.Category = c
	e.ExpenseDate = d
	e.CreatedAt = created
	return e, nil
}
