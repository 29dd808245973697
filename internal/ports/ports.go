package ports

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"tally/internal/core"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the requesting user. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("expense not found")

// Filter narrows a query. Nil fields are not applied. Date bounds are
// inclusive.
type Filter struct {
	DateFrom    *core.Date
	DateTo      *core.Date
	Category    *core.Category
	IsRecurring *bool
}

// SortField names a sortable column.
type SortField string

const (
	SortExpenseDate SortField = "expense_date"
	SortCreatedAt   SortField = "created_at"
	SortAmount      SortField = "amount"
)

// SortKey is one ordering clause.
type SortKey struct {
	Field SortField
	Desc  bool
}

// DefaultSort is most recent activity first.
var DefaultSort = []SortKey{
	{Field: SortExpenseDate, Desc: true},
	{Field: SortCreatedAt, Desc: true},
}

// Ports for outbound adapters. Every call is scoped by userID.
type (
	ExpenseLister interface {
		// ListExpenses returns the matching page and the total number of
		// matching records ignoring pagination. An empty sort uses DefaultSort.
		ListExpenses(ctx context.Context, userID string, f Filter, p core.Page, sort []SortKey) ([]core.Expense, int, error)
	}

	ExpenseCounter interface {
		CountExpenses(ctx context.Context, userID string, f Filter) (int, error)
	}

	ExpenseWriter interface {
		CreateExpense(ctx context.Context, userID string, f core.ExpenseFields) (core.Expense, error)
		UpdateExpense(ctx context.Context, id, userID string, f core.ExpenseFields) (core.Expense, error)
	}

	ExpenseDeleter interface {
		DeleteExpense(ctx context.Context, id, userID string) error
	}

	// ExpenseSource is the full persistence contract.
	ExpenseSource interface {
		ExpenseLister
		ExpenseCounter
		ExpenseWriter
		ExpenseDeleter
	}

	// Pinger is implemented by sources that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)

// DateRange builds a filter over [from, to], both inclusive.
func DateRange(from, to core.Date) Filter {
	return Filter{DateFrom: &from, DateTo: &to}
}

// Since builds a filter with only a lower date bound.
func Since(from core.Date) Filter {
	return Filter{DateFrom: &from}
}

// Recurring selects records with the recurrence flag set.
func Recurring() Filter {
	t := true
	return Filter{IsRecurring: &t}
}

// InCategory selects a single category.
func InCategory(c core.Category) Filter {
	return Filter{Category: &c}
}

// Match reports whether e passes the filter. Stores that filter in memory
// use it; SQL stores translate the same rules into WHERE clauses.
func (f Filter) Match(e core.Expense) bool {
	if f.DateFrom != nil && e.ExpenseDate.Before(f.DateFrom.Time) {
		return false
	}
	if f.DateTo != nil && e.ExpenseDate.After(f.DateTo.Time) {
		return false
	}
	if f.Category != nil && e.Category != *f.Category {
		return false
	}
	if f.IsRecurring != nil && e.IsRecurring != *f.IsRecurring {
		return false
	}
	return true
}

// SortExpenses orders list in place by keys, falling back to DefaultSort
// when keys is empty. The sort is stable.
func SortExpenses(list []core.Expense, keys []SortKey) {
	if len(keys) == 0 {
		keys = DefaultSort
	}
	slices.SortStableFunc(list, func(a, b core.Expense) int {
		for _, k := range keys {
			var c int
			switch k.Field {
			case SortExpenseDate:
				c = a.ExpenseDate.Compare(b.ExpenseDate.Time)
			case SortCreatedAt:
				c = a.CreatedAt.Compare(b.CreatedAt)
			case SortAmount:
				c = cmp.Compare(a.Amount.Cents, b.Amount.Cents)
			}
			if k.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
