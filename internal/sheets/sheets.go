// Package sheets defines the spreadsheet mirror of a user's expenses and the
// row layout shared by its implementations.
package sheets

import (
	"context"
	"strconv"
	"time"

	"tally/internal/core"
)

// Mirror keeps one row per expense, keyed by expense ID.
type Mirror interface {
	// UpsertExpense rewrites the row for e.ID, appending one if absent.
	UpsertExpense(ctx context.Context, e core.Expense) error
	// DeleteExpense removes the row for id. A missing row is not an error.
	DeleteExpense(ctx context.Context, id string) error
}

// Header is the first row of the mirror sheet.
var Header = []any{"ID", "User", "Date", "Description", "Amount", "Category", "Recurring", "Created"}

// LastColumn is the column letter of the final Header field.
const LastColumn = "H"

// ToRow renders e in Header order. Every cell is a string so RAW input keeps
// it verbatim, two fractional digits included.
func ToRow(e core.Expense) []any {
	return []any{
		e.ID,
		e.UserID,
		e.ExpenseDate.String(),
		e.Description,
		e.Amount.String(),
		e.Category.String(),
		strconv.FormatBool(e.IsRecurring),
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
