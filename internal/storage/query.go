// Package storage holds the pieces shared by the SQL expense stores.
package storage

import (
	"strconv"
	"strings"

	"tally/internal/core"
	"tally/internal/ports"
)

// DateLayout is how expense dates are stored in text columns.
const DateLayout = "2006-01-02"

// Columns is the select list shared by every read.
const Columns = "id, user_id, description, amount_cents, category, is_recurring, expense_date, created_at"

var orderColumns = map[ports.SortField]string{
	ports.SortExpenseDate: "expense_date",
	ports.SortCreatedAt:   "created_at",
	ports.SortAmount:      "amount_cents",
}

// Dialect captures the syntax differences between the SQL backends.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// NoLimit is the LIMIT value meaning "all rows".
	NoLimit string
}

var (
	SQLite   = Dialect{Placeholder: func(int) string { return "?" }, NoLimit: "-1"}
	Postgres = Dialect{Placeholder: func(n int) string { return "$" + strconv.Itoa(n) }, NoLimit: "ALL"}
)

// Query accumulates a WHERE clause and its arguments.
type Query struct {
	d     Dialect
	where []string
	Args  []any
}

func NewQuery(d Dialect) *Query {
	return &Query{d: d}
}

// Bind adds an argument and returns its placeholder.
func (q *Query) Bind(v any) string {
	q.Args = append(q.Args, v)
	return q.d.Placeholder(len(q.Args))
}

// Where adds a condition. Conditions are joined with AND.
func (q *Query) Where(cond string) {
	q.where = append(q.where, cond)
}

// Scope restricts the query to userID and applies f.
func (q *Query) Scope(userID string, f ports.Filter) *Query {
	q.Where("user_id = " + q.Bind(userID))
	if f.DateFrom != nil {
		q.Where("expense_date >= " + q.Bind(f.DateFrom.Format(DateLayout)))
	}
	if f.DateTo != nil {
		q.Where("expense_date <= " + q.Bind(f.DateTo.Format(DateLayout)))
	}
	if f.Category != nil {
		q.Where("category = " + q.Bind(f.Category.String()))
	}
	if f.IsRecurring != nil {
		q.Where("is_recurring = " + q.Bind(*f.IsRecurring))
	}
	return q
}

// WhereClause renders " WHERE ..." or an empty string.
func (q *Query) WhereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

// Paginate renders LIMIT/OFFSET for p. A zero limit renders nothing.
func (q *Query) Paginate(p core.Page) string {
	if p.Limit <= 0 {
		if p.Offset > 0 {
			return " LIMIT " + q.d.NoLimit + " OFFSET " + q.Bind(p.Offset)
		}
		return ""
	}
	return " LIMIT " + q.Bind(p.Limit) + " OFFSET " + q.Bind(p.Offset)
}

// OrderBy renders an ORDER BY clause from whitelisted sort keys. Unknown
// fields are skipped. tiebreak is appended verbatim when non-empty.
func OrderBy(keys []ports.SortKey, tiebreak string) string {
	if len(keys) == 0 {
		keys = ports.DefaultSort
	}
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		col, ok := orderColumns[k.Field]
		if !ok {
			continue
		}
		if k.Desc {
			col += " DESC"
		} else {
			col += " ASC"
		}
		parts = append(parts, col)
	}
	if tiebreak != "" {
		parts = append(parts, tiebreak)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
