// Package storagetest holds behaviour checks every ports.ExpenseSource
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"tally/internal/core"
	"tally/internal/ports"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) ports.ExpenseSource

func fields(desc string, cents int64, c core.Category, d core.Date, recurring bool) core.ExpenseFields {
	return core.ExpenseFields{Description: desc, Amount: core.Money{Cents: cents}, Category: c, ExpenseDate: d, IsRecurring: recurring}
}

// Run exercises ordering, filtering, pagination, counting and ownership.
func Run(t *testing.T, newStore Factory) {
	t.Run("OrderingAndRoundTrip", func(t *testing.T) { testOrdering(t, newStore(t)) })
	t.Run("FilterAndCount", func(t *testing.T) { testFilter(t, newStore(t)) })
	t.Run("Pagination", func(t *testing.T) { testPagination(t, newStore(t)) })
	t.Run("Ownership", func(t *testing.T) { testOwnership(t, newStore(t)) })
}

func mustCreate(t *testing.T, s ports.ExpenseSource, userID string, f core.ExpenseFields) core.Expense {
	t.Helper()
	e, err := s.CreateExpense(context.Background(), userID, f)
	if err != nil {
		t.Fatalf("create %q: %v", f.Description, err)
	}
	return e
}

func testOrdering(t *testing.T, s ports.ExpenseSource) {
	ctx := context.Background()
	older := mustCreate(t, s, "u", fields("older", 1050, core.Food, core.NewDate(2024, 1, 10), false))
	first := mustCreate(t, s, "u", fields("same day first", 200, core.Bills, core.NewDate(2024, 1, 12), true))
	second := mustCreate(t, s, "u", fields("same day second", 300, core.Other, core.NewDate(2024, 1, 12), false))

	list, total, err := s.ListExpenses(ctx, "u", ports.Filter{}, core.Page{}, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(list) != 3 {
		t.Fatalf("expected 3 records, got %d (total %d)", len(list), total)
	}
	for i, want := range []core.Expense{second, first, older} {
		if list[i].ID != want.ID {
			t.Fatalf("position %d: got %q want %q", i, list[i].Description, want.Description)
		}
	}

	got := list[1]
	if got.UserID != "u" || got.Amount.Cents != 200 || got.Category != core.Bills || !got.IsRecurring ||
		got.ExpenseDate.String() != "2024-01-12" || got.CreatedAt.IsZero() {
		t.Fatalf("fields did not round trip: %+v", got)
	}

	byAmount, _, err := s.ListExpenses(ctx, "u", ports.Filter{}, core.Page{}, []ports.SortKey{{Field: ports.SortAmount}})
	if err != nil {
		t.Fatalf("list by amount: %v", err)
	}
	if byAmount[0].ID != first.ID || byAmount[2].ID != older.ID {
		t.Fatalf("ascending amount order wrong: %v, %v, %v", byAmount[0].Description, byAmount[1].Description, byAmount[2].Description)
	}
}

func testFilter(t *testing.T, s ports.ExpenseSource) {
	ctx := context.Background()
	mustCreate(t, s, "u", fields("jan", 100, core.Food, core.NewDate(2024, 1, 31), false))
	mustCreate(t, s, "u", fields("feb first", 200, core.Bills, core.NewDate(2024, 2, 1), false))
	mustCreate(t, s, "u", fields("feb last", 300, core.Bills, core.NewDate(2024, 2, 29), true))
	mustCreate(t, s, "other", fields("foreign", 400, core.Bills, core.NewDate(2024, 2, 10), true))

	feb := ports.DateRange(core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 29))
	if n, err := s.CountExpenses(ctx, "u", feb); err != nil || n != 2 {
		t.Fatalf("february count = %d, %v", n, err)
	}
	if n, _ := s.CountExpenses(ctx, "u", ports.Recurring()); n != 1 {
		t.Fatalf("recurring count = %d", n)
	}
	if n, _ := s.CountExpenses(ctx, "u", ports.Since(core.NewDate(2024, 2, 29))); n != 1 {
		t.Fatalf("since count = %d", n)
	}

	list, total, err := s.ListExpenses(ctx, "u", ports.InCategory(core.Bills), core.Page{}, nil)
	if err != nil || total != 2 || len(list) != 2 || list[0].Description != "feb last" {
		t.Fatalf("category filter: %+v total=%d err=%v", list, total, err)
	}

	list, total, err = s.ListExpenses(ctx, "nobody", ports.Filter{}, core.Page{}, nil)
	if err != nil || total != 0 || list == nil || len(list) != 0 {
		t.Fatalf("empty user should get an empty non-nil list: %v %d %v", list, total, err)
	}
}

func testPagination(t *testing.T, s ports.ExpenseSource) {
	ctx := context.Background()
	for day := 1; day <= 25; day++ {
		mustCreate(t, s, "u", fields("x", int64(day), core.Food, core.NewDate(2024, 3, day), false))
	}

	page, total, err := s.ListExpenses(ctx, "u", ports.Filter{}, core.PageNumber(1), nil)
	if err != nil || total != 25 || len(page) != core.PageSize || page[0].ExpenseDate.Day() != 25 {
		t.Fatalf("page 1: len=%d total=%d err=%v", len(page), total, err)
	}
	page, total, _ = s.ListExpenses(ctx, "u", ports.Filter{}, core.PageNumber(3), nil)
	if total != 25 || len(page) != 5 || page[0].ExpenseDate.Day() != 5 {
		t.Fatalf("page 3: len=%d total=%d", len(page), total)
	}
	page, total, _ = s.ListExpenses(ctx, "u", ports.Filter{}, core.PageNumber(9), nil)
	if total != 25 || len(page) != 0 {
		t.Fatalf("past the end: len=%d total=%d", len(page), total)
	}
	page, _, _ = s.ListExpenses(ctx, "u", ports.Filter{}, core.Page{Offset: 20}, nil)
	if len(page) != 5 {
		t.Fatalf("offset without limit: len=%d", len(page))
	}
}

func testOwnership(t *testing.T, s ports.ExpenseSource) {
	ctx := context.Background()
	e := mustCreate(t, s, "owner", fields("mine", 100, core.Food, core.NewDate(2024, 1, 1), false))
	edit := fields("edited", 999, core.Healthcare, core.NewDate(2024, 1, 5), true)

	if _, err := s.UpdateExpense(ctx, e.ID, "intruder", edit); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("foreign update: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteExpense(ctx, e.ID, "intruder"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateExpense(ctx, "missing", "owner", edit); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("missing update: expected ErrNotFound, got %v", err)
	}

	up, err := s.UpdateExpense(ctx, e.ID, "owner", edit)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.ID != e.ID || up.Description != "edited" || up.Amount.Cents != 999 || up.Category != core.Healthcare || !up.IsRecurring {
		t.Fatalf("update result: %+v", up)
	}

	before, _ := s.CountExpenses(ctx, "owner", ports.Filter{})
	if err := s.DeleteExpense(ctx, e.ID, "owner"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after, _ := s.CountExpenses(ctx, "owner", ports.Filter{})
	if after != before-1 {
		t.Fatalf("count after delete = %d, want %d", after, before-1)
	}
	if err := s.DeleteExpense(ctx, e.ID, "owner"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}

	if _, err := s.CreateExpense(ctx, "owner", fields("", 100, core.Food, core.NewDate(2024, 1, 1), false)); !errors.Is(err, core.ErrDescriptionRequired) {
		t.Fatalf("invalid create: expected description error, got %v", err)
	}
}
