package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/ports"
	"tally/internal/storage/storagetest"
)

func fields(desc string, cents int64, c core.Category, d core.Date) core.ExpenseFields {
	return core.ExpenseFields{Description: desc, Amount: core.Money{Cents: cents}, Category: c, ExpenseDate: d}
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestCreateAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(fixedClock()))

	a, _ := s.CreateExpense(ctx, "u1", fields("a", 100, core.Food, core.NewDate(2024, 1, 10)))
	b, _ := s.CreateExpense(ctx, "u1", fields("b", 200, core.Food, core.NewDate(2024, 1, 12)))
	c, _ := s.CreateExpense(ctx, "u1", fields("c", 300, core.Food, core.NewDate(2024, 1, 12)))
	if _, err := s.CreateExpense(ctx, "u2", fields("other", 1, core.Food, core.NewDate(2024, 1, 12))); err != nil {
		t.Fatalf("create: %v", err)
	}

	if !c.CreatedAt.After(b.CreatedAt) {
		t.Fatalf("created_at must increase under a frozen clock")
	}

	list, total, err := s.ListExpenses(ctx, "u1", ports.Filter{}, core.Page{}, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(list) != 3 {
		t.Fatalf("expected 3 records, got %d (total %d)", len(list), total)
	}
	want := []string{c.ID, b.ID, a.ID}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: got %s want %s", i, list[i].Description, id)
		}
	}
}

func TestStoreBehaviour(t *testing.T) {
	storagetest.Run(t, func(*testing.T) ports.ExpenseSource { return New() })
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFromFile(filepath.Join(dir, "missing.txt"))
	if err != nil {
		t.Fatalf("missing file should be empty store: %v", err)
	}
	if n, _ := s.CountExpenses(context.Background(), "u", ports.Filter{}); n != 0 {
		t.Fatalf("expected empty store")
	}

	path := filepath.Join(dir, "seed.txt")
	content := "# user|date|description|amount|category|recurring\n" +
		"u|2024-01-15|Groceries|42,50|Food|false\n\n" +
		"u|2024-01-01|Rent|900|Bills|true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err = NewFromFile(path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	list, total, _ := s.ListExpenses(context.Background(), "u", ports.Filter{}, core.Page{}, nil)
	if total != 2 || list[0].Amount.Cents != 4250 || !list[1].IsRecurring {
		t.Fatalf("unexpected seed result: %+v", list)
	}

	if err := os.WriteFile(path, []byte("u|2024-01-15|x|abc|Food|false\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Fatalf("expected error for bad amount")
	}
}
