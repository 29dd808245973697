package stats

import (
	"testing"

	"tally/internal/core"
)

func exp(c core.Category, cents int64, y, m, d int) core.Expense {
	return core.Expense{Category: c, Amount: core.Money{Cents: cents}, ExpenseDate: core.NewDate(y, m, d)}
}

func TestEndToEndScenario(t *testing.T) {
	in := []core.Expense{
		exp(core.Food, 4000, 2024, 1, 5),
		exp(core.Food, 1000, 2024, 2, 5),
		exp(core.Transportation, 2500, 2024, 1, 20),
	}

	cats := ByCategory(in)
	if len(cats) != 2 || cats[0] != (CategoryTotal{core.Food, core.Money{Cents: 5000}}) ||
		cats[1] != (CategoryTotal{core.Transportation, core.Money{Cents: 2500}}) {
		t.Fatalf("ByCategory = %+v", cats)
	}

	months := ByMonth(in)
	if len(months) != 2 {
		t.Fatalf("ByMonth = %+v", months)
	}
	if months[0].Label != "Jan 24" || months[0].Total.Cents != 6500 || months[1].Label != "Feb 24" || months[1].Total.Cents != 1000 {
		t.Fatalf("ByMonth = %+v", months)
	}
}

func TestByCategoryStableTies(t *testing.T) {
	in := []core.Expense{
		exp(core.Bills, 100, 2024, 1, 1),
		exp(core.Food, 300, 2024, 1, 1),
		exp(core.Other, 100, 2024, 1, 1),
		exp(core.Shopping, 100, 2024, 1, 1),
	}
	got := ByCategory(in)
	want := []core.Category{core.Food, core.Bills, core.Other, core.Shopping}
	for i, c := range want {
		if got[i].Category != c {
			t.Fatalf("position %d: got %v want %v (%+v)", i, got[i].Category, c, got)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Total.Cents > got[i-1].Total.Cents {
			t.Fatalf("not sorted descending: %+v", got)
		}
	}
	if empty := ByCategory(nil); empty == nil || len(empty) != 0 {
		t.Fatalf("empty input should give empty non-nil slice")
	}
}

func TestByMonthCapsAndOrdersAcrossYears(t *testing.T) {
	var in []core.Expense
	// Nine months from Aug 2023 to Apr 2024, shuffled.
	for _, ym := range [][2]int{{2024, 3}, {2023, 8}, {2024, 1}, {2023, 12}, {2023, 9}, {2024, 4}, {2023, 10}, {2024, 2}, {2023, 11}} {
		in = append(in, exp(core.Food, 100, ym[0], ym[1], 15))
	}
	got := ByMonth(in)
	if len(got) != MaxMonths {
		t.Fatalf("expected %d months, got %d", MaxMonths, len(got))
	}
	wantLabels := []string{"Nov 23", "Dec 23", "Jan 24", "Feb 24", "Mar 24", "Apr 24"}
	for i, l := range wantLabels {
		if got[i].Label != l {
			t.Fatalf("position %d: got %s want %s", i, got[i].Label, l)
		}
	}

	// Same month in different years stays separate.
	got = ByMonth([]core.Expense{exp(core.Food, 100, 2023, 1, 1), exp(core.Food, 200, 2024, 1, 1)})
	if len(got) != 2 || got[0].Year != 2023 || got[1].Year != 2024 {
		t.Fatalf("years collapsed: %+v", got)
	}

	got = ByMonth([]core.Expense{exp(core.Food, 100, 2024, 5, 1)})
	if len(got) != 1 || got[0].Month != 5 {
		t.Fatalf("single month: %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	this := []core.Expense{exp(core.Food, 10000, 2024, 3, 1), exp(core.Food, 5000, 2024, 3, 2)}
	last := []core.Expense{exp(core.Food, 10000, 2024, 2, 1)}
	rec := []core.Expense{exp(core.Bills, 700, 2023, 1, 1)}

	s := Summarize(this, last, rec, 42)
	if s.TotalThisMonth.Cents != 15000 || s.TotalLastMonth.Cents != 10000 || s.TotalRecurring.Cents != 700 || s.ExpenseCount != 42 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.PercentChange != 50 {
		t.Fatalf("percent = %v, want 50", s.PercentChange)
	}

	if got := Summarize(this, nil, nil, 0).PercentChange; got != 0 {
		t.Fatalf("no last month must give 0, got %v", got)
	}
	if got := PercentChange(core.Money{Cents: 50}, core.Money{Cents: 100}); got != -50 {
		t.Fatalf("decrease = %v", got)
	}
}
