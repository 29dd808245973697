// Package stats derives chart and summary figures from expense records.
package stats

import (
	"cmp"
	"slices"

	"tally/internal/core"
)

// MaxMonths caps the monthly series to the most recent months present.
const MaxMonths = 6

// monthLabelLayout renders "Jan 24".
const monthLabelLayout = "Jan 06"

type (
	CategoryTotal struct {
		Category core.Category `json:"category"`
		Total    core.Money    `json:"totalAmount"`
	}

	// MonthlyTotal carries the real year and month next to the display
	// label so ordering never depends on parsing the label back.
	MonthlyTotal struct {
		Label string     `json:"monthLabel"`
		Year  int        `json:"year"`
		Month int        `json:"month"`
		Total core.Money `json:"totalAmount"`
	}

	Summary struct {
		TotalThisMonth core.Money `json:"totalThisMonth"`
		TotalLastMonth core.Money `json:"totalLastMonth"`
		TotalRecurring core.Money `json:"totalRecurring"`
		ExpenseCount   int        `json:"expenseCount"`
		PercentChange  float64    `json:"percentChange"`
	}

	Charts struct {
		Categories []CategoryTotal `json:"categories"`
		Monthly    []MonthlyTotal  `json:"monthly"`
	}
)

// ByCategory sums amounts per category, largest first. Equal totals keep
// the order in which their category was first seen.
func ByCategory(expenses []core.Expense) []CategoryTotal {
	out := []CategoryTotal{}
	index := map[core.Category]int{}
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryTotal{Category: e.Category})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
	}
	slices.SortStableFunc(out, func(a, b CategoryTotal) int {
		return cmp.Compare(b.Total.Cents, a.Total.Cents)
	})
	return out
}

// ByMonth sums amounts per calendar month in ascending order and keeps
// only the last MaxMonths months present in the data.
func ByMonth(expenses []core.Expense) []MonthlyTotal {
	type key struct{ year, month int }
	sums := map[key]core.Money{}
	for _, e := range expenses {
		k := key{e.ExpenseDate.Year(), int(e.ExpenseDate.Month())}
		sums[k] = sums[k].Add(e.Amount)
	}

	out := make([]MonthlyTotal, 0, len(sums))
	for k, total := range sums {
		out = append(out, MonthlyTotal{
			Label: core.NewDate(k.year, k.month, 1).Format(monthLabelLayout),
			Year:  k.year,
			Month: k.month,
			Total: total,
		})
	}
	slices.SortFunc(out, func(a, b MonthlyTotal) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		return cmp.Compare(a.Month, b.Month)
	})
	if len(out) > MaxMonths {
		out = out[len(out)-MaxMonths:]
	}
	return out
}

// Summarize totals the three slices. PercentChange is zero whenever last
// month's total is zero.
func Summarize(thisMonth, lastMonth, recurring []core.Expense, totalCount int) Summary {
	s := Summary{
		TotalThisMonth: sum(thisMonth),
		TotalLastMonth: sum(lastMonth),
		TotalRecurring: sum(recurring),
		ExpenseCount:   totalCount,
	}
	s.PercentChange = PercentChange(s.TotalThisMonth, s.TotalLastMonth)
	return s
}

// PercentChange is (current - previous) / previous * 100, or 0 when
// previous is not positive.
func PercentChange(current, previous core.Money) float64 {
	if previous.Cents <= 0 {
		return 0
	}
	return float64(current.Cents-previous.Cents) / float64(previous.Cents) * 100
}

func sum(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
