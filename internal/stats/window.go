package stats

import (
	"time"

	"tally/internal/core"
	"tally/internal/ports"
)

// ChartMonths is how far back the chart loader looks.
const ChartMonths = 6

// MonthWindow returns the first and last day of now's calendar month,
// evaluated in now's location.
func MonthWindow(now time.Time) (from, to core.Date) {
	y, m, _ := now.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return core.DateOf(first), core.DateOf(first.AddDate(0, 1, -1))
}

// PreviousMonthWindow is MonthWindow for the month before now's.
func PreviousMonthWindow(now time.Time) (from, to core.Date) {
	y, m, _ := now.Date()
	return MonthWindow(time.Date(y, m-1, 1, 0, 0, 0, 0, time.UTC))
}

// ChartFilter selects records dated on or after now minus ChartMonths
// months, with no upper bound.
func ChartFilter(now time.Time) ports.Filter {
	return ports.Since(core.DateOf(now.AddDate(0, -ChartMonths, 0)))
}
