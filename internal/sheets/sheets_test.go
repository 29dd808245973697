package sheets

import (
	"testing"
	"time"

	"tally/internal/core"
)

func TestToRow(t *testing.T) {
	e := core.Expense{
		ID:          "a1",
		UserID:      "u1",
		Description: "+39 train ticket",
		Amount:      core.Money{Cents: 1290},
		Category:    core.Transportation,
		IsRecurring: true,
		ExpenseDate: core.NewDate(2024, 3, 9),
		CreatedAt:   time.Date(2024, 3, 9, 9, 15, 0, 0, time.FixedZone("CET", 3600)),
	}

	row := ToRow(e)
	if len(row) != len(Header) {
		t.Fatalf("row has %d cells, header %d", len(row), len(Header))
	}

	want := []string{"a1", "u1", "2024-03-09", "+39 train ticket", "12.90", core.Transportation.String(), "true", "2024-03-09T08:15:00Z"}
	for i, w := range want {
		if row[i] != w {
			t.Errorf("cell %d (%v) = %v, want %q", i, Header[i], row[i], w)
		}
	}
}
