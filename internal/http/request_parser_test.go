package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"tally/internal/core"
)

func TestParseExpenseInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want core.ExpenseInput
	}{
		{
			"json",
			`{"description":"Coffee","amount":3.5,"category":"Food","expenseDate":"2024-01-02","isRecurring":true}`,
			core.ExpenseInput{Description: "Coffee", Amount: "3.5", Category: "Food", ExpenseDate: "2024-01-02", IsRecurring: true},
		},
		{
			"form",
			"description=Bus+ticket&amount=2%2C40&category=Transportation&expenseDate=2024-01-03",
			core.ExpenseInput{Description: "Bus ticket", Amount: "2,40", Category: "Transportation", ExpenseDate: "2024-01-03"},
		},
		{
			"control characters stripped, spaces kept",
			`{"description":" a\u0000b ","amount":" 1 "}`,
			core.ExpenseInput{Description: " ab ", Amount: "1"},
		},
		{"empty body", "", core.ExpenseInput{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			got, err := ParseExpenseInput(httptest.NewRecorder(), r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseExpenseInputRejectsOversizedBody(t *testing.T) {
	body := `{"description":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if _, err := ParseExpenseInput(httptest.NewRecorder(), r); err == nil {
		t.Fatalf("expected oversized body to fail")
	}
}

func TestParseListParams(t *testing.T) {
	tests := []struct {
		query    string
		page     int
		category *core.Category
		wantErr  error
	}{
		{"", 1, nil, nil},
		{"page=3", 3, nil, nil},
		{"page=0", 1, nil, nil},
		{"category=all", 1, nil, nil},
		{"page=2&category=Bills", 2, ptr(core.Bills), nil},
		{"category=bills", 0, nil, errInvalidCategory},
		{"page=two", 0, nil, errInvalidPage},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			page, category, err := ParseListParams(q)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if page != tt.page {
				t.Fatalf("page = %d, want %d", page, tt.page)
			}
			if (category == nil) != (tt.category == nil) || (category != nil && *category != *tt.category) {
				t.Fatalf("category = %v, want %v", category, tt.category)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }
