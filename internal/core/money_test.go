package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"-5", 0, false},
		{"-0.01", 0, false},
		{"0", 0, false},
		{"0.004", 0, false}, // rounds to zero
		{"abc", 0, false},
		{"NaN", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"1e300", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err != ErrAmountNotPositive {
			t.Fatalf("%q expected ErrAmountNotPositive, got %v", tc.in, err)
		}
	}
}

func TestMoneyFormatting(t *testing.T) {
	m := Money{Cents: 1230}
	if m.String() != "12.30" {
		t.Fatalf("String() = %s", m.String())
	}
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{m})
	if err != nil || string(b) != `{"amount":12.30}` {
		t.Fatalf("json = %s, err = %v", b, err)
	}
	if got := (Money{Cents: 5}).Add(Money{Cents: 7}); got.Cents != 12 {
		t.Fatalf("Add = %d", got.Cents)
	}
}

func TestParseAmountRejectsHugeExponentsQuickly(t *testing.T) {
	inputs := []string{
		"1e10000000",
		"1e2147483647",
		"1e-2147483647",
		"0." + strings.Repeat("0", 5000) + "1",
		strings.Repeat("9", 5000),
		"1e17",
	}
	for _, in := range inputs {
		start := time.Now()
		if _, err := ParseAmount(in); err != ErrAmountNotPositive {
			t.Fatalf("%.20q: expected ErrAmountNotPositive, got %v", in, err)
		}
		if d := time.Since(start); d > 50*time.Millisecond {
			t.Fatalf("%.20q took %v", in, d)
		}
	}

	if got, err := ParseAmount("1.5e2"); err != nil || got.Cents != 15000 {
		t.Fatalf("1.5e2 = %d, %v", got.Cents, err)
	}
	if got, err := ParseAmount("90071992547409.91"); err != nil || got.Cents != 9007199254740991 {
		t.Fatalf("largest amount = %d, %v", got.Cents, err)
	}

	var v struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount":"1e2147483647"}`), &v); err == nil {
		t.Fatalf("expected huge JSON amount to fail")
	}
}

func TestPagination(t *testing.T) {
	if p := PageNumber(1); p.Offset != 0 || p.Limit != 10 {
		t.Fatalf("page 1 = %+v", p)
	}
	if p := PageNumber(3); p.Offset != 20 || p.Limit != 10 {
		t.Fatalf("page 3 = %+v", p)
	}
	if p := PageNumber(0); p.Offset != 0 {
		t.Fatalf("page 0 should clamp, got %+v", p)
	}
	for total, want := range map[int]int{0: 0, 1: 1, 10: 1, 11: 2, 25: 3} {
		if got := TotalPages(total); got != want {
			t.Fatalf("TotalPages(%d) = %d, want %d", total, got, want)
		}
	}
}

func TestMoneyUnmarshalJSON(t *testing.T) {
	var v struct {
		Amount Money `json:"amount"`
	}
	for in, want := range map[string]int64{`{"amount":12.3}`: 1230, `{"amount":"4.05"}`: 405, `{"amount":7}`: 700} {
		if err := json.Unmarshal([]byte(in), &v); err != nil || v.Amount.Cents != want {
			t.Fatalf("%s: got %d, %v", in, v.Amount.Cents, err)
		}
	}
	if err := json.Unmarshal([]byte(`{"amount":"twelve"}`), &v); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}
