package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tally/internal/auth"
	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/services"
	"tally/internal/stats"
	"tally/internal/storage/memory"
)

const testSecret = "0123456789abcdef-test"

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	server *Server
	signer *auth.Signer
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: &bytes.Buffer{}})
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	logger := quietLogger()
	if opts.Expenses == nil || opts.Stats == nil {
		store := memory.New()
		st := stats.NewService(store, stats.Config{Location: time.UTC}, logger)
		if opts.Stats == nil {
			opts.Stats = st
		}
		if opts.Expenses == nil {
			opts.Expenses = services.NewExpenseService(store, st, nil, logger)
		}
		if opts.Ready == nil {
			opts.Ready = store
		}
	}
	opts.Verifier = auth.NewVerifier(testSecret, "tally")
	opts.Logger = logger
	opts.Now = func() time.Time { return fixedNow }

	s := NewServer(opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &testEnv{server: s, signer: auth.NewSigner(testSecret, "tally", time.Hour)}
}

func (e *testEnv) do(t *testing.T, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		token, err := e.signer.Sign(user)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["error"]
}

const lunch = `{"description":"Lunch","amount":"12.50","category":"Food","expenseDate":"2024-03-10"}`

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, "", http.MethodGet, "/api/expenses", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("missing bearer challenge")
	}
	if msg := errorMessage(t, rec); msg != "Unauthorized" {
		t.Fatalf("unexpected error %q", msg)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestCreateListAndStats(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, "alice", http.MethodPost, "/api/expenses", lunch)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	created := decode[core.Expense](t, rec)
	if created.ID == "" || created.UserID != "alice" || created.Amount.Cents != 1250 || created.Category != core.Food {
		t.Fatalf("unexpected expense: %+v", created)
	}

	rec = env.do(t, "alice", http.MethodGet, "/api/expenses", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	list := decode[services.ListResult](t, rec)
	if list.TotalCount != 1 || list.Page != 1 || list.PageSize != core.PageSize || list.TotalPages != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec = env.do(t, "bob", http.MethodGet, "/api/expenses", "")
	if got := decode[services.ListResult](t, rec); got.TotalCount != 0 || len(got.Expenses) != 0 {
		t.Fatalf("bob must not see alice's records: %+v", got)
	}

	rec = env.do(t, "alice", http.MethodGet, "/api/stats/summary", "")
	summary := decode[stats.Summary](t, rec)
	if summary.TotalThisMonth.Cents != 1250 || summary.ExpenseCount != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	rec = env.do(t, "alice", http.MethodGet, "/api/stats/charts", "")
	charts := decode[stats.Charts](t, rec)
	if len(charts.Categories) != 1 || charts.Categories[0].Category != core.Food {
		t.Fatalf("unexpected charts: %+v", charts)
	}
	if len(charts.Monthly) != 1 || charts.Monthly[0].Year != 2024 || charts.Monthly[0].Month != 3 {
		t.Fatalf("unexpected monthly series: %+v", charts.Monthly)
	}
}

func TestCreateAcceptsFormBody(t *testing.T) {
	env := newTestEnv(t, Options{})

	token, _ := env.signer.Sign("alice")
	req := httptest.NewRequest(http.MethodPost, "/api/expenses",
		strings.NewReader("description=Rent&amount=700&category=Bills&expenseDate=2024-03-01&isRecurring=on"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	if e := decode[core.Expense](t, rec); !e.IsRecurring || e.Category != core.Bills {
		t.Fatalf("unexpected expense: %+v", e)
	}
}

func TestCreateErrors(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name    string
		body    string
		code    int
		message string
	}{
		{"negative amount", `{"description":"x","amount":"-5","category":"Food","expenseDate":"2024-03-10"}`, http.StatusUnprocessableEntity, "Amount must be positive"},
		{"missing description", `{"amount":"5","category":"Food","expenseDate":"2024-03-10"}`, http.StatusUnprocessableEntity, "Description is required"},
		{"unknown category", `{"description":"x","amount":"5","category":"Travel","expenseDate":"2024-03-10"}`, http.StatusUnprocessableEntity, ""},
		{"malformed json", `{"description":`, http.StatusBadRequest, "Invalid request body"},
		{"array body", `[1,2]`, http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "alice", http.MethodPost, "/api/expenses", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body)
			}
			if msg := errorMessage(t, rec); tt.message != "" && msg != tt.message {
				t.Fatalf("expected %q, got %q", tt.message, msg)
			}
		})
	}

	rec := env.do(t, "alice", http.MethodGet, "/api/expenses", "")
	if got := decode[services.ListResult](t, rec); got.TotalCount != 0 {
		t.Fatalf("rejected input must not be stored: %+v", got)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, Options{})

	for range 2 {
		if rec := env.do(t, "alice", http.MethodPost, "/api/expenses", lunch); rec.Code != http.StatusCreated {
			t.Fatalf("seed: %d", rec.Code)
		}
	}
	list := decode[services.ListResult](t, env.do(t, "alice", http.MethodGet, "/api/expenses", ""))
	id := list.Expenses[0].ID

	update := `{"description":"Dinner","amount":"30","category":"Food","expenseDate":"2024-03-11"}`
	if rec := env.do(t, "bob", http.MethodPut, "/api/expenses/"+id, update); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign update should be 404, got %d", rec.Code)
	}
	rec := env.do(t, "alice", http.MethodPut, "/api/expenses/"+id, update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body)
	}
	if e := decode[core.Expense](t, rec); e.ID != id || e.Description != "Dinner" || e.Amount.Cents != 3000 {
		t.Fatalf("unexpected update result: %+v", e)
	}

	if rec := env.do(t, "bob", http.MethodDelete, "/api/expenses/"+id, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete should be 404, got %d", rec.Code)
	}
	rec = env.do(t, "alice", http.MethodDelete, "/api/expenses/"+id, "")
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("delete: %d %q", rec.Code, rec.Body)
	}

	after := decode[services.ListResult](t, env.do(t, "alice", http.MethodGet, "/api/expenses", ""))
	if after.TotalCount != list.TotalCount-1 {
		t.Fatalf("count should drop by one: before %d after %d", list.TotalCount, after.TotalCount)
	}
	for _, e := range after.Expenses {
		if e.ID == id {
			t.Fatalf("deleted record still listed")
		}
	}

	if rec := env.do(t, "alice", http.MethodDelete, "/api/expenses/"+id, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete should be 404, got %d", rec.Code)
	}
}

func TestListQueryParams(t *testing.T) {
	env := newTestEnv(t, Options{})

	if rec := env.do(t, "alice", http.MethodGet, "/api/expenses?category=Travel", ""); rec.Code != http.StatusBadRequest || errorMessage(t, rec) != "Invalid category" {
		t.Fatalf("expected 400 Invalid category, got %d %s", rec.Code, rec.Body)
	}
	if rec := env.do(t, "alice", http.MethodGet, "/api/expenses?page=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad page, got %d", rec.Code)
	}
	rec := env.do(t, "alice", http.MethodGet, "/api/expenses?page=-3&category=Food", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode[services.ListResult](t, rec); got.Page != 1 {
		t.Fatalf("page should clamp to 1, got %d", got.Page)
	}
}

type failingExpenses struct{}

func (failingExpenses) List(context.Context, string, int, *core.Category) (services.ListResult, error) {
	return services.ListResult{}, errors.New("database is locked")
}

func (failingExpenses) Create(context.Context, string, core.ExpenseInput) (core.Expense, error) {
	return core.Expense{}, errors.New("disk full")
}

func (failingExpenses) Update(context.Context, string, string, core.ExpenseInput) (core.Expense, error) {
	return core.Expense{}, errors.New("disk full")
}

func (failingExpenses) Delete(context.Context, string, string) error {
	return errors.New("disk full")
}

type failingStats struct{}

func (failingStats) Summary(context.Context, string, time.Time) (stats.Summary, error) {
	return stats.Summary{}, errors.New("timeout")
}

func (failingStats) Charts(context.Context, string, time.Time) (stats.Charts, error) {
	return stats.Charts{}, errors.New("timeout")
}

func (failingStats) CacheStats() (cache.Stats, cache.Stats) { return cache.Stats{}, cache.Stats{} }

func TestStoreFailuresUseGenericMessages(t *testing.T) {
	env := newTestEnv(t, Options{Expenses: failingExpenses{}, Stats: failingStats{}})

	tests := []struct {
		method, path, body, message string
	}{
		{http.MethodGet, "/api/expenses", "", "Failed to load expenses"},
		{http.MethodPost, "/api/expenses", lunch, "Failed to save expense"},
		{http.MethodPut, "/api/expenses/x", lunch, "Failed to save expense"},
		{http.MethodDelete, "/api/expenses/x", "", "Failed to delete expense"},
		{http.MethodGet, "/api/stats/summary", "", "Failed to load statistics"},
		{http.MethodGet, "/api/stats/charts", "", "Failed to load statistics"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := env.do(t, "alice", tt.method, tt.path, tt.body)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			if msg := errorMessage(t, rec); msg != tt.message {
				t.Fatalf("expected %q, got %q", tt.message, msg)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitPerMinute: 2})

	for i := range 2 {
		if rec := env.do(t, "alice", http.MethodGet, "/api/expenses", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i+1, rec.Code)
		}
	}
	rec := env.do(t, "alice", http.MethodGet, "/api/expenses", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	if rec := env.do(t, "bob", http.MethodGet, "/api/expenses", ""); rec.Code != http.StatusOK {
		t.Fatalf("other users keep their own budget, got %d", rec.Code)
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestOperationalEndpoints(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, "", http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || decode[map[string]any](t, rec)["status"] != "ok" {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers not applied")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id not assigned")
	}

	rec = env.do(t, "", http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}

	rec = env.do(t, "", http.MethodGet, "/metrics", "")
	body := rec.Body.String()
	for _, want := range []string{"# TYPE http_requests_total counter", "http_requests_total 2", "stats_summary_cache_hits_total", "uptime_seconds"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}

	down := newTestEnv(t, Options{Ready: downPinger{}})
	rec = down.do(t, "", http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable || decode[map[string]any](t, rec)["status"] != "not_ready" {
		t.Fatalf("expected not_ready, got %d %s", rec.Code, rec.Body)
	}
}
