// Package client calls the tally HTTP API on behalf of a presentation layer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/stats"
)

// APIError is a non-2xx response. Message is the server's user-facing
// error text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client with a 15s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a client for baseURL that authenticates with token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListExpenses fetches one page. A nil category lists all categories.
func (c *Client) ListExpenses(ctx context.Context, page int, category *core.Category) (services.ListResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if category != nil {
		q.Set("category", category.String())
	}
	var out services.ListResult
	err := c.do(ctx, http.MethodGet, "/api/expenses?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	var out core.Expense
	err := c.do(ctx, http.MethodPost, "/api/expenses", in, &out)
	return out, err
}

func (c *Client) UpdateExpense(ctx context.Context, id string, in core.ExpenseInput) (core.Expense, error) {
	var out core.Expense
	err := c.do(ctx, http.MethodPut, "/api/expenses/"+url.PathEscape(id), in, &out)
	return out, err
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/expenses/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Summary(ctx context.Context) (stats.Summary, error) {
	var out stats.Summary
	err := c.do(ctx, http.MethodGet, "/api/stats/summary", nil, &out)
	return out, err
}

func (c *Client) Charts(ctx context.Context) (stats.Charts, error) {
	var out stats.Charts
	err := c.do(ctx, http.MethodGet, "/api/stats/charts", nil, &out)
	return out, err
}

// expensePayload is the wire form of core.ExpenseInput.
type expensePayload struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	IsRecurring bool   `json:"isRecurring"`
	ExpenseDate string `json:"expenseDate"`
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if input, ok := in.(core.ExpenseInput); ok {
		b, err := json.Marshal(expensePayload(input))
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
