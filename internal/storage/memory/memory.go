// Package memory is an in-process expense store used for development and
// tests. Data does not survive a restart.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tally/internal/core"
	"tally/internal/ports"
)

type Store struct {
	mu    sync.Mutex
	items []core.Expense
	now   func() time.Time
	last  time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromFile seeds a store from a pipe-separated file with lines of
// user|date|description|amount|category|recurring. Blank lines and lines
// starting with # are skipped. A missing file yields an empty store.
func NewFromFile(path string, opts ...Option) (*Store, error) {
	s := New(opts...)
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	for i, line := range lines {
		userID, fields, err := parseSeedLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i+1, err)
		}
		if _, err := s.CreateExpense(context.Background(), userID, fields); err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", path, i+1, err)
		}
	}
	return s, nil
}

func (s *Store) ListExpenses(_ context.Context, userID string, f ports.Filter, p core.Page, sort []ports.SortKey) ([]core.Expense, int, error) {
	s.mu.Lock()
	matched := s.matching(userID, f)
	s.mu.Unlock()

	ports.SortExpenses(matched, sort)
	total := len(matched)
	if p.Offset >= total {
		return []core.Expense{}, total, nil
	}
	end := total
	if p.Limit > 0 && p.Offset+p.Limit < end {
		end = p.Offset + p.Limit
	}
	return matched[p.Offset:end], total, nil
}

func (s *Store) CountExpenses(_ context.Context, userID string, f ports.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.items {
		if e.UserID == userID && f.Match(e) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateExpense(_ context.Context, userID string, f core.ExpenseFields) (core.Expense, error) {
	if err := f.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := core.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Description: f.Description,
		Amount:      f.Amount,
		Category:    f.Category,
		IsRecurring: f.IsRecurring,
		ExpenseDate: f.ExpenseDate,
		CreatedAt:   s.stamp(),
	}
	s.items = append(s.items, e)
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, id, userID string, f core.ExpenseFields) (core.Expense, error) {
	if err := f.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id, userID)
	if i < 0 {
		return core.Expense{}, ports.ErrNotFound
	}
	e := &s.items[i]
	e.Description = f.Description
	e.Amount = f.Amount
	e.Category = f.Category
	e.IsRecurring = f.IsRecurring
	e.ExpenseDate = f.ExpenseDate
	return *e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id, userID)
	if i < 0 {
		return ports.ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) matching(userID string, f ports.Filter) []core.Expense {
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		if e.UserID == userID && f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) index(id, userID string) int {
	for i, e := range s.items {
		if e.ID == id && e.UserID == userID {
			return i
		}
	}
	return -1
}

// stamp returns a strictly increasing creation time so that records
// created within the same clock tick keep their insertion order.
func (s *Store) stamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

func parseSeedLine(line string) (string, core.ExpenseFields, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 6 {
		return "", core.ExpenseFields{}, fmt.Errorf("expected 6 fields, got %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	recurring, err := strconv.ParseBool(parts[5])
	if err != nil {
		return "", core.ExpenseFields{}, fmt.Errorf("recurring flag: %w", err)
	}
	fields, err := core.ExpenseInput{
		ExpenseDate: parts[1],
		Description: parts[2],
		Amount:      parts[3],
		Category:    parts[4],
		IsRecurring: recurring,
	}.Parse()
	if err != nil {
		return "", core.ExpenseFields{}, err
	}
	return parts[0], fields, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
