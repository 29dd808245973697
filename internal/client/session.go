package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"tally/internal/core"
	"tally/internal/services"
)

// ErrStale is returned for a list response that arrived after a newer
// one was already applied. The caller should drop it.
var ErrStale = errors.New("stale list response")

// ListSession orders the list requests of one view. Each request takes a
// sequence number when issued; only responses newer than the last applied
// one are kept, so rapid filter or page changes never show an older
// result over a newer one.
type ListSession struct {
	client *Client
	seq    atomic.Uint64

	mu      sync.Mutex
	applied uint64
	current services.ListResult
}

func NewListSession(c *Client) *ListSession {
	return &ListSession{client: c}
}

// List issues a request and returns its result, or ErrStale when a later
// request has already been applied.
func (s *ListSession) List(ctx context.Context, page int, category *core.Category) (services.ListResult, error) {
	n := s.seq.Add(1)
	res, err := s.client.ListExpenses(ctx, page, category)

	s.mu.Lock()
	defer s.mu.Unlock()
	if n < s.applied {
		return services.ListResult{}, ErrStale
	}
	if err != nil {
		return services.ListResult{}, err
	}
	s.applied = n
	s.current = res
	return res, nil
}

// Current returns the most recently applied result.
func (s *ListSession) Current() services.ListResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
