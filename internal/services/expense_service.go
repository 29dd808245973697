package services

import (
	"context"
	"fmt"
	"time"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/ports"
)

// EventPublisher fans out expense changes. Implemented by *amqp.Client.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev core.ExpenseEvent) error
}

// StatsInvalidator drops cached figures for a user.
type StatsInvalidator interface {
	Invalidate(userID string)
}

// ListResult is one page of a user's expenses.
type ListResult struct {
	Expenses   []core.Expense `json:"expenses"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// ExpenseService validates, stores, invalidates stats and publishes
// events, in that order. The store is the system of record: a failed
// publish is logged and does not fail the operation.
type ExpenseService struct {
	store     ports.ExpenseSource
	stats     StatsInvalidator
	publisher EventPublisher
	now       func() time.Time
	logger    *log.Logger
}

// NewExpenseService wires the service. stats and publisher may be nil.
func NewExpenseService(store ports.ExpenseSource, stats StatsInvalidator, publisher EventPublisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.NewDefault()
	}
	return &ExpenseService{
		store:     store,
		stats:     stats,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentExpense),
	}
}

// List returns the given 1-based page, optionally restricted to one category.
func (s *ExpenseService) List(ctx context.Context, userID string, page int, category *core.Category) (ListResult, error) {
	if page < 1 {
		page = 1
	}
	var f ports.Filter
	if category != nil {
		f = ports.InCategory(*category)
	}

	items, total, err := s.store.ListExpenses(ctx, userID, f, core.PageNumber(page), ports.DefaultSort)
	if err != nil {
		return ListResult{}, fmt.Errorf("list expenses: %w", err)
	}
	return ListResult{
		Expenses:   items,
		TotalCount: total,
		Page:       page,
		PageSize:   core.PageSize,
		TotalPages: core.TotalPages(total),
	}, nil
}

// Create validates in and stores a new expense for userID.
func (s *ExpenseService) Create(ctx context.Context, userID string, in core.ExpenseInput) (core.Expense, error) {
	fields, err := in.Parse()
	if err != nil {
		return core.Expense{}, err
	}
	e, err := s.store.CreateExpense(ctx, userID, fields)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.logger.InfoContext(ctx, "Expense created", log.NewFields().
		WithUser(userID).
		WithExpense(e.ID, e.Amount.Cents, e.Category.String()).
		WithOperation(log.OpCreate).ToSlice()...)
	s.afterChange(ctx, userID, core.NewExpenseEvent(core.EventCreated, e, s.now()))
	return e, nil
}

// Update replaces the editable fields of an expense owned by userID.
func (s *ExpenseService) Update(ctx context.Context, id, userID string, in core.ExpenseInput) (core.Expense, error) {
	fields, err := in.Parse()
	if err != nil {
		return core.Expense{}, err
	}
	e, err := s.store.UpdateExpense(ctx, id, userID, fields)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Expense updated", log.NewFields().
		WithUser(userID).
		WithExpense(e.ID, e.Amount.Cents, e.Category.String()).
		WithOperation(log.OpUpdate).ToSlice()...)
	s.afterChange(ctx, userID, core.NewExpenseEvent(core.EventUpdated, e, s.now()))
	return e, nil
}

// Delete removes an expense owned by userID.
func (s *ExpenseService) Delete(ctx context.Context, id, userID string) error {
	if err := s.store.DeleteExpense(ctx, id, userID); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Expense deleted",
		log.FieldUserID, userID,
		log.FieldExpenseID, id,
		log.FieldOperation, log.OpDelete)
	s.afterChange(ctx, userID, core.NewDeletedEvent(id, userID, s.now()))
	return nil
}

func (s *ExpenseService) afterChange(ctx context.Context, userID string, ev core.ExpenseEvent) {
	if s.stats != nil {
		s.stats.Invalidate(userID)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldError, err,
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ExpenseID)
	}
}
