package worker

import (
	"context"
	"fmt"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/sheets"
)

// MirrorWorker applies expense events to a sheets.Mirror.
//
// Broker redelivery can reorder events for the same expense. The worker
// remembers the timestamp of the last event applied per expense and skips
// anything older, so a late "updated" cannot resurrect a deleted row.
type MirrorWorker struct {
	mirror  sheets.Mirror
	applied *cache.LRUCache[time.Time]
	logger  *log.Logger
}

// NewMirrorWorker remembers up to memory expenses for reordering checks.
func NewMirrorWorker(mirror sheets.Mirror, memory int, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.NewDefault()
	}
	if memory <= 0 {
		memory = 10000
	}
	return &MirrorWorker{
		mirror:  mirror,
		applied: cache.NewLRUCache[time.Time](memory, 24*time.Hour),
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// Register hands the reordering memory to m for periodic expiry.
func (w *MirrorWorker) Register(m *cache.Manager) {
	m.Register(w.applied)
}

// HandleEvent is an amqp.Handler. A returned error requeues the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev core.ExpenseEvent) error {
	logger := w.logger.With(
		log.FieldEventType, ev.Type,
		log.FieldExpenseID, ev.ExpenseID,
		log.FieldUserID, ev.UserID,
		log.FieldOperation, log.OpMirror)

	if last, ok := w.applied.Get(ev.ExpenseID); ok && ev.Timestamp.Before(last) {
		logger.InfoContext(ctx, "Skipping out of order event", "last_applied", last)
		return nil
	}

	var err error
	switch ev.Type {
	case core.EventCreated, core.EventUpdated:
		if ev.Expense == nil {
			return fmt.Errorf("%s event for %s has no expense", ev.Type, ev.ExpenseID)
		}
		err = w.mirror.UpsertExpense(ctx, *ev.Expense)
	case core.EventDeleted:
		err = w.mirror.DeleteExpense(ctx, ev.ExpenseID)
	default:
		logger.WarnContext(ctx, "Ignoring unknown event type")
		return nil
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to mirror expense", log.FieldError, err)
		return fmt.Errorf("mirror %s %s: %w", ev.Type, ev.ExpenseID, err)
	}

	w.applied.Set(ev.ExpenseID, ev.Timestamp)
	logger.InfoContext(ctx, "Mirrored expense event")
	return nil
}
