package core

import "time"

// EventType names a change to an expense.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted:
		return true
	}
	return false
}

// ExpenseEvent is published after a successful mutation. Expense is nil
// for deletions.
type ExpenseEvent struct {
	Type      EventType `json:"type"`
	ExpenseID string    `json:"expenseId"`
	UserID    string    `json:"userId"`
	Expense   *Expense  `json:"expense,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent builds a created or updated event for e.
func NewExpenseEvent(t EventType, e Expense, at time.Time) ExpenseEvent {
	return ExpenseEvent{Type: t, ExpenseID: e.ID, UserID: e.UserID, Expense: &e, Timestamp: at.UTC()}
}

// NewDeletedEvent builds a deleted event.
func NewDeletedEvent(id, userID string, at time.Time) ExpenseEvent {
	return ExpenseEvent{Type: EventDeleted, ExpenseID: id, UserID: userID, Timestamp: at.UTC()}
}
