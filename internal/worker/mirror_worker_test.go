package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"tally/internal/core"
	"tally/internal/log"
)

type fakeMirror struct {
	rows    map[string]core.Expense
	upserts int
	deletes int
	err     error
}

func newFakeMirror() *fakeMirror { return &fakeMirror{rows: map[string]core.Expense{}} }

func (m *fakeMirror) UpsertExpense(_ context.Context, e core.Expense) error {
	m.upserts++
	if m.err != nil {
		return m.err
	}
	m.rows[e.ID] = e
	return nil
}

func (m *fakeMirror) DeleteExpense(_ context.Context, id string) error {
	m.deletes++
	if m.err != nil {
		return m.err
	}
	delete(m.rows, id)
	return nil
}

func newWorker(m *fakeMirror) *MirrorWorker {
	return NewMirrorWorker(m, 100, log.New(log.Config{Output: &bytes.Buffer{}}))
}

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func sample(desc string) core.Expense {
	return core.Expense{ID: "e1", UserID: "u1", Description: desc, Amount: core.Money{Cents: 100},
		Category: core.Food, ExpenseDate: core.NewDate(2024, 6, 1), CreatedAt: t0}
}

func TestHandleEventLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newFakeMirror()
	w := newWorker(m)

	steps := []core.ExpenseEvent{
		core.NewExpenseEvent(core.EventCreated, sample("Lunch"), t0),
		core.NewExpenseEvent(core.EventUpdated, sample("Brunch"), t0.Add(time.Minute)),
	}
	for _, ev := range steps {
		if err := w.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("%s: %v", ev.Type, err)
		}
	}
	if m.rows["e1"].Description != "Brunch" {
		t.Fatalf("row = %+v", m.rows["e1"])
	}

	if err := w.HandleEvent(ctx, core.NewDeletedEvent("e1", "u1", t0.Add(2*time.Minute))); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := m.rows["e1"]; ok {
		t.Fatalf("row should be gone")
	}
}

func TestHandleEventSkipsStale(t *testing.T) {
	ctx := context.Background()
	m := newFakeMirror()
	w := newWorker(m)

	if err := w.HandleEvent(ctx, core.NewDeletedEvent("e1", "u1", t0.Add(time.Hour))); err != nil {
		t.Fatalf("delete: %v", err)
	}
	late := core.NewExpenseEvent(core.EventUpdated, sample("Late"), t0)
	if err := w.HandleEvent(ctx, late); err != nil {
		t.Fatalf("stale update should be acknowledged, got %v", err)
	}
	if m.upserts != 0 || len(m.rows) != 0 {
		t.Fatalf("stale update reached the mirror")
	}
}

func TestHandleEventReturnsMirrorErrors(t *testing.T) {
	m := newFakeMirror()
	m.err = errors.New("quota exceeded")
	w := newWorker(m)

	ev := core.NewExpenseEvent(core.EventCreated, sample("Lunch"), t0)
	if err := w.HandleEvent(context.Background(), ev); !errors.Is(err, m.err) {
		t.Fatalf("expected mirror error, got %v", err)
	}

	// A failed event is not remembered, so the redelivery is applied.
	m.err = nil
	if err := w.HandleEvent(context.Background(), ev); err != nil || m.upserts != 2 {
		t.Fatalf("redelivery: upserts=%d err=%v", m.upserts, err)
	}
}

func TestHandleEventRejectsMissingExpense(t *testing.T) {
	w := newWorker(newFakeMirror())
	ev := core.ExpenseEvent{Type: core.EventCreated, ExpenseID: "e1", UserID: "u1", Timestamp: t0}
	if err := w.HandleEvent(context.Background(), ev); err == nil {
		t.Fatalf("expected error for event without expense")
	}
}
