package amqp

import (
	"encoding/json"
	"errors"
	"fmt"

	"tally/internal/core"
)

// ErrInvalidEvent marks payloads that can never be processed.
var ErrInvalidEvent = errors.New("invalid expense event")

// EncodeEvent serialises ev for publishing.
func EncodeEvent(ev core.ExpenseEvent) ([]byte, error) {
	if err := checkEvent(ev); err != nil {
		return nil, err
	}
	return json.Marshal(ev)
}

// DecodeEvent parses and checks a delivered payload.
func DecodeEvent(body []byte) (core.ExpenseEvent, error) {
	var ev core.ExpenseEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return core.ExpenseEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := checkEvent(ev); err != nil {
		return core.ExpenseEvent{}, err
	}
	return ev, nil
}

func checkEvent(ev core.ExpenseEvent) error {
	if !ev.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}
	if ev.ExpenseID == "" || ev.UserID == "" {
		return fmt.Errorf("%w: missing expense or user id", ErrInvalidEvent)
	}
	if ev.Type != core.EventDeleted && ev.Expense == nil {
		return fmt.Errorf("%w: %s event without expense", ErrInvalidEvent, ev.Type)
	}
	return nil
}
