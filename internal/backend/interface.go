// Package backend builds the expense store selected by DATA_BACKEND.
package backend

import (
	"context"

	"tally/internal/ports"
)

// Store is what the server needs from a backend.
type Store interface {
	ports.ExpenseSource
	ports.Pinger
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// Result contains the store and its cleanup function.
type Result struct {
	Store   Store
	Cleanup CleanupFunc
}

// Factory creates stores based on configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for store creation.
type Config struct {
	Type Type

	// Memory specific
	SeedFile string

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresURL      string
	PostgresMaxConns int
}

// Type names a store implementation.
type Type string

const (
	Memory   Type = "memory"
	SQLite   Type = "sqlite"
	Postgres Type = "postgres"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case Memory, SQLite, Postgres:
		return true
	default:
		return false
	}
}
