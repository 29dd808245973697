package postgres

import (
	"context"
	"os"
	"testing"

	"tally/internal/ports"
	"tally/internal/storage/storagetest"
)

// Set TALLY_TEST_POSTGRES_URL to a disposable database to run these.
func TestStoreBehaviour(t *testing.T) {
	url := os.Getenv("TALLY_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TALLY_TEST_POSTGRES_URL not set")
	}
	storagetest.Run(t, func(t *testing.T) ports.ExpenseSource {
		s, err := New(context.Background(), Config{URL: url}, nil)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		if _, err := s.pool.Exec(context.Background(), "TRUNCATE expenses"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}
