package backend

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"tally/internal/config"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/ports"
)

func quietFactory() Factory {
	return NewFactory(log.New(log.Config{Output: &bytes.Buffer{}}))
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", PostgresURL: "postgres://x", PostgresMaxConns: 4})
	if err != nil || cfg.Type != Postgres || cfg.PostgresMaxConns != 4 {
		t.Fatalf("unexpected: %+v %v", cfg, err)
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatalf("expected invalid backend error")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected nil config error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		cfg     Config
		wantErr bool
	}{
		{Config{Type: Memory}, false},
		{Config{Type: SQLite}, true},
		{Config{Type: SQLite, SQLiteDBPath: "x.db"}, false},
		{Config{Type: Postgres}, true},
		{Config{Type: "mongo"}, true},
	}
	for _, tt := range tests {
		if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("%+v: err = %v", tt.cfg, err)
		}
	}
}

func TestCreateMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.txt")
	if err := os.WriteFile(seed, []byte("alice|2024-01-05|Bread|2.50|Food|false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, cfg := range []Config{
		{Type: Memory, SeedFile: seed},
		{Type: SQLite, SQLiteDBPath: filepath.Join(dir, "db", "tally.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := quietFactory().Create(ctx, cfg)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if res.Cleanup != nil {
				defer res.Cleanup()
			}
			if err := res.Store.Ping(ctx); err != nil {
				t.Fatalf("ping: %v", err)
			}
			if _, err := res.Store.CreateExpense(ctx, "bob", core.ExpenseFields{
				Description: "Tea", Amount: core.Money{Cents: 300}, Category: core.Food, ExpenseDate: core.NewDate(2024, 1, 6),
			}); err != nil {
				t.Fatalf("create expense: %v", err)
			}
			n, err := res.Store.CountExpenses(ctx, "bob", ports.Filter{})
			if err != nil || n != 1 {
				t.Fatalf("count = %d, %v", n, err)
			}
		})
	}
}
