package backend

import (
	"context"
	"fmt"

	"tally/internal/log"
	"tally/internal/storage/memory"
	"tally/internal/storage/postgres"
	"tally/internal/storage/sqlite"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.NewDefault()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Create implements Factory.Create.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLite:
		return f.createSQLite(config)
	case Postgres:
		return f.createPostgres(ctx, config)
	default:
		return f.createMemory(config)
	}
}

func (f *DefaultFactory) createSQLite(config Config) (*Result, error) {
	repo, err := sqlite.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Store: repo, Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createPostgres(ctx context.Context, config Config) (*Result, error) {
	store, err := postgres.New(ctx, postgres.Config{
		URL:         config.PostgresURL,
		MaxPoolSize: config.PostgresMaxConns,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}

	f.logger.Info("Initialized Postgres backend", "max_conns", config.PostgresMaxConns)
	return &Result{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) createMemory(config Config) (*Result, error) {
	if config.SeedFile == "" {
		f.logger.Info("Initialized memory backend")
		return &Result{Store: memory.New()}, nil
	}

	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to seed memory backend: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return &Result{Store: store}, nil
}
