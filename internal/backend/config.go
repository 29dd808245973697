package backend

import (
	"fmt"

	"tally/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:             t,
		SeedFile:         appConfig.MemorySeedFile,
		SQLiteDBPath:     appConfig.SQLiteDBPath,
		PostgresURL:      appConfig.PostgresURL,
		PostgresMaxConns: appConfig.PostgresMaxConns,
	}, nil
}

// Validate checks the settings the selected type needs.
func (c Config) Validate() error {
	switch c.Type {
	case SQLite:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case Postgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("Postgres URL is required for postgres backend")
		}
	case Memory:
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}

// Types returns all valid backend types.
func Types() []Type {
	return []Type{Memory, SQLite, Postgres}
}
