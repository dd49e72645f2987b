package core

import (
	"fmt"
	"strings"

	"astrocore/internal/infra/persistence/memory"
	"astrocore/internal/infra/persistence/postgres"
	"astrocore/internal/infra/persistence/sqlite"
	"astrocore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects the persistence backend.
//
//	ASTROCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	ASTROCORE_SQLITE_PATH: path to sqlite file (default astrocore.db)
//	ASTROCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//
// URI, when set, overrides all three using a database URL such as
// sqlite:///astrocore.db or postgres://user@host/db.
type StorageConfig struct {
	Driver      StorageDriver `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string        `env:"SQLITE_PATH" envDefault:"astrocore.db"`
	PostgresDSN string        `env:"POSTGRES_DSN" envDefault:"postgres://localhost/astrocore?sslmode=disable"`
	URI         string
}

// Resolve applies the URI override and returns the effective config.
func (c StorageConfig) Resolve() (StorageConfig, error) {
	if c.URI == "" {
		if c.Driver == "" {
			c.Driver = StorageSQLite
		}
		return c, nil
	}
	uri := c.URI
	switch {
	case strings.HasPrefix(uri, "sqlite:///"):
		// sqlite:///rel.db is relative, sqlite:////abs.db is absolute.
		c.Driver = StorageSQLite
		c.SQLitePath = strings.TrimPrefix(uri, "sqlite:///")
		if c.SQLitePath == "" {
			return c, fmt.Errorf("database uri %q has no path", uri)
		}
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		c.Driver = StoragePostgres
		c.PostgresDSN = uri
	case uri == "memory://":
		c.Driver = StorageMemory
	default:
		return c, fmt.Errorf("unsupported database uri %q", uri)
	}
	return c, nil
}

// OpenPersistentStore opens and migrates the configured backend.
func OpenPersistentStore(cfg StorageConfig, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	switch resolved.Driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(resolved.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(resolved.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", resolved.Driver)
	}
}
