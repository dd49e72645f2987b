// Package postgres opens the Postgres-backed persistent store through the pgx
// database/sql driver and applies the embedded schema on startup.
package postgres

import (
	"astrocore/internal/infra/persistence/sqlstore"
	"astrocore/pkg/domain"
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/astrocore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a sqlstore.Store bound to a Postgres database.
type Store struct {
	*sqlstore.Store
}

// NewStore connects using dsn (defaultDSN when empty), verifies the connection
// and applies pending migrations.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &Store{Store: sqlstore.New(db, sqlstore.Postgres, engine)}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return store, nil
}

// OverrideSQLOpen swaps the sql.Open implementation for tests and returns a restore func.
func OverrideSQLOpen(fn func(string, string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}
