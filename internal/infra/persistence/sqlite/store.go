// Package sqlite opens the SQLite-backed persistent store. Foreign keys are
// enabled on every connection so mission rows cascade with their parents.
package sqlite

import (
	"astrocore/internal/infra/persistence/sqlstore"
	"astrocore/pkg/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const defaultPath = "astrocore.db"

// Store is a sqlstore.Store bound to a SQLite file.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the database file at path and applies
// pending migrations.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; pragmas are per connection.
	db.SetMaxOpenConns(1)
	store := &Store{Store: sqlstore.New(db, sqlstore.SQLite, engine), path: path}
	if err := store.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return store, nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
