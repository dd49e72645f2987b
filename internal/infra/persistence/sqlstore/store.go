// Package sqlstore implements the domain persistence contract over
// database/sql. The sqlite and postgres packages open a connection and hand it
// to New with their dialect; the rest of the behaviour is shared.
package sqlstore

import (
	"astrocore/pkg/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store runs every domain transaction inside a database transaction. Rules are
// evaluated against the uncommitted state before COMMIT.
type Store struct {
	db      *sql.DB
	dialect Dialect
	engine  *domain.RulesEngine
}

// New wraps an open database handle. A nil engine selects the default rules.
func New(db *sql.DB, dialect Dialect, engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewDefaultRulesEngine()
	}
	return &Store{db: db, dialect: dialect, engine: engine}
}

// Migrate applies the embedded schema migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	return ApplyMigrations(ctx, s.db, s.dialect)
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the dialect the store was opened with.
func (s *Store) Dialect() Dialect { return s.dialect }

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine { return s.engine }

// RunInTransaction executes fn inside BEGIN/COMMIT. Any error from fn, from rule
// evaluation, or a blocking rule result rolls the transaction back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Result{}, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	tx := &transaction{view: view{ctx: ctx, q: sqlTx, dialect: s.dialect}}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return domain.Result{}, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return result, nil
}

// View executes fn inside a read-only transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: s.dialect.Name != SQLite.Name})
	if err != nil {
		return fmt.Errorf("begin view: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()
	return fn(view{ctx: ctx, q: sqlTx, dialect: s.dialect})
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type view struct {
	ctx     context.Context
	q       queryer
	dialect Dialect
}

const (
	scientistColumns = "id, name, field_of_study"
	planetColumns    = "id, name, distance_from_earth, nearest_star"
	missionColumns   = "id, name, scientist_id, planet_id"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanScientist(row scanner) (domain.Scientist, error) {
	var sc domain.Scientist
	err := row.Scan(&sc.ID, &sc.Name, &sc.FieldOfStudy)
	return sc, err
}

func scanPlanet(row scanner) (domain.Planet, error) {
	var (
		p        domain.Planet
		name     sql.NullString
		distance sql.NullInt64
		star     sql.NullString
	)
	if err := row.Scan(&p.ID, &name, &distance, &star); err != nil {
		return domain.Planet{}, err
	}
	p.Name = name.String
	p.DistanceFromEarth = distance.Int64
	p.NearestStar = star.String
	return p, nil
}

func scanMission(row scanner) (domain.Mission, error) {
	var m domain.Mission
	err := row.Scan(&m.ID, &m.Name, &m.ScientistID, &m.PlanetID)
	return m, err
}

func queryAll[T any](v view, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := v.q.QueryContext(v.ctx, v.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func queryOne[T any](v view, entity domain.EntityType, id int64, scan func(scanner) (T, error), query string) (T, error) {
	item, err := scan(v.q.QueryRowContext(v.ctx, v.dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, domain.NotFoundError{Entity: entity, ID: id}
	}
	return item, err
}

func (v view) ListScientists() ([]domain.Scientist, error) {
	return queryAll(v, scanScientist, "SELECT "+scientistColumns+" FROM scientists ORDER BY id")
}

func (v view) FindScientist(id int64) (domain.Scientist, error) {
	return queryOne(v, domain.EntityScientist, id, scanScientist, "SELECT "+scientistColumns+" FROM scientists WHERE id = ?")
}

func (v view) ListPlanets() ([]domain.Planet, error) {
	return queryAll(v, scanPlanet, "SELECT "+planetColumns+" FROM planets ORDER BY id")
}

func (v view) FindPlanet(id int64) (domain.Planet, error) {
	return queryOne(v, domain.EntityPlanet, id, scanPlanet, "SELECT "+planetColumns+" FROM planets WHERE id = ?")
}

func (v view) ListMissions() ([]domain.Mission, error) {
	return queryAll(v, scanMission, "SELECT "+missionColumns+" FROM missions ORDER BY id")
}

func (v view) FindMission(id int64) (domain.Mission, error) {
	return queryOne(v, domain.EntityMission, id, scanMission, "SELECT "+missionColumns+" FROM missions WHERE id = ?")
}

func (v view) ListMissionsByScientist(scientistID int64) ([]domain.Mission, error) {
	return queryAll(v, scanMission, "SELECT "+missionColumns+" FROM missions WHERE scientist_id = ? ORDER BY id", scientistID)
}

func (v view) ListMissionsByPlanet(planetID int64) ([]domain.Mission, error) {
	return queryAll(v, scanMission, "SELECT "+missionColumns+" FROM missions WHERE planet_id = ? ORDER BY id", planetID)
}

type transaction struct {
	view
	changes []domain.Change
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) Snapshot() domain.TransactionView {
	return tx.view
}

func (tx *transaction) insert(query string, args ...any) (int64, error) {
	var id int64
	err := tx.q.QueryRowContext(tx.ctx, tx.dialect.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

func (tx *transaction) CreateScientist(sc domain.Scientist) (domain.Scientist, error) {
	id, err := tx.insert("INSERT INTO scientists (name, field_of_study) VALUES (?, ?)", sc.Name, sc.FieldOfStudy)
	if err != nil {
		return domain.Scientist{}, fmt.Errorf("insert scientist: %w", err)
	}
	sc.ID = id
	tx.recordChange(domain.Change{Entity: domain.EntityScientist, Action: domain.ActionCreate, After: sc})
	return sc, nil
}

func (tx *transaction) UpdateScientist(id int64, mutator func(*domain.Scientist) error) (domain.Scientist, error) {
	current, err := tx.FindScientist(id)
	if err != nil {
		return domain.Scientist{}, err
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Scientist{}, err
	}
	current.ID = id
	if _, err := tx.q.ExecContext(tx.ctx, tx.dialect.Rebind("UPDATE scientists SET name = ?, field_of_study = ? WHERE id = ?"),
		current.Name, current.FieldOfStudy, id); err != nil {
		return domain.Scientist{}, fmt.Errorf("update scientist %d: %w", id, err)
	}
	tx.recordChange(domain.Change{Entity: domain.EntityScientist, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteScientist relies on ON DELETE CASCADE for the owned missions; they are
// read first so the change set stays complete.
func (tx *transaction) DeleteScientist(id int64) error {
	current, err := tx.FindScientist(id)
	if err != nil {
		return err
	}
	owned, err := tx.ListMissionsByScientist(id)
	if err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(tx.ctx, tx.dialect.Rebind("DELETE FROM scientists WHERE id = ?"), id); err != nil {
		return fmt.Errorf("delete scientist %d: %w", id, err)
	}
	tx.recordMissionDeletes(owned)
	tx.recordChange(domain.Change{Entity: domain.EntityScientist, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) CreatePlanet(p domain.Planet) (domain.Planet, error) {
	id, err := tx.insert("INSERT INTO planets (name, distance_from_earth, nearest_star) VALUES (?, ?, ?)",
		p.Name, p.DistanceFromEarth, p.NearestStar)
	if err != nil {
		return domain.Planet{}, fmt.Errorf("insert planet: %w", err)
	}
	p.ID = id
	tx.recordChange(domain.Change{Entity: domain.EntityPlanet, Action: domain.ActionCreate, After: p})
	return p, nil
}

func (tx *transaction) DeletePlanet(id int64) error {
	current, err := tx.FindPlanet(id)
	if err != nil {
		return err
	}
	targeting, err := tx.ListMissionsByPlanet(id)
	if err != nil {
		return err
	}
	if _, err := tx.q.ExecContext(tx.ctx, tx.dialect.Rebind("DELETE FROM planets WHERE id = ?"), id); err != nil {
		return fmt.Errorf("delete planet %d: %w", id, err)
	}
	tx.recordMissionDeletes(targeting)
	tx.recordChange(domain.Change{Entity: domain.EntityPlanet, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) CreateMission(m domain.Mission) (domain.Mission, error) {
	if _, err := tx.FindScientist(m.ScientistID); err != nil {
		return domain.Mission{}, referenceError(err, "scientist_id", domain.EntityScientist, m.ScientistID)
	}
	if _, err := tx.FindPlanet(m.PlanetID); err != nil {
		return domain.Mission{}, referenceError(err, "planet_id", domain.EntityPlanet, m.PlanetID)
	}
	id, err := tx.insert("INSERT INTO missions (name, scientist_id, planet_id) VALUES (?, ?, ?)",
		m.Name, m.ScientistID, m.PlanetID)
	if err != nil {
		return domain.Mission{}, fmt.Errorf("insert mission: %w", err)
	}
	m.ID = id
	tx.recordChange(domain.Change{Entity: domain.EntityMission, Action: domain.ActionCreate, After: m})
	return m, nil
}

// restoreTables lists the tables children first, the order rows are cleared in.
var restoreTables = []string{"missions", "scientists", "planets"}

// Restore clears the tables and inserts the dataset with its own ids, then
// moves each id generator past the restored rows.
func (tx *transaction) Restore(data domain.Dataset) error {
	if err := data.Validate(); err != nil {
		return err
	}
	for _, table := range restoreTables {
		if _, err := tx.q.ExecContext(tx.ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, sc := range data.Scientists {
		if err := tx.exec("INSERT INTO scientists (id, name, field_of_study) VALUES (?, ?, ?)",
			sc.ID, sc.Name, sc.FieldOfStudy); err != nil {
			return fmt.Errorf("restore scientist %d: %w", sc.ID, err)
		}
	}
	for _, p := range data.Planets {
		if err := tx.exec("INSERT INTO planets (id, name, distance_from_earth, nearest_star) VALUES (?, ?, ?, ?)",
			p.ID, p.Name, p.DistanceFromEarth, p.NearestStar); err != nil {
			return fmt.Errorf("restore planet %d: %w", p.ID, err)
		}
	}
	for _, m := range data.Missions {
		if err := tx.exec("INSERT INTO missions (id, name, scientist_id, planet_id) VALUES (?, ?, ?, ?)",
			m.ID, m.Name, m.ScientistID, m.PlanetID); err != nil {
			return fmt.Errorf("restore mission %d: %w", m.ID, err)
		}
	}
	for _, table := range restoreTables {
		if _, err := tx.q.ExecContext(tx.ctx, fmt.Sprintf(tx.dialect.ResetSequence, table)); err != nil {
			return fmt.Errorf("reset %s ids: %w", table, err)
		}
	}
	for _, change := range data.Changes() {
		tx.recordChange(change)
	}
	return nil
}

func (tx *transaction) exec(query string, args ...any) error {
	_, err := tx.q.ExecContext(tx.ctx, tx.dialect.Rebind(query), args...)
	return err
}

func (tx *transaction) recordMissionDeletes(missions []domain.Mission) {
	for _, m := range missions {
		tx.recordChange(domain.Change{Entity: domain.EntityMission, Action: domain.ActionDelete, Before: m})
	}
}

func referenceError(err error, field string, entity domain.EntityType, id int64) error {
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return domain.ValidationError{Entity: domain.EntityMission, Field: field, Message: fmt.Sprintf("%s %d does not exist", entity, id)}
}
