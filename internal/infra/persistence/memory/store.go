// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"astrocore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Scientist aliases domain.Scientist for in-memory persistence operations.
	Scientist = domain.Scientist
	// Planet aliases domain.Planet.
	Planet = domain.Planet
	// Mission aliases domain.Mission.
	Mission = domain.Mission
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type sequences struct {
	scientist int64
	planet    int64
	mission   int64
}

type memoryState struct {
	scientists map[int64]Scientist
	planets    map[int64]Planet
	missions   map[int64]Mission
	seq        sequences
}

func newMemoryState() memoryState {
	return memoryState{
		scientists: make(map[int64]Scientist),
		planets:    make(map[int64]Planet),
		missions:   make(map[int64]Mission),
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		scientists: make(map[int64]Scientist, len(s.scientists)),
		planets:    make(map[int64]Planet, len(s.planets)),
		missions:   make(map[int64]Mission, len(s.missions)),
		seq:        s.seq,
	}
	for k, v := range s.scientists {
		out.scientists[k] = v
	}
	for k, v := range s.planets {
		out.planets[k] = v
	}
	for k, v := range s.missions {
		out.missions[k] = v
	}
	return out
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewDefaultRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
	}
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// Transaction represents a mutation set applied to the store state.
type transaction struct {
	transactionView
	changes []Change
}

// TransactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) transactionView {
	return transactionView{state: state}
}

func sortedValues[T any](m map[int64]T, keep func(T) bool) []T {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// ListScientists returns all scientists within the snapshot.
func (v transactionView) ListScientists() ([]Scientist, error) {
	return sortedValues(v.state.scientists, nil), nil
}

// FindScientist looks up a scientist by id.
func (v transactionView) FindScientist(id int64) (Scientist, error) {
	sc, ok := v.state.scientists[id]
	if !ok {
		return Scientist{}, domain.NotFoundError{Entity: domain.EntityScientist, ID: id}
	}
	return sc, nil
}

// ListPlanets returns all planets within the snapshot.
func (v transactionView) ListPlanets() ([]Planet, error) {
	return sortedValues(v.state.planets, nil), nil
}

// FindPlanet looks up a planet by id.
func (v transactionView) FindPlanet(id int64) (Planet, error) {
	p, ok := v.state.planets[id]
	if !ok {
		return Planet{}, domain.NotFoundError{Entity: domain.EntityPlanet, ID: id}
	}
	return p, nil
}

// ListMissions returns all missions within the snapshot.
func (v transactionView) ListMissions() ([]Mission, error) {
	return sortedValues(v.state.missions, nil), nil
}

// FindMission looks up a mission by id.
func (v transactionView) FindMission(id int64) (Mission, error) {
	m, ok := v.state.missions[id]
	if !ok {
		return Mission{}, domain.NotFoundError{Entity: domain.EntityMission, ID: id}
	}
	return m, nil
}

// ListMissionsByScientist returns the missions owned by a scientist.
func (v transactionView) ListMissionsByScientist(scientistID int64) ([]Mission, error) {
	return sortedValues(v.state.missions, func(m Mission) bool { return m.ScientistID == scientistID }), nil
}

// ListMissionsByPlanet returns the missions targeting a planet.
func (v transactionView) ListMissionsByPlanet(planetID int64) ([]Mission, error) {
	return sortedValues(v.state.missions, func(m Mission) bool { return m.PlanetID == planetID }), nil
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the committed state only when fn and the rules engine succeed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state.clone()
	tx := &transaction{transactionView: newTransactionView(&state)}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, tx.transactionView, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// Ping always succeeds for the in-memory backend.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return tx.transactionView
}

// CreateScientist stores a new scientist with a generated id.
func (tx *transaction) CreateScientist(sc Scientist) (Scientist, error) {
	tx.state.seq.scientist++
	sc.ID = tx.state.seq.scientist
	tx.state.scientists[sc.ID] = sc
	tx.recordChange(Change{Entity: domain.EntityScientist, Action: domain.ActionCreate, After: sc})
	return sc, nil
}

// UpdateScientist mutates a scientist using the provided mutator function.
func (tx *transaction) UpdateScientist(id int64, mutator func(*Scientist) error) (Scientist, error) {
	current, ok := tx.state.scientists[id]
	if !ok {
		return Scientist{}, domain.NotFoundError{Entity: domain.EntityScientist, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Scientist{}, err
	}
	current.ID = id
	tx.state.scientists[id] = current
	tx.recordChange(Change{Entity: domain.EntityScientist, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteScientist removes a scientist and cascades to its missions.
func (tx *transaction) DeleteScientist(id int64) error {
	current, ok := tx.state.scientists[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityScientist, ID: id}
	}
	owned, _ := tx.ListMissionsByScientist(id)
	tx.deleteMissions(owned)
	delete(tx.state.scientists, id)
	tx.recordChange(Change{Entity: domain.EntityScientist, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreatePlanet stores a new planet with a generated id.
func (tx *transaction) CreatePlanet(p Planet) (Planet, error) {
	tx.state.seq.planet++
	p.ID = tx.state.seq.planet
	tx.state.planets[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityPlanet, Action: domain.ActionCreate, After: p})
	return p, nil
}

// DeletePlanet removes a planet and cascades to its missions.
func (tx *transaction) DeletePlanet(id int64) error {
	current, ok := tx.state.planets[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityPlanet, ID: id}
	}
	targeting, _ := tx.ListMissionsByPlanet(id)
	tx.deleteMissions(targeting)
	delete(tx.state.planets, id)
	tx.recordChange(Change{Entity: domain.EntityPlanet, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateMission stores a new mission after resolving both references.
func (tx *transaction) CreateMission(m Mission) (Mission, error) {
	if _, ok := tx.state.scientists[m.ScientistID]; !ok {
		return Mission{}, domain.ValidationError{Entity: domain.EntityMission, Field: "scientist_id", Message: fmt.Sprintf("scientist %d does not exist", m.ScientistID)}
	}
	if _, ok := tx.state.planets[m.PlanetID]; !ok {
		return Mission{}, domain.ValidationError{Entity: domain.EntityMission, Field: "planet_id", Message: fmt.Sprintf("planet %d does not exist", m.PlanetID)}
	}
	tx.state.seq.mission++
	m.ID = tx.state.seq.mission
	tx.state.missions[m.ID] = m
	tx.recordChange(Change{Entity: domain.EntityMission, Action: domain.ActionCreate, After: m})
	return m, nil
}

// Restore swaps the transactional state for the dataset. Nothing is written
// back unless the surrounding transaction commits.
func (tx *transaction) Restore(data domain.Dataset) error {
	if err := data.Validate(); err != nil {
		return err
	}
	state := newMemoryState()
	for _, sc := range data.Scientists {
		state.scientists[sc.ID] = sc
		state.seq.scientist = max(state.seq.scientist, sc.ID)
	}
	for _, p := range data.Planets {
		state.planets[p.ID] = p
		state.seq.planet = max(state.seq.planet, p.ID)
	}
	for _, m := range data.Missions {
		state.missions[m.ID] = m
		state.seq.mission = max(state.seq.mission, m.ID)
	}
	*tx.state = state
	for _, change := range data.Changes() {
		tx.recordChange(change)
	}
	return nil
}

func (tx *transaction) deleteMissions(missions []Mission) {
	for _, m := range missions {
		delete(tx.state.missions, m.ID)
		tx.recordChange(Change{Entity: domain.EntityMission, Action: domain.ActionDelete, Before: m})
	}
}
