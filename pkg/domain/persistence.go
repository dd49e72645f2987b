package domain

import "context"

// TransactionView provides read-only access to stored records. Lists are
// ordered by id.
type TransactionView interface {
	ListScientists() ([]Scientist, error)
	FindScientist(id int64) (Scientist, error)
	ListPlanets() ([]Planet, error)
	FindPlanet(id int64) (Planet, error)
	ListMissions() ([]Mission, error)
	FindMission(id int64) (Mission, error)
	ListMissionsByScientist(scientistID int64) ([]Mission, error)
	ListMissionsByPlanet(planetID int64) ([]Mission, error)
}

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Find* methods return a NotFoundError
// for unknown ids.
type Transaction interface {
	TransactionView
	Snapshot() TransactionView
	CreateScientist(Scientist) (Scientist, error)
	UpdateScientist(id int64, mutator func(*Scientist) error) (Scientist, error)
	// DeleteScientist removes the scientist and every mission referencing it.
	DeleteScientist(id int64) error
	CreatePlanet(Planet) (Planet, error)
	// DeletePlanet removes the planet and every mission referencing it.
	DeletePlanet(id int64) error
	// CreateMission fails with a ValidationError when either reference does not resolve.
	CreateMission(Mission) (Mission, error)
	// Restore replaces every stored record with the dataset, keeping its ids.
	// Id generation continues after the highest restored id.
	Restore(Dataset) error
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Ping(ctx context.Context) error
	Close() error
}
