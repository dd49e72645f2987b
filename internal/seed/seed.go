// Package seed loads a deterministic sample data set. Planets have no HTTP
// write path, so seeding is how a fresh database gets destinations.
package seed

import (
	"context"
	"fmt"

	"astrocore/internal/core"
	"astrocore/pkg/domain"
)

// Planets is the fixed planet catalogue.
var Planets = []domain.Planet{
	{Name: "Mercury", DistanceFromEarth: 77000000, NearestStar: "Sun"},
	{Name: "Venus", DistanceFromEarth: 38000000, NearestStar: "Sun"},
	{Name: "Mars", DistanceFromEarth: 140000000, NearestStar: "Sun"},
	{Name: "Jupiter", DistanceFromEarth: 588000000, NearestStar: "Sun"},
	{Name: "Proxima Centauri b", DistanceFromEarth: 40208000000000, NearestStar: "Proxima Centauri"},
	{Name: "TRAPPIST-1e", DistanceFromEarth: 378000000000000, NearestStar: "TRAPPIST-1"},
}

// Scientists is the fixed scientist roster.
var Scientists = []domain.Scientist{
	{Name: "Vera Rubin", FieldOfStudy: "Galaxy rotation"},
	{Name: "Carl Sagan", FieldOfStudy: "Planetary science"},
	{Name: "Jocelyn Bell Burnell", FieldOfStudy: "Radio astronomy"},
	{Name: "Subrahmanyan Chandrasekhar", FieldOfStudy: "Stellar structure"},
	{Name: "Henrietta Swan Leavitt", FieldOfStudy: "Variable stars"},
}

// Options controls a seed run.
type Options struct {
	// Reset deletes every scientist and planet first; missions cascade.
	Reset bool
	// Missions pairs each scientist with one planet.
	Missions bool
}

// Summary counts what a run changed.
type Summary struct {
	DeletedScientists int
	DeletedPlanets    int
	Scientists        int
	Planets           int
	Missions          int
}

// Run seeds svc with the fixed catalogue in a single transaction, so a failed
// run, reset included, leaves the store as it was.
func Run(ctx context.Context, svc *core.Service, opts Options) (Summary, error) {
	var sum Summary
	_, err := svc.RunBatch(ctx, core.OpSeed, func(tx domain.Transaction) error {
		sum = Summary{}
		if opts.Reset {
			if err := reset(tx, &sum); err != nil {
				return err
			}
		}
		return populate(tx, opts, &sum)
	})
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func populate(tx domain.Transaction, opts Options, sum *Summary) error {
	planets := make([]domain.Planet, 0, len(Planets))
	for _, p := range Planets {
		created, err := tx.CreatePlanet(p)
		if err != nil {
			return fmt.Errorf("seed planet %s: %w", p.Name, err)
		}
		planets = append(planets, created)
		sum.Planets++
	}

	for i, sc := range Scientists {
		created, err := tx.CreateScientist(sc)
		if err != nil {
			return fmt.Errorf("seed scientist %s: %w", sc.Name, err)
		}
		sum.Scientists++
		if !opts.Missions {
			continue
		}
		planet := planets[i%len(planets)]
		m := domain.Mission{
			Name:        fmt.Sprintf("%s Survey", planet.Name),
			ScientistID: created.ID,
			PlanetID:    planet.ID,
		}
		if _, err := tx.CreateMission(m); err != nil {
			return fmt.Errorf("seed mission %s: %w", m.Name, err)
		}
		sum.Missions++
	}
	return nil
}

func reset(tx domain.Transaction, sum *Summary) error {
	scientists, err := tx.ListScientists()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	for _, sc := range scientists {
		if err := tx.DeleteScientist(sc.ID); err != nil {
			return fmt.Errorf("reset scientist %d: %w", sc.ID, err)
		}
		sum.DeletedScientists++
	}
	planets, err := tx.ListPlanets()
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	for _, p := range planets {
		if err := tx.DeletePlanet(p.ID); err != nil {
			return fmt.Errorf("reset planet %d: %w", p.ID, err)
		}
		sum.DeletedPlanets++
	}
	return nil
}
