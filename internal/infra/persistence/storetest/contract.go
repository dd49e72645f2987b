// Package storetest holds the behavioural contract every persistence backend
// must satisfy. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"astrocore/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, empty store for a single subtest.
type Factory func(t *testing.T) domain.PersistentStore

// Run executes the contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, store domain.PersistentStore)
	}{
		{"create and find scientist", testCreateAndFindScientist},
		{"ids are generated in order", testIDsGeneratedInOrder},
		{"blank scientist rolls back", testBlankScientistRollsBack},
		{"partial update keeps untouched fields", testPartialUpdate},
		{"failed update rolls back", testFailedUpdateRollsBack},
		{"update unknown scientist", testUpdateUnknownScientist},
		{"mission requires both references", testMissionRequiresReferences},
		{"blank mission name rolls back", testBlankMissionRollsBack},
		{"delete scientist cascades", testDeleteScientistCascades},
		{"delete planet cascades", testDeletePlanetCascades},
		{"delete unknown scientist", testDeleteUnknownScientist},
		{"error inside transaction discards writes", testErrorDiscardsWrites},
		{"restore replaces records and keeps ids", testRestoreKeepsIDs},
		{"restore rejects dangling mission", testRestoreRejectsDanglingMission},
		{"restore runs the rules", testRestoreRunsRules},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := open(t)
			t.Cleanup(func() { _ = store.Close() })
			tc.fn(t, store)
		})
	}
}

// Seed creates one scientist and one planet and returns them.
func Seed(t *testing.T, store domain.PersistentStore) (domain.Scientist, domain.Planet) {
	t.Helper()
	var sc domain.Scientist
	var p domain.Planet
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		if sc, err = tx.CreateScientist(domain.Scientist{Name: "Mae Jemison", FieldOfStudy: "Astronautics"}); err != nil {
			return err
		}
		p, err = tx.CreatePlanet(domain.Planet{Name: "Mars", DistanceFromEarth: 140000000, NearestStar: "Sun"})
		return err
	})
	require.NoError(t, err)
	return sc, p
}

func counts(t *testing.T, store domain.PersistentStore) (scientists, planets, missions int) {
	t.Helper()
	err := store.View(context.Background(), func(v domain.TransactionView) error {
		s, err := v.ListScientists()
		if err != nil {
			return err
		}
		p, err := v.ListPlanets()
		if err != nil {
			return err
		}
		m, err := v.ListMissions()
		if err != nil {
			return err
		}
		scientists, planets, missions = len(s), len(p), len(m)
		return nil
	})
	require.NoError(t, err)
	return
}

func createMission(ctx context.Context, store domain.PersistentStore, m domain.Mission) (domain.Mission, error) {
	var created domain.Mission
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateMission(m)
		return err
	})
	return created, err
}

func testCreateAndFindScientist(t *testing.T, store domain.PersistentStore) {
	sc, p := Seed(t, store)
	assert.NotZero(t, sc.ID)
	assert.NotZero(t, p.ID)

	err := store.View(context.Background(), func(v domain.TransactionView) error {
		got, err := v.FindScientist(sc.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, sc, got)
		planet, err := v.FindPlanet(p.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, p, planet)
		_, err = v.FindScientist(sc.ID + 1000)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		return nil
	})
	require.NoError(t, err)
}

func testIDsGeneratedInOrder(t *testing.T, store domain.PersistentStore) {
	names := []string{"Annie Cannon", "Henrietta Leavitt", "Cecilia Payne"}
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		for _, n := range names {
			if _, err := tx.CreateScientist(domain.Scientist{Name: n, FieldOfStudy: "Stellar classification"}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		list, err := v.ListScientists()
		require.NoError(t, err)
		require.Len(t, list, len(names))
		for i, sc := range list {
			assert.Equal(t, names[i], sc.Name)
			if i > 0 {
				assert.Greater(t, sc.ID, list[i-1].ID)
			}
		}
		return nil
	}))
}

func testBlankScientistRollsBack(t *testing.T, store domain.PersistentStore) {
	for _, in := range []domain.Scientist{
		{Name: "   ", FieldOfStudy: "Physics"},
		{Name: "Lise Meitner", FieldOfStudy: ""},
	} {
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, err := tx.CreateScientist(in)
			return err
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
	}
	scientists, _, _ := counts(t, store)
	assert.Zero(t, scientists)
}

func testPartialUpdate(t *testing.T, store domain.PersistentStore) {
	sc, _ := Seed(t, store)
	var patch domain.ScientistPatch
	patch.SetFieldOfStudy("Medicine")

	var updated domain.Scientist
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateScientist(sc.ID, func(s *domain.Scientist) error {
			patch.Apply(s)
			return nil
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, sc.Name, updated.Name)
	assert.Equal(t, "Medicine", updated.FieldOfStudy)
	assert.Equal(t, sc.ID, updated.ID)
}

func testFailedUpdateRollsBack(t *testing.T, store domain.PersistentStore) {
	sc, _ := Seed(t, store)
	var patch domain.ScientistPatch
	patch.SetName("Renamed")
	patch.SetFieldOfStudy("  ")

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateScientist(sc.ID, func(s *domain.Scientist) error {
			patch.Apply(s)
			return nil
		})
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		got, err := v.FindScientist(sc.ID)
		require.NoError(t, err)
		assert.Equal(t, sc, got)
		return nil
	}))
}

func testUpdateUnknownScientist(t *testing.T, store domain.PersistentStore) {
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateScientist(999999, func(*domain.Scientist) error { return nil })
		return err
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func testMissionRequiresReferences(t *testing.T, store domain.PersistentStore) {
	sc, p := Seed(t, store)
	ctx := context.Background()

	_, err := createMission(ctx, store, domain.Mission{Name: "Survey", ScientistID: sc.ID + 100, PlanetID: p.ID})
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
	_, err = createMission(ctx, store, domain.Mission{Name: "Survey", ScientistID: sc.ID, PlanetID: p.ID + 100})
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
	_, _, missions := counts(t, store)
	assert.Zero(t, missions)

	created, err := createMission(ctx, store, domain.Mission{Name: "Mars Survey", ScientistID: sc.ID, PlanetID: p.ID})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, sc.ID, created.ScientistID)
	assert.Equal(t, p.ID, created.PlanetID)
}

func testBlankMissionRollsBack(t *testing.T, store domain.PersistentStore) {
	sc, p := Seed(t, store)
	_, err := createMission(context.Background(), store, domain.Mission{Name: " ", ScientistID: sc.ID, PlanetID: p.ID})
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
	_, _, missions := counts(t, store)
	assert.Zero(t, missions)
}

func testDeleteScientistCascades(t *testing.T, store domain.PersistentStore) {
	sc, p := Seed(t, store)
	ctx := context.Background()
	var other domain.Scientist
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		other, err = tx.CreateScientist(domain.Scientist{Name: "Sally Ride", FieldOfStudy: "Physics"})
		return err
	})
	require.NoError(t, err)

	for _, name := range []string{"One", "Two", "Three"} {
		_, err := createMission(ctx, store, domain.Mission{Name: name, ScientistID: sc.ID, PlanetID: p.ID})
		require.NoError(t, err)
	}
	kept, err := createMission(ctx, store, domain.Mission{Name: "Kept", ScientistID: other.ID, PlanetID: p.ID})
	require.NoError(t, err)

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteScientist(sc.ID)
	})
	require.NoError(t, err)

	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		_, err := v.FindScientist(sc.ID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		owned, err := v.ListMissionsByScientist(sc.ID)
		require.NoError(t, err)
		assert.Empty(t, owned)
		all, err := v.ListMissions()
		require.NoError(t, err)
		assert.Equal(t, []domain.Mission{kept}, all)
		return nil
	}))
}

func testDeletePlanetCascades(t *testing.T, store domain.PersistentStore) {
	sc, p := Seed(t, store)
	ctx := context.Background()
	_, err := createMission(ctx, store, domain.Mission{Name: "Orbit", ScientistID: sc.ID, PlanetID: p.ID})
	require.NoError(t, err)

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeletePlanet(p.ID)
	})
	require.NoError(t, err)
	scientists, planets, missions := counts(t, store)
	assert.Equal(t, 1, scientists)
	assert.Zero(t, planets)
	assert.Zero(t, missions)
}

func testDeleteUnknownScientist(t *testing.T, store domain.PersistentStore) {
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteScientist(424242)
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}

func testErrorDiscardsWrites(t *testing.T, store domain.PersistentStore) {
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateScientist(domain.Scientist{Name: "Katherine Johnson", FieldOfStudy: "Trajectories"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	scientists, _, _ := counts(t, store)
	assert.Zero(t, scientists)
}

func restoredDataset() domain.Dataset {
	return domain.Dataset{
		Scientists: []domain.Scientist{
			{Base: domain.Base{ID: 4}, Name: "Carl Sagan", FieldOfStudy: "Planetary science"},
			{Base: domain.Base{ID: 11}, Name: "Jill Tarter", FieldOfStudy: "SETI"},
		},
		Planets: []domain.Planet{
			{Base: domain.Base{ID: 7}, Name: "Venus", DistanceFromEarth: 41000000, NearestStar: "Sun"},
		},
		Missions: []domain.Mission{
			{Base: domain.Base{ID: 20}, Name: "Cloud Sampler", ScientistID: 11, PlanetID: 7},
		},
	}
}

func testRestoreKeepsIDs(t *testing.T, store domain.PersistentStore) {
	sc, p := Seed(t, store)
	_, err := createMission(context.Background(), store, domain.Mission{Name: "Old", ScientistID: sc.ID, PlanetID: p.ID})
	require.NoError(t, err)

	data := restoredDataset()
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Restore(data)
	})
	require.NoError(t, err)

	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		scientists, err := v.ListScientists()
		require.NoError(t, err)
		planets, err := v.ListPlanets()
		require.NoError(t, err)
		missions, err := v.ListMissions()
		require.NoError(t, err)
		assert.Equal(t, data, domain.Dataset{Scientists: scientists, Planets: planets, Missions: missions})
		return nil
	}))

	var next domain.Scientist
	var nextMission domain.Mission
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		if next, err = tx.CreateScientist(domain.Scientist{Name: "Frank Drake", FieldOfStudy: "Radio astronomy"}); err != nil {
			return err
		}
		nextMission, err = tx.CreateMission(domain.Mission{Name: "Arecibo", ScientistID: next.ID, PlanetID: 7})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), next.ID, "ids continue after the highest restored id")
	assert.Equal(t, int64(21), nextMission.ID)
}

func testRestoreRejectsDanglingMission(t *testing.T, store domain.PersistentStore) {
	Seed(t, store)
	data := restoredDataset()
	data.Missions[0].PlanetID = 99
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Restore(data)
	})
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)

	scientists, planets, missions := counts(t, store)
	assert.Equal(t, []int{1, 1, 0}, []int{scientists, planets, missions}, "existing rows survive a rejected restore")
}

func testRestoreRunsRules(t *testing.T, store domain.PersistentStore) {
	Seed(t, store)
	data := restoredDataset()
	data.Scientists[0].Name = " "
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.Restore(data)
	})
	var violation domain.RuleViolationError
	assert.True(t, errors.As(err, &violation), "got %v", err)

	scientists, _, _ := counts(t, store)
	assert.Equal(t, 1, scientists)
}
