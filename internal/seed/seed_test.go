package seed

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"astrocore/internal/core"
	"astrocore/internal/infra/persistence/memory"
	"astrocore/internal/infra/persistence/sqlite"
	"astrocore/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missionCount(t *testing.T, svc *core.Service) int {
	t.Helper()
	var n int
	require.NoError(t, svc.Store().View(context.Background(), func(v domain.TransactionView) error {
		missions, err := v.ListMissions()
		n = len(missions)
		return err
	}))
	return n
}

func TestRunSeedsCatalogue(t *testing.T) {
	ctx := context.Background()
	svc := core.NewService(memory.NewStore(nil))

	sum, err := Run(ctx, svc, Options{Missions: true})
	require.NoError(t, err)
	assert.Equal(t, Summary{Scientists: len(Scientists), Planets: len(Planets), Missions: len(Scientists)}, sum)

	planets, err := svc.ListPlanets(ctx)
	require.NoError(t, err)
	require.Len(t, planets, len(Planets))
	assert.Equal(t, "Mercury", planets[0].Name)

	detail, err := svc.GetScientist(ctx, 1)
	require.NoError(t, err)
	require.Len(t, detail.Missions, 1)
	assert.Equal(t, "Mercury Survey", detail.Missions[0].Name)
}

func TestRunWithoutMissions(t *testing.T) {
	svc := core.NewService(memory.NewStore(nil))
	sum, err := Run(context.Background(), svc, Options{})
	require.NoError(t, err)
	assert.Zero(t, sum.Missions)
	assert.Zero(t, missionCount(t, svc))
}

func TestResetReplacesData(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "seed.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svc := core.NewService(store)

	_, err = Run(ctx, svc, Options{Missions: true})
	require.NoError(t, err)
	_, err = Run(ctx, svc, Options{})
	require.NoError(t, err)
	scientists, err := svc.ListScientists(ctx)
	require.NoError(t, err)
	assert.Len(t, scientists, 2*len(Scientists), "seeding without reset appends")

	sum, err := Run(ctx, svc, Options{Reset: true})
	require.NoError(t, err)
	assert.Equal(t, 2*len(Scientists), sum.DeletedScientists)
	assert.Equal(t, 2*len(Planets), sum.DeletedPlanets)
	assert.Zero(t, missionCount(t, svc))

	scientists, err = svc.ListScientists(ctx)
	require.NoError(t, err)
	assert.Len(t, scientists, len(Scientists))
}

// rejectingStore accepts every write but fails the commit once the
// transaction has created a mission.
type rejectingStore struct {
	*memory.Store
}

func (s rejectingStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	return s.Store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := fn(tx); err != nil {
			return err
		}
		missions, err := tx.ListMissions()
		if err != nil {
			return err
		}
		if len(missions) > 0 {
			return errors.New("disk full")
		}
		return nil
	})
}

func TestFailedRunLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	svc := core.NewService(rejectingStore{Store: store})

	first, err := Run(ctx, svc, Options{})
	require.NoError(t, err)
	require.Equal(t, len(Scientists), first.Scientists)

	sum, err := Run(ctx, svc, Options{Reset: true, Missions: true})
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, Summary{}, sum)

	scientists, err := svc.ListScientists(ctx)
	require.NoError(t, err)
	planets, err := svc.ListPlanets(ctx)
	require.NoError(t, err)
	assert.Len(t, scientists, len(Scientists), "reset is rolled back with the rest of the run")
	assert.Len(t, planets, len(Planets))
	assert.Zero(t, missionCount(t, svc))
	assert.Equal(t, int64(1), scientists[0].ID)
}
