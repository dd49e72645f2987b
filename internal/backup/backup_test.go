package backup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"astrocore/internal/blob"
	blobmemory "astrocore/internal/infra/blob/memory"
	"astrocore/internal/infra/persistence/memory"
	"astrocore/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		sc, err := tx.CreateScientist(domain.Scientist{Name: "Vera Rubin", FieldOfStudy: "Astronomy"})
		if err != nil {
			return err
		}
		p, err := tx.CreatePlanet(domain.Planet{Name: "Mars", DistanceFromEarth: 140000000, NearestStar: "Sun"})
		if err != nil {
			return err
		}
		_, err = tx.CreateMission(domain.Mission{Name: "Mars Survey", ScientistID: sc.ID, PlanetID: p.ID})
		return err
	})
	require.NoError(t, err)
	return store
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestKeyLayout(t *testing.T) {
	ts := time.Date(2025, 4, 2, 13, 4, 5, 6, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "backups/astrocore-20250402T110405.000000006Z.json", Key(ts))
}

func TestCreateAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	blobs := blobmemory.New()
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mgr := NewManager(store, blobs, fixedClock(ts))

	info, err := mgr.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, Key(ts), info.Key)
	assert.Equal(t, "application/json", info.ContentType)
	assert.Equal(t, "1", info.Metadata["missions"])
	assert.Equal(t, "1", info.Metadata["format_version"])

	snap, err := mgr.Load(ctx, info.Key)
	require.NoError(t, err)
	assert.True(t, snap.TakenAt.Equal(ts))
	require.Len(t, snap.Scientists, 1)
	require.Len(t, snap.Planets, 1)
	require.Len(t, snap.Missions, 1)
	assert.Equal(t, "Mars Survey", snap.Missions[0].Name)

	original, err := Capture(ctx, store, ts)
	require.NoError(t, err)
	assert.Equal(t, original.Dataset, snap.Dataset)

	_, err = mgr.Create(ctx)
	assert.True(t, errors.Is(err, blob.ErrExists), "same timestamp must not overwrite: %v", err)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	blobs := blobmemory.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := NewManager(seededStore(t), blobs, fixedClock(base.Add(time.Duration(i)*time.Hour))).Create(ctx)
		require.NoError(t, err)
	}
	_, err := blobs.Put(ctx, "other/file.txt", strings.NewReader("x"), blob.PutOptions{})
	require.NoError(t, err)

	items, err := NewManager(memory.NewStore(nil), blobs, nil).List(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, Key(base.Add(2*time.Hour)), items[0].Key)
	assert.Equal(t, Key(base), items[2].Key)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	blobs := blobmemory.New()
	mgr := NewManager(memory.NewStore(nil), blobs, nil)

	_, err := mgr.Load(ctx, "backups/missing.json")
	assert.True(t, errors.Is(err, blob.ErrNotFound))

	_, err = blobs.Put(ctx, "backups/garbage.json", strings.NewReader("{"), blob.PutOptions{})
	require.NoError(t, err)
	_, err = mgr.Load(ctx, "backups/garbage.json")
	assert.ErrorContains(t, err, "decode snapshot")

	_, err = blobs.Put(ctx, "backups/future.json", strings.NewReader(`{"version":9}`), blob.PutOptions{})
	require.NoError(t, err)
	_, err = mgr.Load(ctx, "backups/future.json")
	assert.ErrorContains(t, err, "unsupported version")
}

func TestRestoreReplacesRecords(t *testing.T) {
	ctx := context.Background()
	source := seededStore(t)
	blobs := blobmemory.New()
	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	info, err := NewManager(source, blobs, fixedClock(ts)).Create(ctx)
	require.NoError(t, err)
	want, err := Capture(ctx, source, ts)
	require.NoError(t, err)

	target := memory.NewStore(nil)
	_, err = target.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, name := range []string{"Edwin Hubble", "Henrietta Leavitt"} {
			if _, err := tx.CreateScientist(domain.Scientist{Name: name, FieldOfStudy: "Cosmology"}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	snap, err := NewManager(target, blobs, nil).Restore(ctx, info.Key)
	require.NoError(t, err)
	assert.Equal(t, want.Dataset, snap.Dataset)

	got, err := Capture(ctx, target, ts)
	require.NoError(t, err)
	assert.Equal(t, want.Dataset, got.Dataset)
}

func TestRestoreRejectedSnapshotLeavesStore(t *testing.T) {
	ctx := context.Background()
	blobs := blobmemory.New()
	doc := `{"version":1,"scientists":[{"id":1,"name":"A","field_of_study":"B"}],"planets":[],` +
		`"missions":[{"id":1,"name":"Lost","scientist_id":1,"planet_id":7}]}`
	_, err := blobs.Put(ctx, "backups/dangling.json", strings.NewReader(doc), blob.PutOptions{})
	require.NoError(t, err)

	store := seededStore(t)
	before, err := Capture(ctx, store, time.Time{})
	require.NoError(t, err)

	_, err = NewManager(store, blobs, nil).Restore(ctx, "backups/dangling.json")
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
	after, err := Capture(ctx, store, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, before.Dataset, after.Dataset)

	_, err = NewManager(store, blobs, nil).Restore(ctx, "backups/missing.json")
	assert.True(t, errors.Is(err, blob.ErrNotFound))
}

func TestPruneKeepsNewest(t *testing.T) {
	ctx := context.Background()
	blobs := blobmemory.New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := NewManager(seededStore(t), blobs, fixedClock(base.Add(time.Duration(i)*time.Hour))).Create(ctx)
		require.NoError(t, err)
	}
	_, err := blobs.Put(ctx, "other/file.txt", strings.NewReader("x"), blob.PutOptions{})
	require.NoError(t, err)
	mgr := NewManager(memory.NewStore(nil), blobs, nil)

	removed, err := mgr.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{Key(base.Add(time.Hour)), Key(base)}, removed)

	items, err := mgr.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, Key(base.Add(3*time.Hour)), items[0].Key)
	_, _, err = blobs.Get(ctx, "other/file.txt")
	require.NoError(t, err, "keys outside the backup prefix are left alone")

	removed, err = mgr.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, err = mgr.Prune(ctx, 0)
	assert.ErrorContains(t, err, "keep must be at least 1")
}

type failingViewStore struct{ domain.PersistentStore }

func (failingViewStore) View(context.Context, func(domain.TransactionView) error) error {
	return errors.New("database is locked")
}

func TestCreateCaptureFailure(t *testing.T) {
	_, err := NewManager(failingViewStore{}, blobmemory.New(), nil).Create(context.Background())
	assert.ErrorContains(t, err, "capture snapshot: database is locked")
}
