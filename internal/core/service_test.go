package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"astrocore/internal/infra/persistence/memory"
	"astrocore/pkg/domain"
)

func newTestService(opts ...Option) *Service {
	return NewService(memory.NewStore(nil), opts...)
}

func seedService(t *testing.T, svc *Service) (domain.Scientist, domain.Planet) {
	t.Helper()
	ctx := context.Background()
	sc, _, err := svc.CreateScientist(ctx, domain.Scientist{Name: "Vera Rubin", FieldOfStudy: "Astronomy"})
	if err != nil {
		t.Fatalf("create scientist: %v", err)
	}
	var p domain.Planet
	_, err = svc.RunBatch(ctx, OpSeed, func(tx domain.Transaction) error {
		var err error
		p, err = tx.CreatePlanet(domain.Planet{Name: "Mars", DistanceFromEarth: 140000000, NearestStar: "Sun"})
		return err
	})
	if err != nil {
		t.Fatalf("create planet: %v", err)
	}
	return sc, p
}

func TestCreateScientistRejectsBlankFields(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for _, in := range []domain.Scientist{
		{Name: "", FieldOfStudy: "Physics"},
		{Name: "Chien-Shiung Wu", FieldOfStudy: "   "},
	} {
		_, res, err := svc.CreateScientist(ctx, in)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
		if !res.HasBlocking() {
			t.Fatalf("expected blocking result for %+v", in)
		}
	}
	list, err := svc.ListScientists(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no scientists persisted, got %d", len(list))
	}
}

func TestGetScientistResolvesMissions(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	sc, p := seedService(t, svc)

	mission, _, err := svc.CreateMission(ctx, domain.Mission{Name: "Mars Survey", ScientistID: sc.ID, PlanetID: p.ID})
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	if mission.Scientist != sc || mission.Planet != p {
		t.Fatalf("mission parents not resolved: %+v", mission)
	}

	detail, err := svc.GetScientist(ctx, sc.ID)
	if err != nil {
		t.Fatalf("get scientist: %v", err)
	}
	if len(detail.Missions) != 1 || detail.Missions[0].Planet != p || detail.Missions[0].Name != "Mars Survey" {
		t.Fatalf("unexpected missions %+v", detail.Missions)
	}

	if _, err := svc.GetScientist(ctx, 999999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetScientistWithoutMissionsHasEmptySlice(t *testing.T) {
	svc := newTestService()
	sc, _ := seedService(t, svc)
	detail, err := svc.GetScientist(context.Background(), sc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Missions == nil || len(detail.Missions) != 0 {
		t.Fatalf("expected empty non-nil missions, got %#v", detail.Missions)
	}
}

func TestUpdateScientistPartial(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	sc, _ := seedService(t, svc)

	var patch domain.ScientistPatch
	patch.SetFieldOfStudy("Galaxy rotation")
	updated, _, err := svc.UpdateScientist(ctx, sc.ID, patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != sc.Name || updated.FieldOfStudy != "Galaxy rotation" {
		t.Fatalf("unexpected update result %+v", updated.Scientist)
	}

	var blank domain.ScientistPatch
	blank.SetName(" ")
	if _, _, err := svc.UpdateScientist(ctx, sc.ID, blank); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	current, err := svc.GetScientist(ctx, sc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.Name != sc.Name || current.FieldOfStudy != "Galaxy rotation" {
		t.Fatalf("failed update leaked a write: %+v", current.Scientist)
	}

	unchanged, _, err := svc.UpdateScientist(ctx, sc.ID, domain.ScientistPatch{})
	if err != nil {
		t.Fatalf("empty patch: %v", err)
	}
	if unchanged.Scientist != current.Scientist {
		t.Fatalf("empty patch changed record: %+v", unchanged.Scientist)
	}

	if _, _, err := svc.UpdateScientist(ctx, 424242, patch); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := svc.UpdateScientist(ctx, 424242, domain.ScientistPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for empty patch on unknown id, got %v", err)
	}
}

func TestDeleteScientistCascades(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	sc, p := seedService(t, svc)
	for _, name := range []string{"A", "B", "C"} {
		if _, _, err := svc.CreateMission(ctx, domain.Mission{Name: name, ScientistID: sc.ID, PlanetID: p.ID}); err != nil {
			t.Fatalf("create mission: %v", err)
		}
	}
	if _, err := svc.DeleteScientist(ctx, sc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err := svc.Store().View(ctx, func(v domain.TransactionView) error {
		missions, err := v.ListMissions()
		if err != nil {
			return err
		}
		if len(missions) != 0 {
			t.Fatalf("expected missions cascaded, got %d", len(missions))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if _, err := svc.DeleteScientist(ctx, sc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestCreateMissionValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	sc, p := seedService(t, svc)
	cases := []domain.Mission{
		{Name: "Bad scientist", ScientistID: sc.ID + 10, PlanetID: p.ID},
		{Name: "Bad planet", ScientistID: sc.ID, PlanetID: p.ID + 10},
		{Name: "", ScientistID: sc.ID, PlanetID: p.ID},
	}
	for _, m := range cases {
		if _, _, err := svc.CreateMission(ctx, m); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", m, err)
		}
	}
	detail, err := svc.GetScientist(ctx, sc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(detail.Missions) != 0 {
		t.Fatalf("expected no missions persisted")
	}
}

func TestListPlanetsAndDeletePlanet(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, p := seedService(t, svc)
	planets, err := svc.ListPlanets(ctx)
	if err != nil || len(planets) != 1 || planets[0] != p {
		t.Fatalf("list planets: %v %+v", err, planets)
	}
	if _, err := svc.RunBatch(ctx, OpSeed, func(tx domain.Transaction) error { return tx.DeletePlanet(p.ID) }); err != nil {
		t.Fatalf("delete planet: %v", err)
	}
	planets, _ = svc.ListPlanets(ctx)
	if len(planets) != 0 {
		t.Fatalf("expected no planets, got %+v", planets)
	}
}

func TestRunBatchIsAllOrNothing(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	boom := errors.New("boom")
	_, err := svc.RunBatch(ctx, OpSeed, func(tx domain.Transaction) error {
		if _, err := tx.CreatePlanet(domain.Planet{Name: "Venus"}); err != nil {
			return err
		}
		if _, err := tx.CreateScientist(domain.Scientist{Name: "Carl Sagan", FieldOfStudy: "Planetary science"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected batch error, got %v", err)
	}
	planets, _ := svc.ListPlanets(ctx)
	scientists, _ := svc.ListScientists(ctx)
	if len(planets) != 0 || len(scientists) != 0 {
		t.Fatalf("failed batch must not persist anything: %+v %+v", planets, scientists)
	}

	res, err := svc.RunBatch(ctx, OpSeed, func(tx domain.Transaction) error {
		_, err := tx.CreateScientist(domain.Scientist{Name: " ", FieldOfStudy: "Physics"})
		return err
	})
	if !errors.Is(err, domain.ErrValidation) || !res.HasBlocking() {
		t.Fatalf("expected rules to block the batch, got %v %+v", err, res)
	}
}

type failingPingStore struct {
	*memory.Store
}

func (failingPingStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestPing(t *testing.T) {
	if err := newTestService().Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	svc := NewService(failingPingStore{Store: memory.NewStore(nil)})
	if err := svc.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error")
	}
}

func TestOptionsIgnoreNil(t *testing.T) {
	svc := NewService(memory.NewStore(nil), WithLogger(nil), WithMetricsRecorder(nil), WithTracer(nil), WithAuditRecorder(nil), WithClock(nil))
	if svc.logger == nil || svc.metrics == nil || svc.tracer == nil || svc.audit == nil || svc.clock == nil {
		t.Fatalf("nil options must keep defaults")
	}
	if _, err := svc.ListScientists(context.Background()); err != nil {
		t.Fatalf("list with defaults: %v", err)
	}
}

func TestClockFunc(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !ClockFunc(func() time.Time { return fixed }).Now().Equal(fixed) {
		t.Fatalf("clock func mismatch")
	}
}
