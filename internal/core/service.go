// Package core hosts the astrocore service layer: transactional operations over
// a domain.PersistentStore, wrapped with tracing, metrics and audit hooks.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"astrocore/pkg/domain"
)

const (
	opListScientists  = "list_scientists"
	opCreateScientist = "create_scientist"
	opGetScientist    = "get_scientist"
	opUpdateScientist = "update_scientist"
	opDeleteScientist = "delete_scientist"
	opListPlanets     = "list_planets"
	opCreateMission   = "create_mission"
)

// OpSeed names the catalogue seeding batch in metrics, traces and audit entries.
const OpSeed = "seed"

// Service exposes the record store operations.
type Service struct {
	store   domain.PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit sink for mutating operations.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// observe runs fn under a span and records metrics, audit and logs for op.
// fn returns the id of the affected entity when there is one.
func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) (int64, error)) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	id, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	if err != nil {
		s.recordAuditError(ctx, op, id, duration, err)
		if isClientError(err) {
			s.logger.Debug("service operation rejected", "operation", op, "error", err)
		} else {
			s.logger.Error("service operation failed", "operation", op, "error", err)
		}
		return err
	}
	s.recordAuditSuccess(ctx, op, id, duration)
	s.logger.Debug("service operation completed", "operation", op, "duration", duration)
	return nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op string, id int64, duration time.Duration) {
	s.recordAudit(ctx, op, id, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op string, id int64, duration time.Duration, err error) {
	s.recordAudit(ctx, op, id, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op string, id int64, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  id,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func isClientError(err error) bool {
	return errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound)
}

// ListScientists returns every scientist ordered by id.
func (s *Service) ListScientists(ctx context.Context) ([]domain.Scientist, error) {
	var out []domain.Scientist
	err := s.observe(ctx, opListScientists, func(ctx context.Context) (int64, error) {
		return 0, s.store.View(ctx, func(v domain.TransactionView) error {
			var err error
			out, err = v.ListScientists()
			return err
		})
	})
	return out, err
}

// CreateScientist persists a new scientist. Blank fields are rejected by the
// required_fields rule before commit.
func (s *Service) CreateScientist(ctx context.Context, sc domain.Scientist) (domain.Scientist, domain.Result, error) {
	var (
		created domain.Scientist
		res     domain.Result
	)
	err := s.observe(ctx, opCreateScientist, func(ctx context.Context) (int64, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateScientist(sc)
			return err
		})
		return created.ID, err
	})
	if err != nil {
		return domain.Scientist{}, res, err
	}
	return created, res, nil
}

// GetScientist returns the scientist with its missions resolved against their planets.
func (s *Service) GetScientist(ctx context.Context, id int64) (domain.ScientistDetail, error) {
	var detail domain.ScientistDetail
	err := s.observe(ctx, opGetScientist, func(ctx context.Context) (int64, error) {
		return id, s.store.View(ctx, func(v domain.TransactionView) error {
			var err error
			detail, err = loadScientistDetail(v, id)
			return err
		})
	})
	return detail, err
}

// UpdateScientist applies the fields present in patch. An empty patch is a
// successful no-op.
func (s *Service) UpdateScientist(ctx context.Context, id int64, patch domain.ScientistPatch) (domain.ScientistDetail, domain.Result, error) {
	var (
		detail domain.ScientistDetail
		res    domain.Result
	)
	err := s.observe(ctx, opUpdateScientist, func(ctx context.Context) (int64, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if !patch.Empty() {
				if _, err := tx.UpdateScientist(id, func(sc *domain.Scientist) error {
					patch.Apply(sc)
					return nil
				}); err != nil {
					return err
				}
			}
			var err error
			detail, err = loadScientistDetail(tx, id)
			return err
		})
		return id, err
	})
	if err != nil {
		return domain.ScientistDetail{}, res, err
	}
	return detail, res, nil
}

// DeleteScientist removes the scientist and every mission it owns.
func (s *Service) DeleteScientist(ctx context.Context, id int64) (domain.Result, error) {
	var res domain.Result
	err := s.observe(ctx, opDeleteScientist, func(ctx context.Context) (int64, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteScientist(id)
		})
		return id, err
	})
	return res, err
}

// ListPlanets returns every planet ordered by id.
func (s *Service) ListPlanets(ctx context.Context) ([]domain.Planet, error) {
	var out []domain.Planet
	err := s.observe(ctx, opListPlanets, func(ctx context.Context) (int64, error) {
		return 0, s.store.View(ctx, func(v domain.TransactionView) error {
			var err error
			out, err = v.ListPlanets()
			return err
		})
	})
	return out, err
}

// RunBatch applies fn as one transaction observed under op. Either every
// write in fn commits or none does.
func (s *Service) RunBatch(ctx context.Context, op string, fn func(domain.Transaction) error) (domain.Result, error) {
	var res domain.Result
	err := s.observe(ctx, op, func(ctx context.Context) (int64, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, fn)
		return 0, err
	})
	return res, err
}

// CreateMission persists a mission and returns it with both parents resolved.
func (s *Service) CreateMission(ctx context.Context, m domain.Mission) (domain.MissionDetail, domain.Result, error) {
	var (
		detail domain.MissionDetail
		res    domain.Result
	)
	err := s.observe(ctx, opCreateMission, func(ctx context.Context) (int64, error) {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			created, err := tx.CreateMission(m)
			if err != nil {
				return err
			}
			detail, err = resolveMission(tx, created)
			return err
		})
		return detail.ID, err
	})
	if err != nil {
		return domain.MissionDetail{}, res, err
	}
	return detail, res, nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

func loadScientistDetail(v domain.TransactionView, id int64) (domain.ScientistDetail, error) {
	sc, err := v.FindScientist(id)
	if err != nil {
		return domain.ScientistDetail{}, err
	}
	missions, err := v.ListMissionsByScientist(id)
	if err != nil {
		return domain.ScientistDetail{}, err
	}
	detail := domain.ScientistDetail{Scientist: sc, Missions: make([]domain.MissionDetail, 0, len(missions))}
	for _, m := range missions {
		p, err := v.FindPlanet(m.PlanetID)
		if err != nil {
			return domain.ScientistDetail{}, fmt.Errorf("resolve mission %d: %w", m.ID, err)
		}
		detail.Missions = append(detail.Missions, domain.MissionDetail{Mission: m, Scientist: sc, Planet: p})
	}
	return detail, nil
}

func resolveMission(v domain.TransactionView, m domain.Mission) (domain.MissionDetail, error) {
	sc, err := v.FindScientist(m.ScientistID)
	if err != nil {
		return domain.MissionDetail{}, fmt.Errorf("resolve mission %d: %w", m.ID, err)
	}
	p, err := v.FindPlanet(m.PlanetID)
	if err != nil {
		return domain.MissionDetail{}, fmt.Errorf("resolve mission %d: %w", m.ID, err)
	}
	return domain.MissionDetail{Mission: m, Scientist: sc, Planet: p}, nil
}
