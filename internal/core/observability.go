package core

import (
	"context"
	"time"

	"astrocore/pkg/domain"
)

// Logger is the structured logging surface the service depends on.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsRecorder receives the outcome and duration of each service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended once with the operation error (nil on success).
type TraceSpan interface {
	End(err error)
}

// AuditStatus reports whether an audited mutation succeeded.
type AuditStatus string

const (
	// AuditStatusSuccess marks a committed mutation.
	AuditStatusSuccess AuditStatus = "success"
	// AuditStatusError marks a rolled back mutation.
	AuditStatusError AuditStatus = "error"
)

// AuditEntry describes one mutating service call.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  int64
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder persists or forwards audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Clock supplies timestamps for audit entries and durations.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// LogAuditRecorder writes each audit entry as one structured log line.
type LogAuditRecorder struct {
	Logger Logger
}

// Record implements AuditRecorder.
func (r LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	if r.Logger == nil {
		return
	}
	args := []any{
		"operation", entry.Operation,
		"entity", string(entry.Entity),
		"action", string(entry.Action),
		"entity_id", entry.EntityID,
		"status", string(entry.Status),
		"duration", entry.Duration,
	}
	if entry.Error != "" {
		args = append(args, "error", entry.Error)
	}
	r.Logger.Info("audit", args...)
}

type operationMetadata struct {
	entity domain.EntityType
	action domain.Action
}

// auditedOperations lists the mutating operations that produce audit entries.
var auditedOperations = map[string]operationMetadata{
	opCreateScientist: {entity: domain.EntityScientist, action: domain.ActionCreate},
	opUpdateScientist: {entity: domain.EntityScientist, action: domain.ActionUpdate},
	opDeleteScientist: {entity: domain.EntityScientist, action: domain.ActionDelete},
	opCreateMission:   {entity: domain.EntityMission, action: domain.ActionCreate},
	OpSeed:            {action: domain.ActionCreate},
}
