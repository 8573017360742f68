// Package core implements the creature registry transitions (create, breed)
// and read-only queries on top of a domain.PersistentStore.
package core

import (
	"context"
	"errors"
	"time"

	"kittycore/pkg/domain"
)

// Operation names reported to the logger, audit trail, metrics and tracer.
const (
	OperationCreate = "create_creature"
	OperationBreed  = "breed_creature"
)

// Service runs registry transitions against an explicit store handle.
type Service struct {
	store      domain.PersistentStore
	randomness domain.RandomnessSource
	clock      Clock
	logger     Logger
	audit      AuditRecorder
	metrics    MetricsRecorder
	tracer     Tracer
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
}

// WithClock overrides the clock used for audit timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// NewService constructs a service backed by the supplied store and randomness source.
func NewService(store domain.PersistentStore, randomness domain.RandomnessSource, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		store:      store,
		randomness: randomness,
		clock:      cfg.clock,
		logger:     cfg.logger,
		audit:      cfg.audit,
		metrics:    cfg.metrics,
		tracer:     cfg.tracer,
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// run wraps a transition with tracing, metrics, audit and logging.
func (s *Service) run(ctx context.Context, op string, caller domain.Identity, fn func(context.Context) (domain.EntityID, error)) (domain.EntityID, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	id, err := fn(ctx)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation: op,
		Caller:    caller,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		if isRejection(err) {
			s.logger.Warn("transition rejected", "operation", op, "caller", caller, "error", err)
		} else {
			s.logger.Error("transition failed", "operation", op, "caller", caller, "error", err)
		}
	} else {
		entry.CreatureID = &id
		s.logger.Debug("transition committed", "operation", op, "caller", caller, "creature_id", id)
		s.observeTotal(ctx)
	}
	s.audit.Record(ctx, entry)
	return id, err
}

func (s *Service) observeTotal(ctx context.Context) {
	observer, ok := s.metrics.(TotalObserver)
	if !ok {
		return
	}
	if total, err := s.TotalCount(ctx); err == nil {
		observer.ObserveTotal(total)
	}
}

// isRejection reports whether err is a domain refusal rather than an infrastructure fault.
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrCountOverflow)
}
