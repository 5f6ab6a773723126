// Package saga coordinates writes that must land in two systems of record:
// the identity provider and the local relational store. No transaction spans
// the two, so the coordinator enforces a fixed ordering (external first) and
// performs a single best-effort compensation when the second write fails.
package saga

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"concord/internal/platform/metrics"
)

// TokenSource refreshes the shared IdP credential before external calls.
type TokenSource interface {
	EnsureValid(ctx context.Context) error
}

// EntityOps supplies the entity-specific mapping functions the protocol is
// parameterized by. I is the create input, C the update changeset, R the
// committed local record.
//
// PrepareExternal runs after the external principal exists and its ID is
// resolved, but before the local insert. Entity side effects (credentials,
// memberships, role mappings) belong there: a failure is treated as part of
// external creation and triggers the same compensation as a local insert
// failure.
type EntityOps[I any, C any, R any] interface {
	Kind() string

	CreateExternal(ctx context.Context, in I) error
	ResolveExternalID(ctx context.Context, in I) (string, error)
	PrepareExternal(ctx context.Context, in I, externalID string) error
	// CompensateCreate deletes the external principal. externalID is empty
	// when ID resolution itself failed; implementations then delete by name.
	CompensateCreate(ctx context.Context, in I, externalID string) error
	InsertLocal(ctx context.Context, in I, externalID string) (R, error)

	LoadLocal(ctx context.Context, id uuid.UUID) (R, error)
	UpdateExternal(ctx context.Context, current R, changes C) error
	UpdateLocal(ctx context.Context, id uuid.UUID, changes C) (R, error)
	DeleteExternal(ctx context.Context, current R) error
	DeleteLocal(ctx context.Context, id uuid.UUID) error
}

// Coordinator drives the create/update/delete protocol for one entity kind.
// It holds no per-entity state; concurrent invocations are independent.
type Coordinator[I any, C any, R any] struct {
	ops     EntityOps[I, C, R]
	tokens  TokenSource
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type config struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Coordinator.
type Option func(*config)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTracer overrides the tracer (for testing).
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		c.tracer = t
	}
}

// New creates a coordinator for the given entity ops. The token source must
// be the process-wide shared instance so every write path refreshes the same
// credential.
func New[I any, C any, R any](ops EntityOps[I, C, R], tokens TokenSource, opts ...Option) *Coordinator[I, C, R] {
	cfg := &config{
		logger: slog.Default(),
		tracer: otel.Tracer("concord/saga"),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Coordinator[I, C, R]{
		ops:     ops,
		tokens:  tokens,
		logger:  cfg.logger,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
	}
}

// Create runs the external-then-local create sequence. The external
// principal is created first because only the IdP assigns the canonical ID
// the local row must reference. A local insert failure triggers exactly one
// compensating external delete; the insert failure is what the caller sees.
func (c *Coordinator[I, C, R]) Create(ctx context.Context, in I) (R, error) {
	var zero R
	kind := c.ops.Kind()

	ctx, span := c.tracer.Start(ctx, "saga.create", trace.WithAttributes(attribute.String("entity.kind", kind)))
	var err error
	defer func() { endSpan(span, err) }()

	if err = c.tokens.EnsureValid(ctx); err != nil {
		return zero, err
	}

	if cerr := c.ops.CreateExternal(ctx, in); cerr != nil {
		// Nothing exists yet; nothing to compensate.
		err = &Error{Stage: StageExternalCreate, Kind: kind, Err: cerr}
		return zero, err
	}

	externalID, rerr := c.ops.ResolveExternalID(ctx, in)
	if rerr != nil {
		c.compensate(ctx, in, "")
		err = &Error{Stage: StageResolveID, Kind: kind, Err: rerr}
		return zero, err
	}

	if perr := c.ops.PrepareExternal(ctx, in, externalID); perr != nil {
		c.compensate(ctx, in, externalID)
		err = &Error{Stage: StageExternalCreate, Kind: kind, Err: perr}
		return zero, err
	}

	record, ierr := c.ops.InsertLocal(ctx, in, externalID)
	if ierr != nil {
		c.compensate(ctx, in, externalID)
		err = &Error{Stage: StageLocalInsert, Kind: kind, Err: ierr}
		return zero, err
	}

	c.metrics.IncSagaCompleted(kind, "create")
	return record, nil
}

// Update applies changes externally first, then locally. There is no
// compensation: a local failure after a successful external update leaves
// the stores diverged and surfaces as a StageLocalUpdate error. This is a
// known gap, kept because strengthening it would change observable failure
// behavior.
func (c *Coordinator[I, C, R]) Update(ctx context.Context, id uuid.UUID, changes C) (R, error) {
	var zero R
	kind := c.ops.Kind()

	ctx, span := c.tracer.Start(ctx, "saga.update", trace.WithAttributes(
		attribute.String("entity.kind", kind),
		attribute.String("entity.id", id.String()),
	))
	var err error
	defer func() { endSpan(span, err) }()

	current, lerr := c.ops.LoadLocal(ctx, id)
	if lerr != nil {
		err = lerr
		return zero, err
	}

	if err = c.tokens.EnsureValid(ctx); err != nil {
		return zero, err
	}

	if uerr := c.ops.UpdateExternal(ctx, current, changes); uerr != nil {
		err = &Error{Stage: StageExternalUpdate, Kind: kind, Err: uerr}
		return zero, err
	}

	record, uerr := c.ops.UpdateLocal(ctx, id, changes)
	if uerr != nil {
		c.logger.WarnContext(ctx, "local update failed after external update, stores diverged",
			"kind", kind,
			"id", id.String(),
		)
		err = &Error{Stage: StageLocalUpdate, Kind: kind, Err: uerr}
		return zero, err
	}

	c.metrics.IncSagaCompleted(kind, "update")
	return record, nil
}

// Delete removes the external principal first, then the local record. A
// failed local delete leaves a dangling row that still points at a deleted
// principal, which is discoverable and cleanable; the reverse order would
// leave an unreachable orphan in the IdP.
func (c *Coordinator[I, C, R]) Delete(ctx context.Context, id uuid.UUID) error {
	kind := c.ops.Kind()

	ctx, span := c.tracer.Start(ctx, "saga.delete", trace.WithAttributes(
		attribute.String("entity.kind", kind),
		attribute.String("entity.id", id.String()),
	))
	var err error
	defer func() { endSpan(span, err) }()

	current, lerr := c.ops.LoadLocal(ctx, id)
	if lerr != nil {
		err = lerr
		return err
	}

	if err = c.tokens.EnsureValid(ctx); err != nil {
		return err
	}

	if derr := c.ops.DeleteExternal(ctx, current); derr != nil {
		err = &Error{Stage: StageExternalDelete, Kind: kind, Err: derr}
		return err
	}

	if derr := c.ops.DeleteLocal(ctx, id); derr != nil {
		err = &Error{Stage: StageLocalDelete, Kind: kind, Err: derr}
		return err
	}

	c.metrics.IncSagaCompleted(kind, "delete")
	return nil
}

// compensate attempts exactly one external delete after a later create step
// failed. The outcome is logged and counted; it never masks the original
// failure.
func (c *Coordinator[I, C, R]) compensate(ctx context.Context, in I, externalID string) {
	kind := c.ops.Kind()
	c.metrics.IncSagaCompensation(kind)

	if err := c.ops.CompensateCreate(ctx, in, externalID); err != nil {
		compErr := &CompensationError{Kind: kind, Ref: externalID, Err: err}
		c.metrics.IncSagaOrphan(kind)
		c.logger.ErrorContext(ctx, "external rollback failed, orphaned principal requires IdP-side cleanup",
			"kind", kind,
			"external_id", externalID,
			"error", compErr,
		)
		return
	}

	c.logger.WarnContext(ctx, "external principal rolled back after failed create",
		"kind", kind,
		"external_id", externalID,
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
