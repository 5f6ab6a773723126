// Package service orchestrates realm-role lifecycle across the IdP and the
// local store, via the dual-store coordinator.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"concord/internal/audit"
	"concord/internal/idp"
	"concord/internal/platform/metrics"
	"concord/internal/role/models"
	"concord/internal/saga"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/sentinel"
)

// IdPGateway is the slice of the admin API the role saga needs. Realm roles
// are keyed by name on the IdP side, so update and delete address the role
// by its name rather than its ID.
// Implemented by *idp.AdminClient.
type IdPGateway interface {
	CreateRealmRole(ctx context.Context, role idp.RoleRepresentation) error
	FindRoleByName(ctx context.Context, name string) (*idp.RoleRepresentation, error)
	UpdateRole(ctx context.Context, name string, role idp.RoleRepresentation) error
	DeleteRoleByName(ctx context.Context, name string) error
}

// RoleStore persists the local role records.
type RoleStore interface {
	Insert(ctx context.Context, role *models.Role) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]*models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service manages realm roles.
type Service struct {
	gateway        IdPGateway
	roles          RoleStore
	coord          *saga.Coordinator[*models.CreateRoleInput, *models.UpdateRoleChanges, *models.Role]
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher audit.Publisher
}

type serviceConfig struct {
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher audit.Publisher
	now            func() time.Time
}

// Option configures the Service.
type Option func(*serviceConfig)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

// WithAuditPublisher sets the audit sink.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(c *serviceConfig) { c.auditPublisher = p }
}

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *serviceConfig) { c.now = now }
}

// New creates the role service. tokens must be the process-wide shared token
// manager.
func New(gateway IdPGateway, roles RoleStore, tokens saga.TokenSource, opts ...Option) *Service {
	cfg := &serviceConfig{
		logger:         slog.Default(),
		auditPublisher: audit.Nop{},
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Service{
		gateway:        gateway,
		roles:          roles,
		logger:         cfg.logger,
		metrics:        cfg.metrics,
		auditPublisher: cfg.auditPublisher,
	}
	ops := &roleOps{gateway: gateway, roles: roles, now: cfg.now}
	s.coord = saga.New[*models.CreateRoleInput, *models.UpdateRoleChanges, *models.Role](
		ops, tokens,
		saga.WithLogger(cfg.logger),
		saga.WithMetrics(cfg.metrics),
	)
	return s
}

// CreateRole creates the IdP realm role first, then the local record.
func (s *Service) CreateRole(ctx context.Context, in *models.CreateRoleInput) (*models.Role, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	role, err := s.coord.Create(ctx, in)
	if err != nil {
		s.emit(ctx, audit.ActionCreated, "", in.Name, audit.OutcomeFailure)
		return nil, translateErr(err)
	}

	// A freshly created realm role is never composite.
	role.Composite = false
	s.emit(ctx, audit.ActionCreated, role.ID.String(), role.Name, audit.OutcomeSuccess)
	return role, nil
}

// GetRole returns the local record enriched with the live composite flag.
func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	role, err := s.roles.FindByID(ctx, id)
	if err != nil {
		return nil, translateErr(err)
	}
	role.Composite = s.compositeFlag(ctx, role)
	return role, nil
}

// ListRoles returns all local records, each enriched with its live
// composite flag. An enrichment failure for one role degrades that role's
// flag to false without failing the listing.
func (s *Service) ListRoles(ctx context.Context) ([]*models.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, translateErr(err)
	}
	for _, role := range roles {
		role.Composite = s.compositeFlag(ctx, role)
	}
	return roles, nil
}

// UpdateRole applies a partial update, external store first.
func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, changes *models.UpdateRoleChanges) (*models.Role, error) {
	if changes.Empty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no changes supplied")
	}

	role, err := s.coord.Update(ctx, id, changes)
	if err != nil {
		s.emit(ctx, audit.ActionUpdated, id.String(), "", audit.OutcomeFailure)
		return nil, translateErr(err)
	}

	role.Composite = s.compositeFlag(ctx, role)
	s.emit(ctx, audit.ActionUpdated, role.ID.String(), role.Name, audit.OutcomeSuccess)
	return role, nil
}

// DeleteRole removes the IdP realm role first, then the local record.
func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	if err := s.coord.Delete(ctx, id); err != nil {
		s.emit(ctx, audit.ActionDeleted, id.String(), "", audit.OutcomeFailure)
		return translateErr(err)
	}
	s.emit(ctx, audit.ActionDeleted, id.String(), "", audit.OutcomeSuccess)
	return nil
}

// compositeFlag reads the live role definition, degrading to false when the
// IdP cannot answer.
func (s *Service) compositeFlag(ctx context.Context, role *models.Role) bool {
	live, err := s.gateway.FindRoleByName(ctx, role.Name)
	if err != nil {
		s.metrics.IncEnrichmentDegraded("role")
		s.logger.WarnContext(ctx, "composite flag enrichment failed, defaulting to false",
			"role_id", role.ID,
			"error", err,
		)
		return false
	}
	return live.Composite
}

func (s *Service) emit(ctx context.Context, action audit.Action, entityID, name, outcome string) {
	event := audit.Event{
		Action:   action,
		Kind:     "role",
		EntityID: entityID,
		Name:     name,
		Outcome:  outcome,
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emission failed", "action", action, "error", err)
	}
}

// translateErr maps gateway and store failures into domain errors exactly
// once.
func translateErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed), idp.IsConflict(err):
		return dErrors.Wrap(err, dErrors.CodeConflict, "role name must be unique")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "role not found")
	case isAuthFailure(err):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider authentication failed")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "role operation failed")
	}
}

func isAuthFailure(err error) bool {
	var authErr *idp.AuthError
	return errors.As(err, &authErr)
}
