// Package service orchestrates user lifecycle across the IdP (as a user
// principal) and the local store, via the dual-store coordinator.
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
	"concord/internal/saga"
	tenantmodels "concord/internal/tenant/models"
	"concord/internal/user/models"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/sentinel"
)

// IdPGateway is the slice of the admin API the user saga needs.
// Implemented by *idp.AdminClient.
type IdPGateway interface {
	CreateUser(ctx context.Context, user idp.UserRepresentation) error
	FindUserByUsername(ctx context.Context, username string) (*idp.UserRepresentation, error)
	UpdateUser(ctx context.Context, userID string, user idp.UserRepresentation) error
	DeleteUser(ctx context.Context, userID string) error
	DeleteUserByUsername(ctx context.Context, username string) error
	SetUserPassword(ctx context.Context, userID, password string, temporary bool) error
	AddUserToGroup(ctx context.Context, userID, groupID string) error
	AssignRealmRole(ctx context.Context, userID string, role idp.RoleRepresentation) error
	FindRoleByName(ctx context.Context, name string) (*idp.RoleRepresentation, error)
	ListUserRealmRoles(ctx context.Context, userID string) ([]idp.RoleRepresentation, error)
}

// UserStore persists the local user records.
type UserStore interface {
	Insert(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, tenantID *uuid.UUID) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TenantLookup resolves the tenant a new user should be attached to.
type TenantLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*tenantmodels.Tenant, error)
}

// Service manages users.
type Service struct {
	gateway        IdPGateway
	users          UserStore
	tenants        TenantLookup
	coord          *saga.Coordinator[*models.CreateUserInput, *models.UpdateUserChanges, *models.User]
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

// New creates the user service. tokens must be the process-wide shared
// token manager.
func New(gateway IdPGateway, users UserStore, tenants TenantLookup, tokens saga.TokenSource, opts ...Option) *Service {
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
		users:          users,
		tenants:        tenants,
		logger:         cfg.logger,
		metrics:        cfg.metrics,
		auditPublisher: cfg.auditPublisher,
	}
	ops := &userOps{gateway: gateway, users: users, tenants: tenants, now: cfg.now}
	s.coord = saga.New[*models.CreateUserInput, *models.UpdateUserChanges, *models.User](
		ops, tokens,
		saga.WithLogger(cfg.logger),
		saga.WithMetrics(cfg.metrics),
	)
	return s
}

// CreateUser creates the IdP user first, applies credential, membership and
// role sub-steps, then inserts the local record. A failed sub-step deletes
// the IdP user again before the error surfaces.
func (s *Service) CreateUser(ctx context.Context, in *models.CreateUserInput) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.coord.Create(ctx, in)
	if err != nil {
		s.emit(ctx, audit.ActionCreated, "", in.Username, audit.OutcomeFailure)
		return nil, translateErr(err)
	}

	user.Roles = append([]string{}, in.Roles...)
	s.emit(ctx, audit.ActionCreated, user.ID.String(), user.Username, audit.OutcomeSuccess)
	return user, nil
}

// GetUser returns the local record enriched with live realm roles.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, translateErr(err)
	}
	user.Roles = s.realmRoles(ctx, user)
	return user, nil
}

// ListUsers returns local records, optionally scoped to a tenant, each
// enriched with live realm roles. Enrichment failures degrade to an empty
// role list without failing the listing.
func (s *Service) ListUsers(ctx context.Context, tenantID *uuid.UUID) ([]*models.User, error) {
	users, err := s.users.List(ctx, tenantID)
	if err != nil {
		return nil, translateErr(err)
	}
	for _, user := range users {
		user.Roles = s.realmRoles(ctx, user)
	}
	return users, nil
}

// UpdateUser applies a partial update, external store first.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, changes *models.UpdateUserChanges) (*models.User, error) {
	if changes.Empty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no changes supplied")
	}
	if err := changes.Validate(); err != nil {
		return nil, err
	}

	user, err := s.coord.Update(ctx, id, changes)
	if err != nil {
		s.emit(ctx, audit.ActionUpdated, id.String(), "", audit.OutcomeFailure)
		return nil, translateErr(err)
	}

	user.Roles = s.realmRoles(ctx, user)
	s.emit(ctx, audit.ActionUpdated, user.ID.String(), user.Username, audit.OutcomeSuccess)
	return user, nil
}

// DeleteUser removes the IdP user first, then the local record.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.coord.Delete(ctx, id); err != nil {
		s.emit(ctx, audit.ActionDeleted, id.String(), "", audit.OutcomeFailure)
		return translateErr(err)
	}
	s.emit(ctx, audit.ActionDeleted, id.String(), "", audit.OutcomeSuccess)
	return nil
}

// realmRoles reads the live role mappings, degrading to an empty list when
// the IdP cannot answer.
func (s *Service) realmRoles(ctx context.Context, user *models.User) []string {
	mappings, err := s.gateway.ListUserRealmRoles(ctx, user.ExternalID)
	if err != nil {
		s.metrics.IncEnrichmentDegraded("user")
		s.logger.WarnContext(ctx, "role enrichment failed, defaulting to empty list",
			"user_id", user.ID,
			"error", err,
		)
		return []string{}
	}
	roles := make([]string, 0, len(mappings))
	for _, m := range mappings {
		roles = append(roles, m.Name)
	}
	return roles
}

func (s *Service) emit(ctx context.Context, action audit.Action, entityID, name, outcome string) {
	event := audit.Event{
		Action:   action,
		Kind:     "user",
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
		return dErrors.Wrap(err, dErrors.CodeConflict, "username must be unique")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "referenced record not found")
	case isAuthFailure(err):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider authentication failed")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "user operation failed")
	}
}

func isAuthFailure(err error) bool {
	var authErr *idp.AuthError
	return errors.As(err, &authErr)
}
