// Package service orchestrates tenant lifecycle across the IdP (as a group)
// and the local store, via the dual-store coordinator.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks IdPGateway

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
	"concord/internal/tenant/models"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/sentinel"
)

// IdPGateway is the slice of the admin API the tenant saga needs.
// Implemented by *idp.AdminClient.
type IdPGateway interface {
	CreateGroup(ctx context.Context, group idp.GroupRepresentation) error
	FindGroupByName(ctx context.Context, name string) (*idp.GroupRepresentation, error)
	UpdateGroup(ctx context.Context, groupID string, group idp.GroupRepresentation) error
	DeleteGroup(ctx context.Context, groupID string) error
	DeleteGroupByName(ctx context.Context, name string) error
	ListGroupMembers(ctx context.Context, groupID string) ([]idp.UserRepresentation, error)
}

// TenantStore persists the local tenant records.
type TenantStore interface {
	Insert(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
	List(ctx context.Context) ([]*models.Tenant, error)
	Update(ctx context.Context, tenant *models.Tenant) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service manages tenants.
type Service struct {
	gateway        IdPGateway
	tenants        TenantStore
	coord          *saga.Coordinator[*models.CreateTenantInput, *models.UpdateTenantChanges, *models.Tenant]
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher audit.Publisher
	now            func() time.Time
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

// New creates the tenant service. tokens must be the process-wide shared
// token manager.
func New(gateway IdPGateway, tenants TenantStore, tokens saga.TokenSource, opts ...Option) *Service {
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
		tenants:        tenants,
		logger:         cfg.logger,
		metrics:        cfg.metrics,
		auditPublisher: cfg.auditPublisher,
		now:            cfg.now,
	}
	ops := &tenantOps{gateway: gateway, tenants: tenants, now: cfg.now}
	s.coord = saga.New[*models.CreateTenantInput, *models.UpdateTenantChanges, *models.Tenant](
		ops, tokens,
		saga.WithLogger(cfg.logger),
		saga.WithMetrics(cfg.metrics),
	)
	return s
}

// CreateTenant creates the IdP group first, then the local record.
func (s *Service) CreateTenant(ctx context.Context, in *models.CreateTenantInput) (*models.Tenant, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tenant, err := s.coord.Create(ctx, in)
	if err != nil {
		s.emit(ctx, audit.ActionCreated, "", in.Name, audit.OutcomeFailure)
		return nil, translateErr(err)
	}

	// A freshly created group has no members.
	tenant.MemberCount = 0
	s.emit(ctx, audit.ActionCreated, tenant.ID.String(), tenant.Name, audit.OutcomeSuccess)
	return tenant, nil
}

// GetTenant returns the local record enriched with the live member count.
func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, translateErr(err)
	}
	tenant.MemberCount = s.memberCount(ctx, tenant)
	return tenant, nil
}

// ListTenants returns all local records, each enriched with its live member
// count. An enrichment failure for one tenant degrades that tenant's count
// to zero without failing the listing.
func (s *Service) ListTenants(ctx context.Context) ([]*models.Tenant, error) {
	tenants, err := s.tenants.List(ctx)
	if err != nil {
		return nil, translateErr(err)
	}
	for _, tenant := range tenants {
		tenant.MemberCount = s.memberCount(ctx, tenant)
	}
	return tenants, nil
}

// ListMembers returns the IdP users belonging to the tenant's group. Unlike
// count enrichment this is the primary payload, so failures propagate.
func (s *Service) ListMembers(ctx context.Context, id uuid.UUID) ([]idp.UserRepresentation, error) {
	tenant, err := s.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, translateErr(err)
	}
	members, err := s.gateway.ListGroupMembers(ctx, tenant.ExternalID)
	if err != nil {
		return nil, translateErr(err)
	}
	return members, nil
}

// UpdateTenant applies a partial update, external store first.
func (s *Service) UpdateTenant(ctx context.Context, id uuid.UUID, changes *models.UpdateTenantChanges) (*models.Tenant, error) {
	if changes.Empty() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no changes supplied")
	}

	tenant, err := s.coord.Update(ctx, id, changes)
	if err != nil {
		s.emit(ctx, audit.ActionUpdated, id.String(), "", audit.OutcomeFailure)
		return nil, translateErr(err)
	}

	tenant.MemberCount = s.memberCount(ctx, tenant)
	s.emit(ctx, audit.ActionUpdated, tenant.ID.String(), tenant.Name, audit.OutcomeSuccess)
	return tenant, nil
}

// DeleteTenant removes the IdP group first, then the local record.
func (s *Service) DeleteTenant(ctx context.Context, id uuid.UUID) error {
	if err := s.coord.Delete(ctx, id); err != nil {
		s.emit(ctx, audit.ActionDeleted, id.String(), "", audit.OutcomeFailure)
		return translateErr(err)
	}
	s.emit(ctx, audit.ActionDeleted, id.String(), "", audit.OutcomeSuccess)
	return nil
}

// memberCount reads the live group membership, degrading to zero when the
// IdP cannot answer. Listings must stay available while the IdP is degraded.
func (s *Service) memberCount(ctx context.Context, tenant *models.Tenant) int {
	members, err := s.gateway.ListGroupMembers(ctx, tenant.ExternalID)
	if err != nil {
		s.metrics.IncEnrichmentDegraded("tenant")
		s.logger.WarnContext(ctx, "member count enrichment failed, defaulting to zero",
			"tenant_id", tenant.ID,
			"error", err,
		)
		return 0
	}
	return len(members)
}

func (s *Service) emit(ctx context.Context, action audit.Action, entityID, name, outcome string) {
	event := audit.Event{
		Action:   action,
		Kind:     "tenant",
		EntityID: entityID,
		Name:     name,
		Outcome:  outcome,
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emission failed", "action", action, "error", err)
	}
}

// translateErr maps gateway and store failures into domain errors exactly
// once. The original cause stays in the chain so callers can still inspect
// the saga stage.
func translateErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrAlreadyUsed), idp.IsConflict(err):
		return dErrors.Wrap(err, dErrors.CodeConflict, "tenant name must be unique")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "tenant not found")
	case isAuthFailure(err):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider authentication failed")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "tenant operation failed")
	}
}

func isAuthFailure(err error) bool {
	var authErr *idp.AuthError
	return errors.As(err, &authErr)
}
