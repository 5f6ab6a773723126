package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"concord/internal/idp"
	"concord/internal/tenant/models"
)

// tenantOps binds tenant payload mapping into the coordinator protocol.
// A tenant's external principal is an IdP group; display metadata rides in
// group attributes.
type tenantOps struct {
	gateway IdPGateway
	tenants TenantStore
	now     func() time.Time
}

func (o *tenantOps) Kind() string { return "tenant" }

func (o *tenantOps) CreateExternal(ctx context.Context, in *models.CreateTenantInput) error {
	return o.gateway.CreateGroup(ctx, groupRepresentation(in.Name, in.DisplayName, in.Description))
}

func (o *tenantOps) ResolveExternalID(ctx context.Context, in *models.CreateTenantInput) (string, error) {
	group, err := o.gateway.FindGroupByName(ctx, in.Name)
	if err != nil {
		return "", err
	}
	return group.ID, nil
}

func (o *tenantOps) PrepareExternal(context.Context, *models.CreateTenantInput, string) error {
	return nil
}

func (o *tenantOps) CompensateCreate(ctx context.Context, in *models.CreateTenantInput, externalID string) error {
	if externalID != "" {
		return o.gateway.DeleteGroup(ctx, externalID)
	}
	return o.gateway.DeleteGroupByName(ctx, in.Name)
}

func (o *tenantOps) InsertLocal(ctx context.Context, in *models.CreateTenantInput, externalID string) (*models.Tenant, error) {
	now := o.now()
	tenant := &models.Tenant{
		ID:          uuid.New(),
		ExternalID:  externalID,
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.tenants.Insert(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (o *tenantOps) LoadLocal(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return o.tenants.FindByID(ctx, id)
}

// UpdateExternal merges unspecified fields from the current record so a
// partial update does not clobber unrelated group attributes.
func (o *tenantOps) UpdateExternal(ctx context.Context, current *models.Tenant, changes *models.UpdateTenantChanges) error {
	merged := groupRepresentation(
		current.Name,
		valueOr(changes.DisplayName, current.DisplayName),
		valueOr(changes.Description, current.Description),
	)
	return o.gateway.UpdateGroup(ctx, current.ExternalID, merged)
}

func (o *tenantOps) UpdateLocal(ctx context.Context, id uuid.UUID, changes *models.UpdateTenantChanges) (*models.Tenant, error) {
	tenant, err := o.tenants.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.DisplayName != nil {
		tenant.DisplayName = *changes.DisplayName
	}
	if changes.Description != nil {
		tenant.Description = *changes.Description
	}
	tenant.UpdatedAt = o.now()
	if err := o.tenants.Update(ctx, tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (o *tenantOps) DeleteExternal(ctx context.Context, current *models.Tenant) error {
	return o.gateway.DeleteGroup(ctx, current.ExternalID)
}

func (o *tenantOps) DeleteLocal(ctx context.Context, id uuid.UUID) error {
	return o.tenants.Delete(ctx, id)
}

func groupRepresentation(name, displayName, description string) idp.GroupRepresentation {
	attrs := map[string][]string{}
	if displayName != "" {
		attrs["displayName"] = []string{displayName}
	}
	if description != "" {
		attrs["description"] = []string{description}
	}
	return idp.GroupRepresentation{Name: name, Attributes: attrs}
}

func valueOr(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}
