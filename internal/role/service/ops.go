package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"concord/internal/idp"
	"concord/internal/role/models"
)

// roleOps binds realm-role payload mapping into the coordinator protocol.
// The IdP keys realm roles by name, so compensation and deletion always go
// through delete-by-name.
type roleOps struct {
	gateway IdPGateway
	roles   RoleStore
	now     func() time.Time
}

func (o *roleOps) Kind() string { return "role" }

func (o *roleOps) CreateExternal(ctx context.Context, in *models.CreateRoleInput) error {
	return o.gateway.CreateRealmRole(ctx, idp.RoleRepresentation{
		Name:        in.Name,
		Description: in.Description,
	})
}

func (o *roleOps) ResolveExternalID(ctx context.Context, in *models.CreateRoleInput) (string, error) {
	role, err := o.gateway.FindRoleByName(ctx, in.Name)
	if err != nil {
		return "", err
	}
	return role.ID, nil
}

func (o *roleOps) PrepareExternal(context.Context, *models.CreateRoleInput, string) error {
	return nil
}

func (o *roleOps) CompensateCreate(ctx context.Context, in *models.CreateRoleInput, _ string) error {
	return o.gateway.DeleteRoleByName(ctx, in.Name)
}

func (o *roleOps) InsertLocal(ctx context.Context, in *models.CreateRoleInput, externalID string) (*models.Role, error) {
	now := o.now()
	role := &models.Role{
		ID:          uuid.New(),
		ExternalID:  externalID,
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.roles.Insert(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (o *roleOps) LoadLocal(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	return o.roles.FindByID(ctx, id)
}

func (o *roleOps) UpdateExternal(ctx context.Context, current *models.Role, changes *models.UpdateRoleChanges) error {
	description := current.Description
	if changes.Description != nil {
		description = *changes.Description
	}
	return o.gateway.UpdateRole(ctx, current.Name, idp.RoleRepresentation{
		Name:        current.Name,
		Description: description,
	})
}

func (o *roleOps) UpdateLocal(ctx context.Context, id uuid.UUID, changes *models.UpdateRoleChanges) (*models.Role, error) {
	role, err := o.roles.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.Description != nil {
		role.Description = *changes.Description
	}
	role.UpdatedAt = o.now()
	if err := o.roles.Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (o *roleOps) DeleteExternal(ctx context.Context, current *models.Role) error {
	return o.gateway.DeleteRoleByName(ctx, current.Name)
}

func (o *roleOps) DeleteLocal(ctx context.Context, id uuid.UUID) error {
	return o.roles.Delete(ctx, id)
}
