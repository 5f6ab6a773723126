package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"concord/internal/idp"
	"concord/internal/user/models"
)

// userOps binds user payload mapping into the coordinator protocol. A user's
// external principal is an IdP user; credential, group-membership and
// role-mapping sub-steps run in the preparation phase so their failures roll
// the IdP user back.
type userOps struct {
	gateway IdPGateway
	users   UserStore
	tenants TenantLookup
	now     func() time.Time
}

func (o *userOps) Kind() string { return "user" }

func (o *userOps) CreateExternal(ctx context.Context, in *models.CreateUserInput) error {
	return o.gateway.CreateUser(ctx, userRepresentation(in.Username, in.Email, in.FirstName, in.LastName, true))
}

func (o *userOps) ResolveExternalID(ctx context.Context, in *models.CreateUserInput) (string, error) {
	user, err := o.gateway.FindUserByUsername(ctx, in.Username)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// PrepareExternal applies the optional credential, tenant membership and
// role mappings against the freshly created IdP user.
func (o *userOps) PrepareExternal(ctx context.Context, in *models.CreateUserInput, externalID string) error {
	if in.Password != "" {
		if err := o.gateway.SetUserPassword(ctx, externalID, in.Password, false); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
	}
	if in.TenantID != nil {
		tenant, err := o.tenants.FindByID(ctx, *in.TenantID)
		if err != nil {
			return fmt.Errorf("resolve tenant %s: %w", in.TenantID, err)
		}
		if err := o.gateway.AddUserToGroup(ctx, externalID, tenant.ExternalID); err != nil {
			return fmt.Errorf("add to tenant group: %w", err)
		}
	}
	for _, roleName := range in.Roles {
		role, err := o.gateway.FindRoleByName(ctx, roleName)
		if err != nil {
			return fmt.Errorf("resolve role %q: %w", roleName, err)
		}
		if err := o.gateway.AssignRealmRole(ctx, externalID, *role); err != nil {
			return fmt.Errorf("assign role %q: %w", roleName, err)
		}
	}
	return nil
}

func (o *userOps) CompensateCreate(ctx context.Context, in *models.CreateUserInput, externalID string) error {
	if externalID != "" {
		return o.gateway.DeleteUser(ctx, externalID)
	}
	return o.gateway.DeleteUserByUsername(ctx, in.Username)
}

func (o *userOps) InsertLocal(ctx context.Context, in *models.CreateUserInput, externalID string) (*models.User, error) {
	now := o.now()
	user := &models.User{
		ID:         uuid.New(),
		ExternalID: externalID,
		TenantID:   in.TenantID,
		Username:   in.Username,
		Email:      in.Email,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.users.Insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (o *userOps) LoadLocal(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return o.users.FindByID(ctx, id)
}

// UpdateExternal merges unspecified fields from the current record so a
// partial update does not clobber unrelated IdP attributes.
func (o *userOps) UpdateExternal(ctx context.Context, current *models.User, changes *models.UpdateUserChanges) error {
	enabled := current.Enabled
	if changes.Enabled != nil {
		enabled = *changes.Enabled
	}
	merged := userRepresentation(
		current.Username,
		valueOr(changes.Email, current.Email),
		valueOr(changes.FirstName, current.FirstName),
		valueOr(changes.LastName, current.LastName),
		enabled,
	)
	return o.gateway.UpdateUser(ctx, current.ExternalID, merged)
}

func (o *userOps) UpdateLocal(ctx context.Context, id uuid.UUID, changes *models.UpdateUserChanges) (*models.User, error) {
	user, err := o.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if changes.Email != nil {
		user.Email = *changes.Email
	}
	if changes.FirstName != nil {
		user.FirstName = *changes.FirstName
	}
	if changes.LastName != nil {
		user.LastName = *changes.LastName
	}
	if changes.Enabled != nil {
		user.Enabled = *changes.Enabled
	}
	user.UpdatedAt = o.now()
	if err := o.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (o *userOps) DeleteExternal(ctx context.Context, current *models.User) error {
	return o.gateway.DeleteUser(ctx, current.ExternalID)
}

func (o *userOps) DeleteLocal(ctx context.Context, id uuid.UUID) error {
	return o.users.Delete(ctx, id)
}

func userRepresentation(username, email, firstName, lastName string, enabled bool) idp.UserRepresentation {
	return idp.UserRepresentation{
		Username:  username,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Enabled:   idp.Bool(enabled),
	}
}

func valueOr(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}
