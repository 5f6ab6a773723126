package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/idp"
	"concord/internal/role/models"
	"concord/internal/role/store"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/sentinel"
)

// fakeGateway records the IdP calls in order and fails where configured.
type fakeGateway struct {
	calls []string

	createErr error
	findErr   error
	updateErr error
	deleteErr error

	externalID string
	composite  bool

	deletedNames []string
	lastUpdate   idp.RoleRepresentation
}

func (f *fakeGateway) CreateRealmRole(_ context.Context, role idp.RoleRepresentation) error {
	f.calls = append(f.calls, "CreateRealmRole:"+role.Name)
	return f.createErr
}

func (f *fakeGateway) FindRoleByName(_ context.Context, name string) (*idp.RoleRepresentation, error) {
	f.calls = append(f.calls, "FindRoleByName:"+name)
	if f.findErr != nil {
		return nil, f.findErr
	}
	return &idp.RoleRepresentation{ID: f.externalID, Name: name, Composite: f.composite}, nil
}

func (f *fakeGateway) UpdateRole(_ context.Context, name string, role idp.RoleRepresentation) error {
	f.calls = append(f.calls, "UpdateRole:"+name)
	f.lastUpdate = role
	return f.updateErr
}

func (f *fakeGateway) DeleteRoleByName(_ context.Context, name string) error {
	f.calls = append(f.calls, "DeleteRoleByName:"+name)
	f.deletedNames = append(f.deletedNames, name)
	return f.deleteErr
}

type stubTokens struct{ calls int }

func (s *stubTokens) EnsureValid(context.Context) error {
	s.calls++
	return nil
}

func fixture(t *testing.T) (*Service, *fakeGateway, *store.InMemory) {
	t.Helper()
	gateway := &fakeGateway{externalID: "r-1"}
	roles := store.NewInMemory()
	return New(gateway, roles, &stubTokens{}), gateway, roles
}

func TestCreateRole(t *testing.T) {
	svc, gateway, roles := fixture(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, &models.CreateRoleInput{Name: "auditor", Description: "read-only access"})
	require.NoError(t, err)
	assert.Equal(t, "r-1", role.ExternalID)
	assert.False(t, role.Composite)
	assert.Equal(t, []string{"CreateRealmRole:auditor", "FindRoleByName:auditor"}, gateway.calls)

	stored, err := roles.FindByName(ctx, "auditor")
	require.NoError(t, err)
	assert.Equal(t, "read-only access", stored.Description)
}

func TestCreateRoleLocalConflictCompensatesByName(t *testing.T) {
	svc, gateway, roles := fixture(t)
	ctx := context.Background()

	require.NoError(t, roles.Insert(ctx, &models.Role{ID: uuid.New(), ExternalID: "r-0", Name: "auditor"}))

	_, err := svc.CreateRole(ctx, &models.CreateRoleInput{Name: "auditor"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
	assert.Equal(t, []string{"auditor"}, gateway.deletedNames)
}

func TestCreateRoleResolutionFailureCompensates(t *testing.T) {
	svc, gateway, _ := fixture(t)
	gateway.findErr = sentinel.ErrNotFound

	_, err := svc.CreateRole(context.Background(), &models.CreateRoleInput{Name: "auditor"})
	require.Error(t, err)
	assert.Equal(t, []string{"auditor"}, gateway.deletedNames)
}

func TestGetRoleEnrichesCompositeFlag(t *testing.T) {
	svc, gateway, roles := fixture(t)
	ctx := context.Background()
	gateway.composite = true

	id := uuid.New()
	require.NoError(t, roles.Insert(ctx, &models.Role{ID: id, ExternalID: "r-1", Name: "auditor"}))

	got, err := svc.GetRole(ctx, id)
	require.NoError(t, err)
	assert.True(t, got.Composite)
}

func TestListRolesDegradesEnrichment(t *testing.T) {
	svc, gateway, roles := fixture(t)
	ctx := context.Background()
	gateway.findErr = &idp.APIError{Status: http.StatusBadGateway}

	require.NoError(t, roles.Insert(ctx, &models.Role{ID: uuid.New(), ExternalID: "r-1", Name: "auditor"}))

	got, err := svc.ListRoles(ctx)
	require.NoError(t, err, "a degraded IdP must not fail the listing")
	require.Len(t, got, 1)
	assert.False(t, got[0].Composite)
}

func TestUpdateRoleKeepsNameAndMergesDescription(t *testing.T) {
	svc, gateway, roles := fixture(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, roles.Insert(ctx, &models.Role{ID: id, ExternalID: "r-1", Name: "auditor", Description: "old"}))

	desc := "new description"
	got, err := svc.UpdateRole(ctx, id, &models.UpdateRoleChanges{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "new description", got.Description)
	assert.Equal(t, "auditor", gateway.lastUpdate.Name)
	assert.Equal(t, "new description", gateway.lastUpdate.Description)
}

func TestUpdateRoleRejectsEmptyChanges(t *testing.T) {
	svc, gateway, roles := fixture(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, roles.Insert(ctx, &models.Role{ID: id, ExternalID: "r-1", Name: "auditor"}))

	_, err := svc.UpdateRole(ctx, id, &models.UpdateRoleChanges{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), "got %v", err)
	assert.Empty(t, gateway.calls)
}

func TestDeleteRoleExternalFirst(t *testing.T) {
	svc, gateway, roles := fixture(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, roles.Insert(ctx, &models.Role{ID: id, ExternalID: "r-1", Name: "auditor"}))

	require.NoError(t, svc.DeleteRole(ctx, id))
	assert.Equal(t, []string{"DeleteRoleByName:auditor"}, gateway.calls)

	_, err := roles.FindByID(ctx, id)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestDeleteRoleExternalFailureKeepsLocalRecord(t *testing.T) {
	svc, gateway, roles := fixture(t)
	ctx := context.Background()
	gateway.deleteErr = &idp.APIError{Status: http.StatusBadGateway}

	id := uuid.New()
	require.NoError(t, roles.Insert(ctx, &models.Role{ID: id, ExternalID: "r-1", Name: "auditor"}))

	require.Error(t, svc.DeleteRole(ctx, id))

	_, err := roles.FindByID(ctx, id)
	require.NoError(t, err, "local record must survive when the external delete fails")
}

func TestCreateRoleValidation(t *testing.T) {
	svc, gateway, _ := fixture(t)

	_, err := svc.CreateRole(context.Background(), &models.CreateRoleInput{Name: "  "})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
	assert.Empty(t, gateway.calls)
}
