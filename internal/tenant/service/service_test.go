package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"concord/internal/idp"
	"concord/internal/tenant/models"
	"concord/internal/tenant/service/mocks"
	"concord/internal/tenant/store"
	dErrors "concord/pkg/domain-errors"
)

type stubTokens struct {
	calls int
	err   error
}

func (s *stubTokens) EnsureValid(context.Context) error {
	s.calls++
	return s.err
}

func newService(t *testing.T) (*Service, *mocks.MockIdPGateway, *store.InMemory, *stubTokens) {
	t.Helper()
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockIdPGateway(ctrl)
	tenants := store.NewInMemory()
	tokens := &stubTokens{}
	return New(gateway, tenants, tokens), gateway, tenants, tokens
}

func seedTenant(t *testing.T, tenants *store.InMemory, name, externalID string) *models.Tenant {
	t.Helper()
	ops := &tenantOps{tenants: tenants, now: time.Now}
	tenant, err := ops.InsertLocal(context.Background(), &models.CreateTenantInput{
		Name:        name,
		DisplayName: name,
	}, externalID)
	require.NoError(t, err)
	return tenant
}

func TestCreateTenant(t *testing.T) {
	svc, gateway, tenants, tokens := newService(t)
	ctx := context.Background()

	gateway.EXPECT().
		CreateGroup(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, group idp.GroupRepresentation) error {
			assert.Equal(t, "acme", group.Name)
			assert.Equal(t, []string{"Acme Corp"}, group.Attributes["displayName"])
			return nil
		})
	gateway.EXPECT().
		FindGroupByName(ctx, "acme").
		Return(&idp.GroupRepresentation{ID: "g-1", Name: "acme"}, nil)

	tenant, err := svc.CreateTenant(ctx, &models.CreateTenantInput{
		Name:        "acme",
		DisplayName: "Acme Corp",
	})
	require.NoError(t, err)
	assert.Equal(t, "g-1", tenant.ExternalID)
	assert.Equal(t, 0, tenant.MemberCount)
	assert.Equal(t, 1, tokens.calls)

	stored, err := tenants.FindByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, stored.ID)
}

func TestCreateTenantCompensatesOnLocalConflict(t *testing.T) {
	svc, gateway, tenants, _ := newService(t)
	ctx := context.Background()

	seedTenant(t, tenants, "acme", "g-1")

	gateway.EXPECT().CreateGroup(ctx, gomock.Any()).Return(nil)
	gateway.EXPECT().
		FindGroupByName(ctx, "acme").
		Return(&idp.GroupRepresentation{ID: "g-2", Name: "acme"}, nil)
	// Exactly one cleanup of the group that was just created.
	gateway.EXPECT().DeleteGroup(ctx, "g-2").Return(nil).Times(1)

	_, err := svc.CreateTenant(ctx, &models.CreateTenantInput{Name: "acme"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

func TestCreateTenantCompensationFailureKeepsOriginalError(t *testing.T) {
	svc, gateway, tenants, _ := newService(t)
	ctx := context.Background()

	seedTenant(t, tenants, "acme", "g-1")

	gateway.EXPECT().CreateGroup(ctx, gomock.Any()).Return(nil)
	gateway.EXPECT().
		FindGroupByName(ctx, "acme").
		Return(&idp.GroupRepresentation{ID: "g-2", Name: "acme"}, nil)
	gateway.EXPECT().
		DeleteGroup(ctx, "g-2").
		Return(&idp.APIError{Status: http.StatusInternalServerError})

	_, err := svc.CreateTenant(ctx, &models.CreateTenantInput{Name: "acme"})
	require.Error(t, err)
	// The caller still sees the local conflict, not the cleanup failure.
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

func TestCreateTenantExternalConflictIsNotCompensated(t *testing.T) {
	svc, gateway, _, _ := newService(t)
	ctx := context.Background()

	gateway.EXPECT().
		CreateGroup(ctx, gomock.Any()).
		Return(&idp.APIError{Status: http.StatusConflict})

	_, err := svc.CreateTenant(ctx, &models.CreateTenantInput{Name: "acme"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
}

func TestCreateTenantValidation(t *testing.T) {
	svc, _, _, tokens := newService(t)

	_, err := svc.CreateTenant(context.Background(), &models.CreateTenantInput{Name: "   "})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
	assert.Zero(t, tokens.calls, "invalid input must not touch the token manager")
}

func TestGetTenantEnrichesMemberCount(t *testing.T) {
	svc, gateway, tenants, _ := newService(t)
	ctx := context.Background()
	tenant := seedTenant(t, tenants, "acme", "g-1")

	gateway.EXPECT().
		ListGroupMembers(ctx, "g-1").
		Return([]idp.UserRepresentation{{ID: "u-1"}, {ID: "u-2"}, {ID: "u-3"}}, nil)

	got, err := svc.GetTenant(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MemberCount)
}

func TestListTenantsDegradesEnrichmentPerTenant(t *testing.T) {
	svc, gateway, tenants, _ := newService(t)
	ctx := context.Background()
	seedTenant(t, tenants, "acme", "g-a")
	seedTenant(t, tenants, "globex", "g-b")

	gateway.EXPECT().
		ListGroupMembers(ctx, "g-a").
		Return([]idp.UserRepresentation{{ID: "u-1"}, {ID: "u-2"}}, nil)
	gateway.EXPECT().
		ListGroupMembers(ctx, "g-b").
		Return(nil, &idp.APIError{Status: http.StatusBadGateway})

	got, err := svc.ListTenants(ctx)
	require.NoError(t, err, "a degraded IdP must not fail the listing")
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].MemberCount)
	assert.Equal(t, 0, got[1].MemberCount)
}

func TestListMembersPropagatesFailure(t *testing.T) {
	svc, gateway, tenants, _ := newService(t)
	ctx := context.Background()
	tenant := seedTenant(t, tenants, "acme", "g-1")

	gateway.EXPECT().
		ListGroupMembers(ctx, "g-1").
		Return(nil, &idp.APIError{Status: http.StatusBadGateway})

	_, err := svc.ListMembers(ctx, tenant.ID)
	require.Error(t, err, "membership is the primary payload, not enrichment")
}

func TestUpdateTenantMergesUnchangedFields(t *testing.T) {
	svc, gateway, tenants, _ := newService(t)
	ctx := context.Background()

	tenant := seedTenant(t, tenants, "acme", "g-1")
	desc := "original description"
	tenant.Description = desc
	require.NoError(t, tenants.Update(ctx, tenant))

	gateway.EXPECT().
		UpdateGroup(ctx, "g-1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, group idp.GroupRepresentation) error {
			assert.Equal(t, []string{"Acme Corp"}, group.Attributes["displayName"])
			assert.Equal(t, []string{desc}, group.Attributes["description"], "unspecified field must carry over")
			return nil
		})
	gateway.EXPECT().ListGroupMembers(ctx, "g-1").Return(nil, nil)

	displayName := "Acme Corp"
	got, err := svc.UpdateTenant(ctx, tenant.ID, &models.UpdateTenantChanges{DisplayName: &displayName})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.DisplayName)
	assert.Equal(t, desc, got.Description)
}

func TestUpdateTenantExternalFailureLeavesLocalUntouched(t *testing.T) {
	svc, gateway, tenants, _ := newService(t)
	ctx := context.Background()
	tenant := seedTenant(t, tenants, "acme", "g-1")

	gateway.EXPECT().
		UpdateGroup(ctx, "g-1", gomock.Any()).
		Return(&idp.APIError{Status: http.StatusBadGateway})

	displayName := "Acme Corp"
	_, err := svc.UpdateTenant(ctx, tenant.ID, &models.UpdateTenantChanges{DisplayName: &displayName})
	require.Error(t, err)

	stored, err := tenants.FindByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", stored.DisplayName)
}

func TestUpdateTenantRejectsEmptyChanges(t *testing.T) {
	svc, _, tenants, tokens := newService(t)
	tenant := seedTenant(t, tenants, "acme", "g-1")

	_, err := svc.UpdateTenant(context.Background(), tenant.ID, &models.UpdateTenantChanges{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest), "got %v", err)
	assert.Zero(t, tokens.calls)
}

func TestDeleteTenant(t *testing.T) {
	svc, gateway, tenants, _ := newService(t)
	ctx := context.Background()
	tenant := seedTenant(t, tenants, "acme", "g-1")

	gateway.EXPECT().DeleteGroup(ctx, "g-1").Return(nil)

	require.NoError(t, svc.DeleteTenant(ctx, tenant.ID))

	_, err := tenants.FindByID(ctx, tenant.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(translateErr(err), dErrors.CodeNotFound))
}

func TestDeleteTenantExternalFailureKeepsLocalRecord(t *testing.T) {
	svc, gateway, tenants, _ := newService(t)
	ctx := context.Background()
	tenant := seedTenant(t, tenants, "acme", "g-1")

	gateway.EXPECT().
		DeleteGroup(ctx, "g-1").
		Return(&idp.APIError{Status: http.StatusBadGateway})

	require.Error(t, svc.DeleteTenant(ctx, tenant.ID))

	_, err := tenants.FindByID(ctx, tenant.ID)
	require.NoError(t, err, "local record must survive when the external delete fails")
}

func TestDeleteTenantUnknownID(t *testing.T) {
	svc, _, _, _ := newService(t)

	err := svc.DeleteTenant(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
}
