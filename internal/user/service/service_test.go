package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/idp"
	tenantmodels "concord/internal/tenant/models"
	"concord/internal/user/models"
	"concord/internal/user/store"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/sentinel"
)

// fakeGateway records the IdP calls in order and fails where configured.
type fakeGateway struct {
	calls []string

	createErr   error
	findUserErr error
	passwordErr error
	groupErr    error
	roleErrs    map[string]error
	assignErr   error
	updateErr   error
	deleteErr   error

	externalID   string
	listRoles    []idp.RoleRepresentation
	listRolesErr error

	deletedUsers []string
	lastUpdate   idp.UserRepresentation
}

func (f *fakeGateway) CreateUser(_ context.Context, user idp.UserRepresentation) error {
	f.calls = append(f.calls, "CreateUser:"+user.Username)
	return f.createErr
}

func (f *fakeGateway) FindUserByUsername(_ context.Context, username string) (*idp.UserRepresentation, error) {
	f.calls = append(f.calls, "FindUserByUsername:"+username)
	if f.findUserErr != nil {
		return nil, f.findUserErr
	}
	return &idp.UserRepresentation{ID: f.externalID, Username: username}, nil
}

func (f *fakeGateway) UpdateUser(_ context.Context, userID string, user idp.UserRepresentation) error {
	f.calls = append(f.calls, "UpdateUser:"+userID)
	f.lastUpdate = user
	return f.updateErr
}

func (f *fakeGateway) DeleteUser(_ context.Context, userID string) error {
	f.calls = append(f.calls, "DeleteUser:"+userID)
	f.deletedUsers = append(f.deletedUsers, userID)
	return f.deleteErr
}

func (f *fakeGateway) DeleteUserByUsername(_ context.Context, username string) error {
	f.calls = append(f.calls, "DeleteUserByUsername:"+username)
	f.deletedUsers = append(f.deletedUsers, "name:"+username)
	return f.deleteErr
}

func (f *fakeGateway) SetUserPassword(_ context.Context, userID, _ string, _ bool) error {
	f.calls = append(f.calls, "SetUserPassword:"+userID)
	return f.passwordErr
}

func (f *fakeGateway) AddUserToGroup(_ context.Context, userID, groupID string) error {
	f.calls = append(f.calls, "AddUserToGroup:"+userID+":"+groupID)
	return f.groupErr
}

func (f *fakeGateway) AssignRealmRole(_ context.Context, userID string, role idp.RoleRepresentation) error {
	f.calls = append(f.calls, "AssignRealmRole:"+userID+":"+role.Name)
	return f.assignErr
}

func (f *fakeGateway) FindRoleByName(_ context.Context, name string) (*idp.RoleRepresentation, error) {
	f.calls = append(f.calls, "FindRoleByName:"+name)
	if err := f.roleErrs[name]; err != nil {
		return nil, err
	}
	return &idp.RoleRepresentation{ID: "r-" + name, Name: name}, nil
}

func (f *fakeGateway) ListUserRealmRoles(_ context.Context, userID string) ([]idp.RoleRepresentation, error) {
	f.calls = append(f.calls, "ListUserRealmRoles:"+userID)
	return f.listRoles, f.listRolesErr
}

type fakeTenants struct {
	tenants map[uuid.UUID]*tenantmodels.Tenant
}

func (f *fakeTenants) FindByID(_ context.Context, id uuid.UUID) (*tenantmodels.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, sentinel.ErrNotFound
}

type stubTokens struct{ calls int }

func (s *stubTokens) EnsureValid(context.Context) error {
	s.calls++
	return nil
}

func fixture(t *testing.T) (*Service, *fakeGateway, *store.InMemory, *fakeTenants) {
	t.Helper()
	gateway := &fakeGateway{externalID: "u-1"}
	users := store.NewInMemory()
	tenants := &fakeTenants{tenants: map[uuid.UUID]*tenantmodels.Tenant{}}
	svc := New(gateway, users, tenants, &stubTokens{})
	return svc, gateway, users, tenants
}

func TestCreateUserAppliesSubSteps(t *testing.T) {
	svc, gateway, users, tenants := fixture(t)
	ctx := context.Background()

	tenantID := uuid.New()
	tenants.tenants[tenantID] = &tenantmodels.Tenant{ID: tenantID, ExternalID: "g-1", Name: "acme"}

	user, err := svc.CreateUser(ctx, &models.CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "s3cret",
		TenantID: &tenantID,
		Roles:    []string{"admin", "viewer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ExternalID)
	assert.Equal(t, []string{"admin", "viewer"}, user.Roles)

	assert.Equal(t, []string{
		"CreateUser:alice",
		"FindUserByUsername:alice",
		"SetUserPassword:u-1",
		"AddUserToGroup:u-1:g-1",
		"FindRoleByName:admin",
		"AssignRealmRole:u-1:admin",
		"FindRoleByName:viewer",
		"AssignRealmRole:u-1:viewer",
	}, gateway.calls)

	stored, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", stored.ExternalID)
	require.NotNil(t, stored.TenantID)
	assert.Equal(t, tenantID, *stored.TenantID)
}

func TestCreateUserSkipsOptionalSubSteps(t *testing.T) {
	svc, gateway, _, _ := fixture(t)

	_, err := svc.CreateUser(context.Background(), &models.CreateUserInput{
		Username: "bob",
		Email:    "bob@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateUser:bob", "FindUserByUsername:bob"}, gateway.calls)
}

func TestCreateUserMissingRoleRollsBackExternalUser(t *testing.T) {
	svc, gateway, users, _ := fixture(t)
	ctx := context.Background()
	gateway.roleErrs = map[string]error{"ghost": sentinel.ErrNotFound}

	_, err := svc.CreateUser(ctx, &models.CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Roles:    []string{"ghost"},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)

	// The IdP user is cleaned up exactly once, and no local row exists.
	assert.Equal(t, []string{"u-1"}, gateway.deletedUsers)
	_, err = users.FindByUsername(ctx, "alice")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCreateUserMissingTenantRollsBackExternalUser(t *testing.T) {
	svc, gateway, _, _ := fixture(t)
	unknown := uuid.New()

	_, err := svc.CreateUser(context.Background(), &models.CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
		TenantID: &unknown,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
	assert.Equal(t, []string{"u-1"}, gateway.deletedUsers)
}

func TestCreateUserLocalConflictCompensates(t *testing.T) {
	svc, gateway, users, _ := fixture(t)
	ctx := context.Background()

	require.NoError(t, users.Insert(ctx, &models.User{
		ID:         uuid.New(),
		ExternalID: "u-0",
		Username:   "alice",
		Email:      "old@example.com",
	}))

	_, err := svc.CreateUser(ctx, &models.CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
	assert.Equal(t, []string{"u-1"}, gateway.deletedUsers)
}

func TestCreateUserExternalFailureIsNotCompensated(t *testing.T) {
	svc, gateway, _, _ := fixture(t)
	gateway.createErr = &idp.APIError{Status: http.StatusConflict}

	_, err := svc.CreateUser(context.Background(), &models.CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)
	assert.Empty(t, gateway.deletedUsers)
}

func TestCreateUserValidation(t *testing.T) {
	svc, gateway, _, _ := fixture(t)

	cases := []struct {
		name string
		in   *models.CreateUserInput
	}{
		{"missing username", &models.CreateUserInput{Email: "a@example.com"}},
		{"missing email", &models.CreateUserInput{Username: "alice"}},
		{"malformed email", &models.CreateUserInput{Username: "alice", Email: "not-an-address"}},
		{"duplicate roles", &models.CreateUserInput{Username: "alice", Email: "a@example.com", Roles: []string{"admin", "admin"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateUser(context.Background(), tc.in)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
	assert.Empty(t, gateway.calls, "invalid input must not reach the IdP")
}

func TestListUsersEnrichesRoles(t *testing.T) {
	svc, gateway, users, _ := fixture(t)
	ctx := context.Background()
	gateway.listRoles = []idp.RoleRepresentation{{Name: "admin"}, {Name: "viewer"}}

	require.NoError(t, users.Insert(ctx, &models.User{ID: uuid.New(), ExternalID: "u-1", Username: "alice"}))

	got, err := svc.ListUsers(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"admin", "viewer"}, got[0].Roles)
}

func TestListUsersDegradesRoleEnrichment(t *testing.T) {
	svc, gateway, users, _ := fixture(t)
	ctx := context.Background()
	gateway.listRolesErr = &idp.APIError{Status: http.StatusBadGateway}

	require.NoError(t, users.Insert(ctx, &models.User{ID: uuid.New(), ExternalID: "u-1", Username: "alice"}))

	got, err := svc.ListUsers(ctx, nil)
	require.NoError(t, err, "a degraded IdP must not fail the listing")
	require.Len(t, got, 1)
	assert.Equal(t, []string{}, got[0].Roles)
}

func TestUpdateUserMergesUnchangedFields(t *testing.T) {
	svc, gateway, users, _ := fixture(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, users.Insert(ctx, &models.User{
		ID:         id,
		ExternalID: "u-1",
		Username:   "alice",
		Email:      "alice@example.com",
		FirstName:  "Alice",
		Enabled:    true,
	}))

	last := "Smith"
	got, err := svc.UpdateUser(ctx, id, &models.UpdateUserChanges{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Smith", got.LastName)

	assert.Equal(t, "alice@example.com", gateway.lastUpdate.Email, "unspecified field must carry over")
	assert.Equal(t, "Alice", gateway.lastUpdate.FirstName)
	assert.Equal(t, "Smith", gateway.lastUpdate.LastName)
	require.NotNil(t, gateway.lastUpdate.Enabled)
	assert.True(t, *gateway.lastUpdate.Enabled)
}

func TestUpdateUserExternalFailureLeavesLocalUntouched(t *testing.T) {
	svc, gateway, users, _ := fixture(t)
	ctx := context.Background()
	gateway.updateErr = &idp.APIError{Status: http.StatusBadGateway}

	id := uuid.New()
	require.NoError(t, users.Insert(ctx, &models.User{ID: id, ExternalID: "u-1", Username: "alice", Email: "alice@example.com"}))

	email := "new@example.com"
	_, err := svc.UpdateUser(ctx, id, &models.UpdateUserChanges{Email: &email})
	require.Error(t, err)

	stored, err := users.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
}

func TestDeleteUserExternalFirst(t *testing.T) {
	svc, gateway, users, _ := fixture(t)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, users.Insert(ctx, &models.User{ID: id, ExternalID: "u-1", Username: "alice"}))

	require.NoError(t, svc.DeleteUser(ctx, id))
	assert.Equal(t, []string{"DeleteUser:u-1"}, gateway.calls)

	_, err := users.FindByID(ctx, id)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestDeleteUserExternalFailureKeepsLocalRecord(t *testing.T) {
	svc, gateway, users, _ := fixture(t)
	ctx := context.Background()
	gateway.deleteErr = &idp.APIError{Status: http.StatusBadGateway}

	id := uuid.New()
	require.NoError(t, users.Insert(ctx, &models.User{ID: id, ExternalID: "u-1", Username: "alice"}))

	require.Error(t, svc.DeleteUser(ctx, id))

	_, err := users.FindByID(ctx, id)
	require.NoError(t, err, "local record must survive when the external delete fails")
}

func TestCreateUserTimestamps(t *testing.T) {
	gateway := &fakeGateway{externalID: "u-1"}
	users := store.NewInMemory()
	fixed := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := New(gateway, users, &fakeTenants{}, &stubTokens{}, WithClock(func() time.Time { return fixed }))

	user, err := svc.CreateUser(context.Background(), &models.CreateUserInput{
		Username: "alice",
		Email:    "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, user.CreatedAt)
	assert.Equal(t, fixed, user.UpdatedAt)
}
