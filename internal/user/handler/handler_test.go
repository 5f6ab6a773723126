package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/user/models"
	dErrors "concord/pkg/domain-errors"
)

type fakeService struct {
	createFn func(ctx context.Context, in *models.CreateUserInput) (*models.User, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*models.User, error)
	listFn   func(ctx context.Context, tenantID *uuid.UUID) ([]*models.User, error)
	updateFn func(ctx context.Context, id uuid.UUID, changes *models.UpdateUserChanges) (*models.User, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (f *fakeService) CreateUser(ctx context.Context, in *models.CreateUserInput) (*models.User, error) {
	return f.createFn(ctx, in)
}

func (f *fakeService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return f.getFn(ctx, id)
}

func (f *fakeService) ListUsers(ctx context.Context, tenantID *uuid.UUID) ([]*models.User, error) {
	return f.listFn(ctx, tenantID)
}

func (f *fakeService) UpdateUser(ctx context.Context, id uuid.UUID, changes *models.UpdateUserChanges) (*models.User, error) {
	return f.updateFn(ctx, id, changes)
}

func (f *fakeService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return f.deleteFn(ctx, id)
}

func newRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func sampleUser() *models.User {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return &models.User{
		ID:         uuid.New(),
		ExternalID: "u-1",
		Username:   "alice",
		Email:      "alice@example.com",
		Enabled:    true,
		Roles:      []string{"admin"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestHandleCreateUser(t *testing.T) {
	user := sampleUser()
	tenantID := uuid.New()
	svc := &fakeService{
		createFn: func(_ context.Context, in *models.CreateUserInput) (*models.User, error) {
			assert.Equal(t, "alice", in.Username)
			assert.Equal(t, "s3cret", in.Password)
			require.NotNil(t, in.TenantID)
			assert.Equal(t, tenantID, *in.TenantID)
			assert.Equal(t, []string{"admin"}, in.Roles)
			return user, nil
		},
	}

	body := bytes.NewBufferString(`{"username":"alice","email":"alice@example.com","password":"s3cret","tenant_id":"` + tenantID.String() + `","roles":["admin"]}`)
	req := httptest.NewRequest(http.MethodPost, "/users", body)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "u-1", resp.ExternalID)
	assert.Equal(t, []string{"admin"}, resp.Roles)
	assert.NotContains(t, w.Body.String(), "s3cret", "password must never echo back")
}

func TestHandleCreateUserRejectsBadTenantID(t *testing.T) {
	svc := &fakeService{
		createFn: func(context.Context, *models.CreateUserInput) (*models.User, error) {
			t.Fatal("service must not be called for invalid requests")
			return nil, nil
		},
	}

	body := bytes.NewBufferString(`{"username":"alice","email":"alice@example.com","tenant_id":"nope"}`)
	req := httptest.NewRequest(http.MethodPost, "/users", body)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetUserNotFound(t *testing.T) {
	svc := &fakeService{
		getFn: func(context.Context, uuid.UUID) (*models.User, error) {
			return nil, dErrors.New(dErrors.CodeNotFound, "referenced record not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleListUsersTenantFilter(t *testing.T) {
	tenantID := uuid.New()
	svc := &fakeService{
		listFn: func(_ context.Context, filter *uuid.UUID) ([]*models.User, error) {
			require.NotNil(t, filter)
			assert.Equal(t, tenantID, *filter)
			return []*models.User{sampleUser()}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users?tenant_id="+tenantID.String(), nil)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp UserListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Users, 1)
}

func TestHandleListUsersRejectsBadFilter(t *testing.T) {
	svc := &fakeService{
		listFn: func(context.Context, *uuid.UUID) ([]*models.User, error) {
			t.Fatal("service must not be called for a malformed filter")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/users?tenant_id=nope", nil)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleUpdateUser(t *testing.T) {
	user := sampleUser()
	svc := &fakeService{
		updateFn: func(_ context.Context, id uuid.UUID, changes *models.UpdateUserChanges) (*models.User, error) {
			assert.Equal(t, user.ID, id)
			require.NotNil(t, changes.Enabled)
			assert.False(t, *changes.Enabled)
			assert.Nil(t, changes.Email)
			return user, nil
		},
	}

	body := bytes.NewBufferString(`{"enabled":false}`)
	req := httptest.NewRequest(http.MethodPut, "/users/"+user.ID.String(), body)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleDeleteUser(t *testing.T) {
	userID := uuid.New()
	svc := &fakeService{
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			assert.Equal(t, userID, id)
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/users/"+userID.String(), nil)
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
