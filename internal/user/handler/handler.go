package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"concord/internal/user/models"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	request "concord/pkg/platform/middleware/request"
)

// Service defines the interface for user operations.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	CreateUser(ctx context.Context, in *models.CreateUserInput) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, tenantID *uuid.UUID) ([]*models.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, changes *models.UpdateUserChanges) (*models.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/users", h.HandleCreateUser)
	r.Get("/users", h.HandleListUsers)
	r.Get("/users/{id}", h.HandleGetUser)
	r.Put("/users/{id}", h.HandleUpdateUser)
	r.Delete("/users/{id}", h.HandleDeleteUser)
}

// HandleCreateUser creates a user.
func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[CreateUserRequest](w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.service.CreateUser(ctx, req.ToInput())
	if err != nil {
		h.logger.ErrorContext(ctx, "create user failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleGetUser returns the user with live role enrichment.
func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	userID, ok := parseID(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUser(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get user failed", "error", err, "request_id", requestID, "user_id", userID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleListUsers returns all users, optionally scoped by ?tenant_id=.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	var tenantID *uuid.UUID
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant_id filter"))
			return
		}
		tenantID = &id
	}

	users, err := h.service.ListUsers(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list users failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toUserListResponse(users))
}

// HandleUpdateUser applies a partial update.
func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	userID, ok := parseID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeJSON[UpdateUserRequest](w, r, h.logger)
	if !ok {
		return
	}

	user, err := h.service.UpdateUser(ctx, userID, req.ToChanges())
	if err != nil {
		h.logger.ErrorContext(ctx, "update user failed", "error", err, "request_id", requestID, "user_id", userID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleDeleteUser removes the user from both stores.
func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	userID, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(ctx, userID); err != nil {
		h.logger.ErrorContext(ctx, "delete user failed", "error", err, "request_id", requestID, "user_id", userID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return uuid.Nil, false
	}
	return id, true
}
