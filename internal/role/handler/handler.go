package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"concord/internal/role/models"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	request "concord/pkg/platform/middleware/request"
)

// Service defines the interface for role operations.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	CreateRole(ctx context.Context, in *models.CreateRoleInput) (*models.Role, error)
	GetRole(ctx context.Context, id uuid.UUID) (*models.Role, error)
	ListRoles(ctx context.Context) ([]*models.Role, error)
	UpdateRole(ctx context.Context, id uuid.UUID, changes *models.UpdateRoleChanges) (*models.Role, error)
	DeleteRole(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/roles", h.HandleCreateRole)
	r.Get("/roles", h.HandleListRoles)
	r.Get("/roles/{id}", h.HandleGetRole)
	r.Put("/roles/{id}", h.HandleUpdateRole)
	r.Delete("/roles/{id}", h.HandleDeleteRole)
}

// HandleCreateRole creates a realm role.
func (h *Handler) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[CreateRoleRequest](w, r, h.logger)
	if !ok {
		return
	}

	role, err := h.service.CreateRole(ctx, req.ToInput())
	if err != nil {
		h.logger.ErrorContext(ctx, "create role failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toRoleResponse(role))
}

// HandleGetRole returns the role with the live composite flag.
func (h *Handler) HandleGetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	roleID, ok := parseID(w, r)
	if !ok {
		return
	}

	role, err := h.service.GetRole(ctx, roleID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get role failed", "error", err, "request_id", requestID, "role_id", roleID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRoleResponse(role))
}

// HandleListRoles returns all roles.
func (h *Handler) HandleListRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	roles, err := h.service.ListRoles(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list roles failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRoleListResponse(roles))
}

// HandleUpdateRole applies a partial update.
func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	roleID, ok := parseID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeJSON[UpdateRoleRequest](w, r, h.logger)
	if !ok {
		return
	}

	role, err := h.service.UpdateRole(ctx, roleID, req.ToChanges())
	if err != nil {
		h.logger.ErrorContext(ctx, "update role failed", "error", err, "request_id", requestID, "role_id", roleID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toRoleResponse(role))
}

// HandleDeleteRole removes the role from both stores.
func (h *Handler) HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	roleID, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteRole(ctx, roleID); err != nil {
		h.logger.ErrorContext(ctx, "delete role failed", "error", err, "request_id", requestID, "role_id", roleID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid role id"))
		return uuid.Nil, false
	}
	return id, true
}
