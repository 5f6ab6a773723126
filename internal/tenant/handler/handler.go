package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"concord/internal/idp"
	"concord/internal/tenant/models"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	request "concord/pkg/platform/middleware/request"
)

// Service defines the interface for tenant operations.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	CreateTenant(ctx context.Context, in *models.CreateTenantInput) (*models.Tenant, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListTenants(ctx context.Context) ([]*models.Tenant, error)
	ListMembers(ctx context.Context, id uuid.UUID) ([]idp.UserRepresentation, error)
	UpdateTenant(ctx context.Context, id uuid.UUID, changes *models.UpdateTenantChanges) (*models.Tenant, error)
	DeleteTenant(ctx context.Context, id uuid.UUID) error
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/tenants", h.HandleCreateTenant)
	r.Get("/tenants", h.HandleListTenants)
	r.Get("/tenants/{id}", h.HandleGetTenant)
	r.Get("/tenants/{id}/members", h.HandleListMembers)
	r.Put("/tenants/{id}", h.HandleUpdateTenant)
	r.Delete("/tenants/{id}", h.HandleDeleteTenant)
}

// HandleCreateTenant creates a tenant.
func (h *Handler) HandleCreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[CreateTenantRequest](w, r, h.logger)
	if !ok {
		return
	}

	tenant, err := h.service.CreateTenant(ctx, req.ToInput())
	if err != nil {
		h.logger.ErrorContext(ctx, "create tenant failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toTenantResponse(tenant))
}

// HandleGetTenant returns tenant metadata with the live member count.
func (h *Handler) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	tenantID, ok := parseID(w, r)
	if !ok {
		return
	}

	tenant, err := h.service.GetTenant(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get tenant failed", "error", err, "request_id", requestID, "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// HandleListTenants returns all tenants.
func (h *Handler) HandleListTenants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	tenants, err := h.service.ListTenants(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list tenants failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toTenantListResponse(tenants))
}

// HandleListMembers returns the IdP users belonging to the tenant.
func (h *Handler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	tenantID, ok := parseID(w, r)
	if !ok {
		return
	}

	members, err := h.service.ListMembers(ctx, tenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "list tenant members failed", "error", err, "request_id", requestID, "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toMemberListResponse(members))
}

// HandleUpdateTenant applies a partial update.
func (h *Handler) HandleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	tenantID, ok := parseID(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeJSON[UpdateTenantRequest](w, r, h.logger)
	if !ok {
		return
	}

	tenant, err := h.service.UpdateTenant(ctx, tenantID, req.ToChanges())
	if err != nil {
		h.logger.ErrorContext(ctx, "update tenant failed", "error", err, "request_id", requestID, "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// HandleDeleteTenant removes the tenant from both stores.
func (h *Handler) HandleDeleteTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	tenantID, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTenant(ctx, tenantID); err != nil {
		h.logger.ErrorContext(ctx, "delete tenant failed", "error", err, "request_id", requestID, "tenant_id", tenantID)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid tenant id"))
		return uuid.Nil, false
	}
	return id, true
}
