package handler

import (
	"time"

	"concord/internal/role/models"
)

// RoleResponse represents a realm role in HTTP responses.
type RoleResponse struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Composite   bool      `json:"composite"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleListResponse wraps a role listing.
type RoleListResponse struct {
	Roles []*RoleResponse `json:"roles"`
}

func toRoleResponse(r *models.Role) *RoleResponse {
	return &RoleResponse{
		ID:          r.ID.String(),
		ExternalID:  r.ExternalID,
		Name:        r.Name,
		Description: r.Description,
		Composite:   r.Composite,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toRoleListResponse(roles []*models.Role) *RoleListResponse {
	out := make([]*RoleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRoleResponse(r))
	}
	return &RoleListResponse{Roles: out}
}
