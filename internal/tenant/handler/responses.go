package handler

import (
	"time"

	"concord/internal/idp"
	"concord/internal/tenant/models"
)

// TenantResponse represents a tenant in HTTP responses.
type TenantResponse struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TenantListResponse wraps a tenant listing.
type TenantListResponse struct {
	Tenants []*TenantResponse `json:"tenants"`
}

// MemberResponse represents an IdP user belonging to a tenant.
type MemberResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// MemberListResponse wraps a tenant membership listing.
type MemberListResponse struct {
	Members []*MemberResponse `json:"members"`
}

func toTenantResponse(t *models.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:          t.ID.String(),
		ExternalID:  t.ExternalID,
		Name:        t.Name,
		DisplayName: t.DisplayName,
		Description: t.Description,
		MemberCount: t.MemberCount,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toTenantListResponse(tenants []*models.Tenant) *TenantListResponse {
	out := make([]*TenantResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toTenantResponse(t))
	}
	return &TenantListResponse{Tenants: out}
}

func toMemberListResponse(members []idp.UserRepresentation) *MemberListResponse {
	out := make([]*MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, &MemberResponse{
			ID:        m.ID,
			Username:  m.Username,
			Email:     m.Email,
			FirstName: m.FirstName,
			LastName:  m.LastName,
		})
	}
	return &MemberListResponse{Members: out}
}
