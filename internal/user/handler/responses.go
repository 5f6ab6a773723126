package handler

import (
	"time"

	"concord/internal/user/models"
)

// UserResponse represents a user in HTTP responses.
type UserResponse struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	TenantID   string    `json:"tenant_id,omitempty"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Enabled    bool      `json:"enabled"`
	Roles      []string  `json:"roles"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserListResponse wraps a user listing.
type UserListResponse struct {
	Users []*UserResponse `json:"users"`
}

func toUserResponse(u *models.User) *UserResponse {
	resp := &UserResponse{
		ID:         u.ID.String(),
		ExternalID: u.ExternalID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Enabled:    u.Enabled,
		Roles:      u.Roles,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	if u.TenantID != nil {
		resp.TenantID = u.TenantID.String()
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	return resp
}

func toUserListResponse(users []*models.User) *UserListResponse {
	out := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return &UserListResponse{Users: out}
}
