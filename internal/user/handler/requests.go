package handler

import (
	"strings"

	"github.com/google/uuid"

	"concord/internal/user/models"
	dErrors "concord/pkg/domain-errors"
)

// CreateUserRequest carries the fields for a new user. TenantID and Roles
// trigger IdP-side membership and role-mapping sub-steps during creation.
type CreateUserRequest struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Password  string   `json:"password"`
	TenantID  string   `json:"tenant_id"`
	Roles     []string `json:"roles"`
}

// Normalize applies business defaults and sanitizes inputs.
func (r *CreateUserRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.TenantID = strings.TrimSpace(r.TenantID)
	for i, role := range r.Roles {
		r.Roles[i] = strings.TrimSpace(role)
	}
}

// Validate checks that the request is well-formed.
func (r *CreateUserRequest) Validate() error {
	if r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.TenantID != "" {
		if _, err := uuid.Parse(r.TenantID); err != nil {
			return dErrors.New(dErrors.CodeValidation, "tenant_id is not a valid id")
		}
	}
	return nil
}

// ToInput converts the request into a service input.
func (r *CreateUserRequest) ToInput() *models.CreateUserInput {
	in := &models.CreateUserInput{
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Password:  r.Password,
		Roles:     r.Roles,
	}
	if r.TenantID != "" {
		id := uuid.MustParse(r.TenantID)
		in.TenantID = &id
	}
	return in
}

// UpdateUserRequest is a partial update; absent fields are left untouched.
// Username is immutable.
type UpdateUserRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Enabled   *bool   `json:"enabled"`
}

// Normalize applies business defaults and sanitizes inputs.
func (r *UpdateUserRequest) Normalize() {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*v)
		return &trimmed
	}
	r.Email = trim(r.Email)
	r.FirstName = trim(r.FirstName)
	r.LastName = trim(r.LastName)
}

// ToChanges converts the request into a service change set.
func (r *UpdateUserRequest) ToChanges() *models.UpdateUserChanges {
	return &models.UpdateUserChanges{
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Enabled:   r.Enabled,
	}
}
