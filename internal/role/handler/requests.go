package handler

import (
	"strings"

	"concord/internal/role/models"
	dErrors "concord/pkg/domain-errors"
)

// CreateRoleRequest carries the fields for a new realm role.
type CreateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Normalize applies business defaults and sanitizes inputs.
func (r *CreateRoleRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

// Validate checks that the request is well-formed.
func (r *CreateRoleRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// ToInput converts the request into a service input.
func (r *CreateRoleRequest) ToInput() *models.CreateRoleInput {
	return &models.CreateRoleInput{
		Name:        r.Name,
		Description: r.Description,
	}
}

// UpdateRoleRequest is a partial update. The role name is immutable.
type UpdateRoleRequest struct {
	Description *string `json:"description"`
}

// Normalize applies business defaults and sanitizes inputs.
func (r *UpdateRoleRequest) Normalize() {
	if r.Description != nil {
		trimmed := strings.TrimSpace(*r.Description)
		r.Description = &trimmed
	}
}

// ToChanges converts the request into a service change set.
func (r *UpdateRoleRequest) ToChanges() *models.UpdateRoleChanges {
	return &models.UpdateRoleChanges{Description: r.Description}
}
