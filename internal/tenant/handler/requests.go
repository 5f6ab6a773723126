package handler

import (
	"strings"

	"concord/internal/tenant/models"
	dErrors "concord/pkg/domain-errors"
)

// CreateTenantRequest carries the fields for a new tenant.
type CreateTenantRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Normalize applies business defaults and sanitizes inputs.
func (r *CreateTenantRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Description = strings.TrimSpace(r.Description)
}

// Validate checks that the request is well-formed. Semantic validation
// (length limits, defaults) lives on the service input type.
func (r *CreateTenantRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

// ToInput converts the request into a service input.
func (r *CreateTenantRequest) ToInput() *models.CreateTenantInput {
	return &models.CreateTenantInput{
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Description: r.Description,
	}
}

// UpdateTenantRequest is a partial update; absent fields are left untouched.
type UpdateTenantRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
}

// Normalize applies business defaults and sanitizes inputs.
func (r *UpdateTenantRequest) Normalize() {
	if r.DisplayName != nil {
		trimmed := strings.TrimSpace(*r.DisplayName)
		r.DisplayName = &trimmed
	}
	if r.Description != nil {
		trimmed := strings.TrimSpace(*r.Description)
		r.Description = &trimmed
	}
}

// ToChanges converts the request into a service change set.
func (r *UpdateTenantRequest) ToChanges() *models.UpdateTenantChanges {
	return &models.UpdateTenantChanges{
		DisplayName: r.DisplayName,
		Description: r.Description,
	}
}
