package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "concord/pkg/domain-errors"
)

// Tenant is the local record for an organization, linked to an IdP group.
// ExternalID must reference a live group for the lifetime of the row; the
// dual-store coordinator exists to uphold that invariant.
type Tenant struct {
	ID          uuid.UUID `json:"id"`
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// MemberCount is enriched from the IdP at read time, never persisted.
	MemberCount int `json:"member_count"`
}

// CreateTenantInput carries the fields for a new tenant.
type CreateTenantInput struct {
	Name        string
	DisplayName string
	Description string
}

// Validate checks invariants and applies defaults.
func (in *CreateTenantInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant name is required")
	}
	if len(in.Name) > 128 {
		return dErrors.New(dErrors.CodeValidation, "tenant name must be 128 characters or less")
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Name
	}
	return nil
}

// UpdateTenantChanges is a partial update; nil fields are left untouched in
// both stores.
type UpdateTenantChanges struct {
	DisplayName *string
	Description *string
}

// Empty reports whether no field was supplied.
func (c *UpdateTenantChanges) Empty() bool {
	return c.DisplayName == nil && c.Description == nil
}
