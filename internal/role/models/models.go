package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "concord/pkg/domain-errors"
)

// Role is the local record for an IdP realm role.
type Role struct {
	ID          uuid.UUID `json:"id"`
	ExternalID  string    `json:"external_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Composite is enriched from the IdP at read time, never persisted.
	Composite bool `json:"composite"`
}

// CreateRoleInput carries the fields for a new role.
type CreateRoleInput struct {
	Name        string
	Description string
}

// Validate checks invariants.
func (in *CreateRoleInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "role name is required")
	}
	if len(in.Name) > 128 {
		return dErrors.New(dErrors.CodeValidation, "role name must be 128 characters or less")
	}
	return nil
}

// UpdateRoleChanges is a partial update; nil fields are left untouched in
// both stores. The role name is immutable because the IdP keys realm roles
// by name.
type UpdateRoleChanges struct {
	Description *string
}

// Empty reports whether no field was supplied.
func (c *UpdateRoleChanges) Empty() bool {
	return c.Description == nil
}
