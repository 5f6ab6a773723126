package models

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "concord/pkg/domain-errors"
)

// User is the local record for an IdP user account. ExternalID references
// the IdP-side principal; TenantID, when set, mirrors the user's membership
// in that tenant's IdP group.
type User struct {
	ID         uuid.UUID  `json:"id"`
	ExternalID string     `json:"external_id"`
	TenantID   *uuid.UUID `json:"tenant_id,omitempty"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name,omitempty"`
	LastName   string     `json:"last_name,omitempty"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Roles is enriched from the IdP at read time, never persisted.
	Roles []string `json:"roles"`
}

// CreateUserInput carries the fields for a new user. Password, TenantID and
// Roles are optional sub-steps applied on the IdP side during creation.
type CreateUserInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	TenantID  *uuid.UUID
	Roles     []string
}

// Validate checks invariants and applies defaults.
func (in *CreateUserInput) Validate() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if len(in.Username) > 128 {
		return dErrors.New(dErrors.CodeValidation, "username must be 128 characters or less")
	}
	if in.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
	}
	seen := make(map[string]struct{}, len(in.Roles))
	for _, role := range in.Roles {
		if strings.TrimSpace(role) == "" {
			return dErrors.New(dErrors.CodeValidation, "role names must not be blank")
		}
		if _, dup := seen[role]; dup {
			return dErrors.New(dErrors.CodeValidation, "duplicate role name: "+role)
		}
		seen[role] = struct{}{}
	}
	return nil
}

// UpdateUserChanges is a partial update; nil fields are left untouched in
// both stores. Username is immutable.
type UpdateUserChanges struct {
	Email     *string
	FirstName *string
	LastName  *string
	Enabled   *bool
}

// Empty reports whether no field was supplied.
func (c *UpdateUserChanges) Empty() bool {
	return c.Email == nil && c.FirstName == nil && c.LastName == nil && c.Enabled == nil
}

// Validate checks the supplied fields.
func (c *UpdateUserChanges) Validate() error {
	if c.Email != nil {
		if _, err := mail.ParseAddress(*c.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
		}
	}
	return nil
}
