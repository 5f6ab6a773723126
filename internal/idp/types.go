package idp

// Wire representations for the IdP admin API. Field names follow the
// provider's JSON contract; omitted fields are left untouched by updates.

// GroupRepresentation is the IdP-side record backing a tenant.
type GroupRepresentation struct {
	ID         string              `json:"id,omitempty"`
	Name       string              `json:"name"`
	Path       string              `json:"path,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// UserRepresentation is the IdP-side record backing a user.
type UserRepresentation struct {
	ID         string              `json:"id,omitempty"`
	Username   string              `json:"username"`
	Email      string              `json:"email,omitempty"`
	FirstName  string              `json:"firstName,omitempty"`
	LastName   string              `json:"lastName,omitempty"`
	Enabled    *bool               `json:"enabled,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// RoleRepresentation is the IdP-side record backing a realm role.
type RoleRepresentation struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite,omitempty"`
}

// CredentialRepresentation carries a password reset payload.
type CredentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// Bool returns a pointer to b, for optional representation fields.
func Bool(b bool) *bool {
	return &b
}
