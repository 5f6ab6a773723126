package idp

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError indicates the client-credentials grant against the token
// endpoint failed. The token state is left unauthenticated.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("idp authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx response from the IdP admin API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("idp admin api: status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("idp admin api: status %d", e.Status)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsUnauthorized reports whether err is an HTTP 401 from the admin API.
// The 401 case is the only one eligible for the retry-once policy.
func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

// IsConflict reports whether err is an HTTP 409 from the admin API.
func IsConflict(err error) bool {
	return IsStatus(err, http.StatusConflict)
}
