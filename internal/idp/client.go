// Package idp is the gateway to the identity provider: a token manager for
// the admin credential and a thin client over the admin HTTP API.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"concord/internal/platform/metrics"
	"concord/pkg/platform/sentinel"
)

// TokenSource supplies and refreshes the admin access token.
type TokenSource interface {
	EnsureValid(ctx context.Context) error
	Authenticate(ctx context.Context) error
	Token() string
}

// AdminClient calls the IdP admin API. Every call ensures the shared token
// is valid first, and retries exactly once after re-authenticating when the
// IdP answers 401. All other failures surface unmodified.
type AdminClient struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// ClientOption configures the AdminClient.
type ClientOption func(*AdminClient)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AdminClient) {
		c.httpClient = client
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *AdminClient) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *AdminClient) {
		c.metrics = m
	}
}

// NewAdminClient creates an admin API client rooted at
// {baseURL}/admin/realms/{realm}.
func NewAdminClient(baseURL, realm string, tokens TokenSource, timeout time.Duration, opts ...ClientOption) *AdminClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	c := &AdminClient{
		baseURL: fmt.Sprintf("%s/admin/realms/%s", strings.TrimRight(baseURL, "/"), realm),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Groups (tenant principals)

// CreateGroup creates a top-level group. The IdP does not return the new ID;
// resolve it with FindGroupByName.
func (c *AdminClient) CreateGroup(ctx context.Context, group GroupRepresentation) error {
	return c.do(ctx, "create_group", http.MethodPost, "/groups", group, nil)
}

// FindGroupByName resolves a group by exact name.
// Returns sentinel.ErrNotFound when no group matches.
func (c *AdminClient) FindGroupByName(ctx context.Context, name string) (*GroupRepresentation, error) {
	var groups []GroupRepresentation
	path := "/groups?exact=true&search=" + url.QueryEscape(name)
	if err := c.do(ctx, "find_group", http.MethodGet, path, nil, &groups); err != nil {
		return nil, err
	}
	for i := range groups {
		if groups[i].Name == name {
			return &groups[i], nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// UpdateGroup replaces the group representation.
func (c *AdminClient) UpdateGroup(ctx context.Context, groupID string, group GroupRepresentation) error {
	return c.do(ctx, "update_group", http.MethodPut, "/groups/"+url.PathEscape(groupID), group, nil)
}

// DeleteGroup removes a group by IdP ID.
func (c *AdminClient) DeleteGroup(ctx context.Context, groupID string) error {
	return c.do(ctx, "delete_group", http.MethodDelete, "/groups/"+url.PathEscape(groupID), nil, nil)
}

// DeleteGroupByName resolves the group by name and deletes it. This is the
// compensation path when the local write failed before the ID was recorded.
func (c *AdminClient) DeleteGroupByName(ctx context.Context, name string) error {
	group, err := c.FindGroupByName(ctx, name)
	if err != nil {
		return err
	}
	return c.DeleteGroup(ctx, group.ID)
}

// ListGroupMembers returns the users in a group.
func (c *AdminClient) ListGroupMembers(ctx context.Context, groupID string) ([]UserRepresentation, error) {
	var members []UserRepresentation
	if err := c.do(ctx, "list_group_members", http.MethodGet, "/groups/"+url.PathEscape(groupID)+"/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// Users

// CreateUser creates a user principal. The new ID is resolved with
// FindUserByUsername.
func (c *AdminClient) CreateUser(ctx context.Context, user UserRepresentation) error {
	return c.do(ctx, "create_user", http.MethodPost, "/users", user, nil)
}

// FindUserByUsername resolves a user by exact username.
// Returns sentinel.ErrNotFound when no user matches.
func (c *AdminClient) FindUserByUsername(ctx context.Context, username string) (*UserRepresentation, error) {
	var users []UserRepresentation
	path := "/users?exact=true&username=" + url.QueryEscape(username)
	if err := c.do(ctx, "find_user", http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			return &users[i], nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// UpdateUser replaces the user representation.
func (c *AdminClient) UpdateUser(ctx context.Context, userID string, user UserRepresentation) error {
	return c.do(ctx, "update_user", http.MethodPut, "/users/"+url.PathEscape(userID), user, nil)
}

// DeleteUser removes a user by IdP ID.
func (c *AdminClient) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, "delete_user", http.MethodDelete, "/users/"+url.PathEscape(userID), nil, nil)
}

// DeleteUserByUsername resolves the user by username and deletes it
// (compensation path).
func (c *AdminClient) DeleteUserByUsername(ctx context.Context, username string) error {
	user, err := c.FindUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	return c.DeleteUser(ctx, user.ID)
}

// SetUserPassword sets a password credential on the user.
func (c *AdminClient) SetUserPassword(ctx context.Context, userID, password string, temporary bool) error {
	cred := CredentialRepresentation{Type: "password", Value: password, Temporary: temporary}
	return c.do(ctx, "set_user_password", http.MethodPut, "/users/"+url.PathEscape(userID)+"/reset-password", cred, nil)
}

// AddUserToGroup adds the user to a group.
func (c *AdminClient) AddUserToGroup(ctx context.Context, userID, groupID string) error {
	path := "/users/" + url.PathEscape(userID) + "/groups/" + url.PathEscape(groupID)
	return c.do(ctx, "add_user_to_group", http.MethodPut, path, nil, nil)
}

// RemoveUserFromGroup removes the user from a group.
func (c *AdminClient) RemoveUserFromGroup(ctx context.Context, userID, groupID string) error {
	path := "/users/" + url.PathEscape(userID) + "/groups/" + url.PathEscape(groupID)
	return c.do(ctx, "remove_user_from_group", http.MethodDelete, path, nil, nil)
}

// AssignRealmRole maps a realm role onto the user.
func (c *AdminClient) AssignRealmRole(ctx context.Context, userID string, role RoleRepresentation) error {
	path := "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
	return c.do(ctx, "assign_realm_role", http.MethodPost, path, []RoleRepresentation{role}, nil)
}

// RemoveRealmRole removes a realm role mapping from the user.
func (c *AdminClient) RemoveRealmRole(ctx context.Context, userID string, role RoleRepresentation) error {
	path := "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
	return c.do(ctx, "remove_realm_role", http.MethodDelete, path, []RoleRepresentation{role}, nil)
}

// ListUserRealmRoles returns the realm roles mapped onto the user.
func (c *AdminClient) ListUserRealmRoles(ctx context.Context, userID string) ([]RoleRepresentation, error) {
	var roles []RoleRepresentation
	path := "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
	if err := c.do(ctx, "list_user_realm_roles", http.MethodGet, path, nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// Realm roles

// CreateRealmRole creates a realm role. The new ID is resolved with
// FindRoleByName.
func (c *AdminClient) CreateRealmRole(ctx context.Context, role RoleRepresentation) error {
	return c.do(ctx, "create_role", http.MethodPost, "/roles", role, nil)
}

// FindRoleByName resolves a realm role by name.
// Returns sentinel.ErrNotFound when the role does not exist.
func (c *AdminClient) FindRoleByName(ctx context.Context, name string) (*RoleRepresentation, error) {
	var role RoleRepresentation
	if err := c.do(ctx, "find_role", http.MethodGet, "/roles/"+url.PathEscape(name), nil, &role); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// UpdateRole replaces the role representation, addressed by current name.
func (c *AdminClient) UpdateRole(ctx context.Context, name string, role RoleRepresentation) error {
	return c.do(ctx, "update_role", http.MethodPut, "/roles/"+url.PathEscape(name), role, nil)
}

// DeleteRoleByName removes a realm role by name.
func (c *AdminClient) DeleteRoleByName(ctx context.Context, name string) error {
	return c.do(ctx, "delete_role", http.MethodDelete, "/roles/"+url.PathEscape(name), nil, nil)
}

// do executes one admin API call: ensure the token is valid, send, and on a
// 401 re-authenticate unconditionally and retry exactly once. A second
// failure of any kind propagates. Non-401 failures never retry.
func (c *AdminClient) do(ctx context.Context, operation, method, path string, body, out any) error {
	if err := c.tokens.EnsureValid(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
	}

	start := time.Now()
	err := c.send(ctx, method, path, payload, out)
	if IsUnauthorized(err) {
		c.logger.WarnContext(ctx, "idp returned 401, re-authenticating and retrying once", "operation", operation)
		if authErr := c.tokens.Authenticate(ctx); authErr != nil {
			c.metrics.ObserveIdPRequest(operation, "error", start)
			return authErr
		}
		c.metrics.IncRetriedAfter401()
		err = c.send(ctx, method, path, payload, out)
	}

	c.metrics.ObserveIdPRequest(operation, statusClass(err), start)
	return err
}

// send performs a single HTTP round trip against the admin API.
func (c *AdminClient) send(ctx context.Context, method, path string, payload []byte, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.tokens.Token())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func statusClass(err error) string {
	if err == nil {
		return "2xx"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return "5xx"
		}
		return "4xx"
	}
	return "error"
}
