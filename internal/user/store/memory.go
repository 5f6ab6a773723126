package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"concord/internal/user/models"
	"concord/pkg/platform/sentinel"
)

// InMemory stores users in memory for tests and the demo environment.
type InMemory struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]*models.User
	usernameIdx map[string]uuid.UUID
}

// NewInMemory creates an in-memory user store.
func NewInMemory() *InMemory {
	return &InMemory{
		users:       make(map[uuid.UUID]*models.User),
		usernameIdx: make(map[string]uuid.UUID),
	}
}

// Insert creates the user if the username is not already taken (case-insensitive).
func (s *InMemory) Insert(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(user.Username)
	if _, exists := s.usernameIdx[lower]; exists {
		return fmt.Errorf("username must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	copied := *user
	s.users[user.ID] = &copied
	s.usernameIdx[lower] = user.ID
	return nil
}

// FindByID retrieves a user by its UUID.
func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByUsername retrieves a user by username (case-insensitive).
func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.usernameIdx[strings.ToLower(username)]; ok {
		copied := *s.users[id]
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// List returns users ordered by username, optionally restricted to a tenant.
func (s *InMemory) List(_ context.Context, tenantID *uuid.UUID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		if tenantID != nil && (u.TenantID == nil || *u.TenantID != *tenantID) {
			continue
		}
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// Update rewrites the stored user.
func (s *InMemory) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

// Delete removes the user.
func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.usernameIdx, strings.ToLower(u.Username))
	delete(s.users, id)
	return nil
}
