package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"concord/internal/role/models"
	"concord/pkg/platform/sentinel"
)

// InMemory stores roles in memory for tests and the demo environment.
type InMemory struct {
	mu      sync.RWMutex
	roles   map[uuid.UUID]*models.Role
	nameIdx map[string]uuid.UUID
}

// NewInMemory creates an in-memory role store.
func NewInMemory() *InMemory {
	return &InMemory{
		roles:   make(map[uuid.UUID]*models.Role),
		nameIdx: make(map[string]uuid.UUID),
	}
}

// Insert creates the role if the name is not already taken (case-insensitive).
func (s *InMemory) Insert(_ context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(role.Name)
	if _, exists := s.nameIdx[lower]; exists {
		return fmt.Errorf("role name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	copied := *role
	s.roles[role.ID] = &copied
	s.nameIdx[lower] = role.ID
	return nil
}

// FindByID retrieves a role by its UUID.
func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.roles[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByName retrieves a role by name (case-insensitive).
func (s *InMemory) FindByName(_ context.Context, name string) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.nameIdx[strings.ToLower(name)]; ok {
		copied := *s.roles[id]
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// List returns all roles ordered by name.
func (s *InMemory) List(_ context.Context) ([]*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]*models.Role, 0, len(s.roles))
	for _, r := range s.roles {
		copied := *r
		roles = append(roles, &copied)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

// Update rewrites the stored role.
func (s *InMemory) Update(_ context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *role
	s.roles[role.ID] = &copied
	return nil
}

// Delete removes the role.
func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.nameIdx, strings.ToLower(r.Name))
	delete(s.roles, id)
	return nil
}
