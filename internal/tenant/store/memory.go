package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"concord/internal/tenant/models"
	"concord/pkg/platform/sentinel"
)

// InMemory stores tenants in memory for tests and the demo environment.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*models.Tenant
	nameIdx map[string]uuid.UUID
}

// NewInMemory creates an in-memory tenant store.
func NewInMemory() *InMemory {
	return &InMemory{
		tenants: make(map[uuid.UUID]*models.Tenant),
		nameIdx: make(map[string]uuid.UUID),
	}
}

// Insert creates the tenant if the name is not already taken (case-insensitive).
func (s *InMemory) Insert(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(tenant.Name)
	if _, exists := s.nameIdx[lower]; exists {
		return fmt.Errorf("tenant name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	copied := *tenant
	s.tenants[tenant.ID] = &copied
	s.nameIdx[lower] = tenant.ID
	return nil
}

// FindByID retrieves a tenant by its UUID.
func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tenants[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByName retrieves a tenant by name (case-insensitive).
func (s *InMemory) FindByName(_ context.Context, name string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.nameIdx[strings.ToLower(name)]; ok {
		copied := *s.tenants[id]
		return &copied, nil
	}
	return nil, sentinel.ErrNotFound
}

// List returns all tenants ordered by name.
func (s *InMemory) List(_ context.Context) ([]*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenants := make([]*models.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		copied := *t
		tenants = append(tenants, &copied)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Name < tenants[j].Name })
	return tenants, nil
}

// Update rewrites the stored tenant.
func (s *InMemory) Update(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *tenant
	s.tenants[tenant.ID] = &copied
	return nil
}

// Delete removes the tenant.
func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.nameIdx, strings.ToLower(t.Name))
	delete(s.tenants, id)
	return nil
}
