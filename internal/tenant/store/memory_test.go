package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"concord/internal/tenant/models"
	"concord/pkg/platform/sentinel"
)

func newTenant(name string) *models.Tenant {
	now := time.Now()
	return &models.Tenant{
		ID:          uuid.New(),
		ExternalID:  "ext-" + name,
		Name:        name,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestInsertRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if err := s.Insert(ctx, newTenant("Acme")); err != nil {
		t.Fatalf("unexpected error inserting tenant: %v", err)
	}
	if err := s.Insert(ctx, newTenant("acme")); !errors.Is(err, sentinel.ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}
}

func TestFindByIDAndName(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tenant := newTenant("acme")

	if err := s.Insert(ctx, tenant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID, err := s.FindByID(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byID.ExternalID != tenant.ExternalID {
		t.Fatalf("expected external id %s, got %s", tenant.ExternalID, byID.ExternalID)
	}

	if _, err := s.FindByName(ctx, "ACME"); err != nil {
		t.Fatalf("expected case-insensitive name lookup, got %v", err)
	}
	if _, err := s.FindByID(ctx, uuid.New()); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteFreesName(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tenant := newTenant("acme")

	if err := s.Insert(ctx, tenant); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Delete(ctx, tenant.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Insert(ctx, newTenant("acme")); err != nil {
		t.Fatalf("expected name to be reusable after delete, got %v", err)
	}
	if err := s.Delete(ctx, tenant.ID); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrdersByName(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	for _, name := range []string{"zeta", "acme", "mid"} {
		if err := s.Insert(ctx, newTenant(name)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	tenants, err := s.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tenants) != 3 || tenants[0].Name != "acme" || tenants[2].Name != "zeta" {
		t.Fatalf("expected name-ordered list, got %v", tenants)
	}
}
