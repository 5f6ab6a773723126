package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"concord/internal/user/models"
	"concord/pkg/platform/sentinel"
)

func newUser(username string, tenantID *uuid.UUID) *models.User {
	now := time.Now()
	return &models.User{
		ID:         uuid.New(),
		ExternalID: "ext-" + username,
		TenantID:   tenantID,
		Username:   username,
		Email:      username + "@example.com",
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestInsertRejectsDuplicateUsername(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if err := s.Insert(ctx, newUser("Alice", nil)); err != nil {
		t.Fatalf("unexpected error inserting user: %v", err)
	}
	if err := s.Insert(ctx, newUser("alice", nil)); !errors.Is(err, sentinel.ErrAlreadyUsed) {
		t.Fatalf("expected ErrAlreadyUsed, got %v", err)
	}
}

func TestFindByUsernameCaseInsensitive(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	user := newUser("alice", nil)

	if err := s.Insert(ctx, user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := s.FindByUsername(ctx, "ALICE")
	if err != nil {
		t.Fatalf("expected case-insensitive lookup, got %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, found.ID)
	}
	if _, err := s.FindByID(ctx, uuid.New()); !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFiltersByTenant(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tenantA := uuid.New()
	tenantB := uuid.New()

	for _, u := range []*models.User{
		newUser("carol", &tenantA),
		newUser("alice", &tenantA),
		newUser("bob", &tenantB),
		newUser("dave", nil),
	} {
		if err := s.Insert(ctx, u); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, err := s.List(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 4 || all[0].Username != "alice" {
		t.Fatalf("expected 4 users ordered by username, got %v", all)
	}

	scoped, err := s.List(ctx, &tenantA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scoped) != 2 || scoped[0].Username != "alice" || scoped[1].Username != "carol" {
		t.Fatalf("expected tenant A's users, got %v", scoped)
	}
}

func TestDeleteFreesUsername(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	user := newUser("alice", nil)

	if err := s.Insert(ctx, user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Delete(ctx, user.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Insert(ctx, newUser("alice", nil)); err != nil {
		t.Fatalf("expected username to be reusable after delete, got %v", err)
	}
}
