//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"concord/internal/tenant/models"
	"concord/internal/tenant/store"
	"concord/pkg/platform/sentinel"
	"concord/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) newTenant(name string) *models.Tenant {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Tenant{
		ID:          uuid.New(),
		ExternalID:  "grp-" + uuid.NewString(),
		Name:        name,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *PostgresStoreSuite) TestInsertAndFind() {
	ctx := context.Background()
	tenant := s.newTenant("acme")
	tenant.Description = "Acme Corp"

	s.Require().NoError(s.store.Insert(ctx, tenant))

	byID, err := s.store.FindByID(ctx, tenant.ID)
	s.Require().NoError(err)
	s.Equal(tenant.ExternalID, byID.ExternalID)
	s.Equal("Acme Corp", byID.Description)

	byName, err := s.store.FindByName(ctx, "ACME")
	s.Require().NoError(err)
	s.Equal(tenant.ID, byName.ID)
}

func (s *PostgresStoreSuite) TestInsertDuplicateNameConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.newTenant("acme")))

	err := s.store.Insert(ctx, s.newTenant("Acme"))
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrAlreadyUsed))
}

func (s *PostgresStoreSuite) TestListOrdersByName() {
	ctx := context.Background()
	s.Require().NoError(s.store.Insert(ctx, s.newTenant("zeta")))
	s.Require().NoError(s.store.Insert(ctx, s.newTenant("alpha")))

	tenants, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(tenants, 2)
	s.Equal("alpha", tenants[0].Name)
	s.Equal("zeta", tenants[1].Name)
}

func (s *PostgresStoreSuite) TestUpdate() {
	ctx := context.Background()
	tenant := s.newTenant("acme")
	s.Require().NoError(s.store.Insert(ctx, tenant))

	tenant.DisplayName = "Acme Inc"
	tenant.Description = "updated"
	tenant.UpdatedAt = tenant.UpdatedAt.Add(time.Minute)
	s.Require().NoError(s.store.Update(ctx, tenant))

	got, err := s.store.FindByID(ctx, tenant.ID)
	s.Require().NoError(err)
	s.Equal("Acme Inc", got.DisplayName)
	s.Equal("updated", got.Description)
}

func (s *PostgresStoreSuite) TestUpdateMissingRow() {
	err := s.store.Update(context.Background(), s.newTenant("ghost"))
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresStoreSuite) TestDelete() {
	ctx := context.Background()
	tenant := s.newTenant("acme")
	s.Require().NoError(s.store.Insert(ctx, tenant))

	s.Require().NoError(s.store.Delete(ctx, tenant.ID))

	_, err := s.store.FindByID(ctx, tenant.ID)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	s.True(errors.Is(s.store.Delete(ctx, tenant.ID), sentinel.ErrNotFound))
}
