package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"concord/internal/role/models"
	"concord/pkg/platform/sentinel"
)

// Postgres persists roles in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed role store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Insert creates the role row. Name and external_id are unique.
func (s *Postgres) Insert(ctx context.Context, role *models.Role) error {
	query := `
		INSERT INTO roles (id, external_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		role.ID,
		role.ExternalID,
		role.Name,
		role.Description,
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("role name must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// FindByID retrieves a role by its UUID.
func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Role, error) {
	query := `
		SELECT id, external_id, name, description, created_at, updated_at
		FROM roles
		WHERE id = $1
	`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find role by id: %w", err)
	}
	return role, nil
}

// FindByName retrieves a role by name (case-insensitive).
func (s *Postgres) FindByName(ctx context.Context, name string) (*models.Role, error) {
	query := `
		SELECT id, external_id, name, description, created_at, updated_at
		FROM roles
		WHERE lower(name) = lower($1)
	`
	role, err := scanRole(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find role by name: %w", err)
	}
	return role, nil
}

// List returns all roles ordered by name.
func (s *Postgres) List(ctx context.Context) ([]*models.Role, error) {
	query := `
		SELECT id, external_id, name, description, created_at, updated_at
		FROM roles
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// Update rewrites the mutable columns.
func (s *Postgres) Update(ctx context.Context, role *models.Role) error {
	query := `
		UPDATE roles
		SET description = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, role.ID, role.Description, role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireRowAffected(result)
}

// Delete removes the role row.
func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	return requireRowAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*models.Role, error) {
	var role models.Role
	err := row.Scan(
		&role.ID,
		&role.ExternalID,
		&role.Name,
		&role.Description,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func requireRowAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
