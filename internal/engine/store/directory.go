// internal/engine/store/directory.go

// Package store holds the Postgres-backed collaborators the engine reads
// from and writes to: the tenant directory, the entity tables, and the
// in-app notification feed.
package store

import (
	"context"
	"database/sql"

	apperrors "subtrack-notifier/internal/common/errors"
	"subtrack-notifier/internal/models"
)

// DirectoryStore reads tenant-scoped users, employees, and departments.
// It satisfies directory.Store.
type DirectoryStore struct {
	db *sql.DB
}

func NewDirectoryStore(db *sql.DB) *DirectoryStore {
	return &DirectoryStore{db: db}
}

func (s *DirectoryStore) ListAdmins(ctx context.Context, tenantID string) ([]models.User, error) {
	const query = `SELECT id, email, name FROM users WHERE tenant_id = $1 AND is_admin = TRUE ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, apperrors.NewDirectoryQueryFailedError(tenantID, err)
	}
	defer rows.Close()

	var admins []models.User
	for rows.Next() {
		u := models.User{TenantID: tenantID, IsAdmin: true}
		if err := rows.Scan(&u.ID, &u.Email, &u.Name); err != nil {
			return nil, apperrors.NewDirectoryQueryFailedError(tenantID, err)
		}
		admins = append(admins, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDirectoryQueryFailedError(tenantID, err)
	}
	return admins, nil
}

func (s *DirectoryStore) FindUserByEmail(ctx context.Context, tenantID, email string) (*models.User, error) {
	const query = `SELECT id, email, name, is_admin FROM users WHERE tenant_id = $1 AND LOWER(email) = LOWER($2)`
	return s.scanUser(s.db.QueryRowContext(ctx, query, tenantID, email), tenantID)
}

func (s *DirectoryStore) FindUserByName(ctx context.Context, tenantID, name string) (*models.User, error) {
	const query = `SELECT id, email, name, is_admin FROM users WHERE tenant_id = $1 AND LOWER(name) = LOWER($2)`
	return s.scanUser(s.db.QueryRowContext(ctx, query, tenantID, name), tenantID)
}

func (s *DirectoryStore) scanUser(row *sql.Row, tenantID string) (*models.User, error) {
	u := models.User{TenantID: tenantID}
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDirectoryQueryFailedError(tenantID, err)
	}
	return &u, nil
}

func (s *DirectoryStore) FindEmployee(ctx context.Context, tenantID, nameOrEmail string) (*models.Employee, error) {
	const query = `SELECT id, name, email, department FROM employees
		WHERE tenant_id = $1 AND (LOWER(name) = LOWER($2) OR LOWER(email) = LOWER($2))`

	e := models.Employee{TenantID: tenantID}
	var department sql.NullString
	err := s.db.QueryRowContext(ctx, query, tenantID, nameOrEmail).
		Scan(&e.ID, &e.Name, &e.Email, &department)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDirectoryQueryFailedError(tenantID, err)
	}
	e.Department = department.String
	return &e, nil
}

func (s *DirectoryStore) GetDepartment(ctx context.Context, tenantID, name string) (*models.Department, error) {
	const query = `SELECT id, name, head FROM departments WHERE tenant_id = $1 AND LOWER(name) = LOWER($2)`

	d := models.Department{TenantID: tenantID}
	var head sql.NullString
	err := s.db.QueryRowContext(ctx, query, tenantID, name).Scan(&d.ID, &d.Name, &head)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDirectoryQueryFailedError(tenantID, err)
	}
	d.Head = head.String
	return &d, nil
}
