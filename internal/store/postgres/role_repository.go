// Copyright 2026 The TenantGrid Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tenantgrid/tenantgrid/internal/authz"
	"github.com/tenantgrid/tenantgrid/internal/tenantrouter"
)

// RoleRepository implements authz.RoleRepository against the calling tenant's
// schema. Every query resolves the pool through the router, so the same
// repository value serves all tenants.
type RoleRepository struct {
	router *tenantrouter.Router
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(router *tenantrouter.Router) *RoleRepository {
	return &RoleRepository{router: router}
}

func (r *RoleRepository) Create(ctx context.Context, role *authz.Role) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = pool.Exec(ctx, `
		INSERT INTO roles (id, name, scope, access_level, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, role.ID, role.Name, role.Scope, role.AccessLevel, role.Description, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return authz.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to insert role: %w", err)
	}
	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

func (r *RoleRepository) GetByID(ctx context.Context, id string) (*authz.Role, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	var role authz.Role
	err = pool.QueryRow(ctx, `
		SELECT id, name, scope, access_level, description, created_at, updated_at
		FROM roles WHERE id = $1
	`, id).Scan(
		&role.ID, &role.Name, &role.Scope, &role.AccessLevel,
		&role.Description, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return &role, nil
}

func (r *RoleRepository) List(ctx context.Context, scope *authz.Scope) ([]*authz.Role, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT id, name, scope, access_level, description, created_at, updated_at
		FROM roles`
	args := []any{}
	if scope != nil {
		query += ` WHERE scope = $1`
		args = append(args, *scope)
	}
	query += ` ORDER BY name`

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*authz.Role
	for rows.Next() {
		var role authz.Role
		if err := rows.Scan(
			&role.ID, &role.Name, &role.Scope, &role.AccessLevel,
			&role.Description, &role.CreatedAt, &role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrRoleNotFound
	}
	return nil
}

// AssignmentRepository implements authz.AssignmentRepository against the
// calling tenant's schema.
type AssignmentRepository struct {
	router *tenantrouter.Router
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(router *tenantrouter.Router) *AssignmentRepository {
	return &AssignmentRepository{router: router}
}

func (r *AssignmentRepository) Create(ctx context.Context, assignment *authz.UserRoleAssignment) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now()
	_, err = pool.Exec(ctx, `
		INSERT INTO user_role_assignments (id, user_id, tenant_id, role_id, assigned_by, assigned_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		assignment.ID, assignment.UserID, assignment.TenantID, assignment.RoleID,
		assignment.AssignedBy, now, assignment.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return authz.ErrAssignmentAlreadyExists
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	assignment.AssignedAt = now
	return nil
}

func (r *AssignmentRepository) Delete(ctx context.Context, userID, tenantID, roleID string) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
		DELETE FROM user_role_assignments
		WHERE user_id = $1 AND tenant_id = $2 AND role_id = $3
	`, userID, tenantID, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrAssignmentNotFound
	}
	return nil
}

func (r *AssignmentRepository) ListActive(ctx context.Context, userID, tenantID string, now time.Time) ([]*authz.UserRoleAssignment, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, tenant_id, role_id, assigned_by, assigned_at, expires_at
		FROM user_role_assignments
		WHERE user_id = $1 AND tenant_id = $2 AND (expires_at IS NULL OR expires_at > $3)
	`, userID, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*authz.UserRoleAssignment
	for rows.Next() {
		var a authz.UserRoleAssignment
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.TenantID, &a.RoleID,
			&a.AssignedBy, &a.AssignedAt, &a.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

func (r *AssignmentRepository) Exists(ctx context.Context, userID, tenantID, roleID string) (bool, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return false, err
	}
	var exists bool
	err = pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_role_assignments
			WHERE user_id = $1 AND tenant_id = $2 AND role_id = $3
		)
	`, userID, tenantID, roleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return exists, nil
}

// RolePermissionRepository implements authz.RolePermissionRepository against
// the calling tenant's schema.
type RolePermissionRepository struct {
	router *tenantrouter.Router
}

// NewRolePermissionRepository creates a new role-permission repository
func NewRolePermissionRepository(router *tenantrouter.Router) *RolePermissionRepository {
	return &RolePermissionRepository{router: router}
}

func (r *RolePermissionRepository) HasPermission(ctx context.Context, roleID, resource, action string) (bool, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return false, err
	}
	var granted bool
	err = pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM role_permissions
			WHERE role_id = $1 AND resource = $2 AND action = $3
		)
	`, roleID, resource, action).Scan(&granted)
	if err != nil {
		return false, fmt.Errorf("failed to check role permission: %w", err)
	}
	return granted, nil
}

func (r *RolePermissionRepository) ListForRole(ctx context.Context, roleID string) ([]string, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT resource, action FROM role_permissions
		WHERE role_id = $1
		ORDER BY resource, action
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	var permissions []string
	for rows.Next() {
		var resource, action string
		if err := rows.Scan(&resource, &action); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		permissions = append(permissions, resource+":"+action)
	}
	return permissions, rows.Err()
}
