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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tenantgrid/tenantgrid/internal/groupmap"
	"github.com/tenantgrid/tenantgrid/internal/tenantrouter"
)

// GroupMappingRepository implements groupmap.Repository against the calling
// tenant's schema.
type GroupMappingRepository struct {
	router *tenantrouter.Router
}

// NewGroupMappingRepository creates a new group mapping repository
func NewGroupMappingRepository(router *tenantrouter.Router) *GroupMappingRepository {
	return &GroupMappingRepository{router: router}
}

func (r *GroupMappingRepository) Create(ctx context.Context, mapping *groupmap.Mapping) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO group_role_mappings (
			id, external_group_id, group_name, role_id, priority, auto_assign, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		mapping.ID, mapping.ExternalGroupID, mapping.GroupName, mapping.RoleID,
		mapping.Priority, mapping.AutoAssign, mapping.CreatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return groupmap.ErrMappingExists
		}
		return fmt.Errorf("failed to insert mapping: %w", err)
	}
	return nil
}

func (r *GroupMappingRepository) Update(ctx context.Context, mapping *groupmap.Mapping) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `
		UPDATE group_role_mappings
		SET role_id = $2, priority = $3, auto_assign = $4, group_name = $5
		WHERE id = $1
	`, mapping.ID, mapping.RoleID, mapping.Priority, mapping.AutoAssign, mapping.GroupName)
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return groupmap.ErrMappingNotFound
	}
	return nil
}

func (r *GroupMappingRepository) Delete(ctx context.Context, id string) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM group_role_mappings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return groupmap.ErrMappingNotFound
	}
	return nil
}

func (r *GroupMappingRepository) GetByID(ctx context.Context, id string) (*groupmap.Mapping, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	var m groupmap.Mapping
	err = pool.QueryRow(ctx, `
		SELECT id, external_group_id, group_name, role_id, priority, auto_assign, created_by, created_at
		FROM group_role_mappings WHERE id = $1
	`, id).Scan(
		&m.ID, &m.ExternalGroupID, &m.GroupName, &m.RoleID,
		&m.Priority, &m.AutoAssign, &m.CreatedBy, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, groupmap.ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to get mapping: %w", err)
	}
	return &m, nil
}

func (r *GroupMappingRepository) ExistsByGroup(ctx context.Context, externalGroupID string) (bool, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return false, err
	}
	var exists bool
	err = pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_role_mappings WHERE external_group_id = $1)
	`, externalGroupID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check mapping: %w", err)
	}
	return exists, nil
}

func (r *GroupMappingRepository) ListAll(ctx context.Context) ([]*groupmap.Mapping, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT id, external_group_id, group_name, role_id, priority, auto_assign, created_by, created_at
		FROM group_role_mappings
		ORDER BY priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

func (r *GroupMappingRepository) ListAutoAssignByGroups(ctx context.Context, groupIDs []string) ([]*groupmap.Mapping, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT id, external_group_id, group_name, role_id, priority, auto_assign, created_by, created_at
		FROM group_role_mappings
		WHERE auto_assign AND external_group_id = ANY($1)
		ORDER BY priority DESC, created_at ASC, external_group_id ASC
	`, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

func scanMappings(rows pgx.Rows) ([]*groupmap.Mapping, error) {
	var mappings []*groupmap.Mapping
	for rows.Next() {
		var m groupmap.Mapping
		if err := rows.Scan(
			&m.ID, &m.ExternalGroupID, &m.GroupName, &m.RoleID,
			&m.Priority, &m.AutoAssign, &m.CreatedBy, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}
