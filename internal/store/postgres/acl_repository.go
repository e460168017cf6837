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

	"github.com/jackc/pgx/v5"

	"github.com/tenantgrid/tenantgrid/internal/authz"
	"github.com/tenantgrid/tenantgrid/internal/tenantrouter"
)

// AclRepository implements authz.AclRepository against the calling tenant's
// schema.
type AclRepository struct {
	router *tenantrouter.Router
}

// NewAclRepository creates a new ACL repository
func NewAclRepository(router *tenantrouter.Router) *AclRepository {
	return &AclRepository{router: router}
}

// Upsert replaces the grant for (resource, principal) if one exists.
func (r *AclRepository) Upsert(ctx context.Context, entry *authz.AclEntry) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = pool.Exec(ctx, `
		INSERT INTO acl_entries (
			id, resource_id, resource_type, principal_type, principal_id,
			role_bundle, granted_by, granted_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (resource_id, principal_type, principal_id) DO UPDATE SET
			role_bundle = EXCLUDED.role_bundle,
			granted_by  = EXCLUDED.granted_by,
			granted_at  = EXCLUDED.granted_at,
			expires_at  = EXCLUDED.expires_at
	`,
		entry.ID, entry.ResourceID, entry.ResourceType, entry.PrincipalType,
		entry.PrincipalID, entry.RoleBundle, entry.GrantedBy, now, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert acl entry: %w", err)
	}
	entry.GrantedAt = now
	return nil
}

func (r *AclRepository) Delete(ctx context.Context, entryID string) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM acl_entries WHERE id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("failed to delete acl entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return authz.ErrAclEntryNotFound
	}
	return nil
}

func (r *AclRepository) Get(ctx context.Context, resourceID string, principalType authz.PrincipalType, principalID string, now time.Time) (*authz.AclEntry, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	var entry authz.AclEntry
	err = pool.QueryRow(ctx, `
		SELECT id, resource_id, resource_type, principal_type, principal_id,
			role_bundle, granted_by, granted_at, expires_at
		FROM acl_entries
		WHERE resource_id = $1 AND principal_type = $2 AND principal_id = $3
			AND (expires_at IS NULL OR expires_at > $4)
	`, resourceID, principalType, principalID, now).Scan(
		&entry.ID, &entry.ResourceID, &entry.ResourceType, &entry.PrincipalType,
		&entry.PrincipalID, &entry.RoleBundle, &entry.GrantedBy, &entry.GrantedAt, &entry.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authz.ErrAclEntryNotFound
		}
		return nil, fmt.Errorf("failed to get acl entry: %w", err)
	}
	return &entry, nil
}

func (r *AclRepository) ListByResource(ctx context.Context, resourceID string) ([]*authz.AclEntry, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT id, resource_id, resource_type, principal_type, principal_id,
			role_bundle, granted_by, granted_at, expires_at
		FROM acl_entries
		WHERE resource_id = $1
		ORDER BY granted_at
	`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list acl entries: %w", err)
	}
	defer rows.Close()
	return scanAclEntries(rows)
}

func (r *AclRepository) ListByPrincipal(ctx context.Context, principalType authz.PrincipalType, principalID string, now time.Time) ([]*authz.AclEntry, error) {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `
		SELECT id, resource_id, resource_type, principal_type, principal_id,
			role_bundle, granted_by, granted_at, expires_at
		FROM acl_entries
		WHERE principal_type = $1 AND principal_id = $2
			AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY granted_at
	`, principalType, principalID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list acl entries: %w", err)
	}
	defer rows.Close()
	return scanAclEntries(rows)
}

func scanAclEntries(rows pgx.Rows) ([]*authz.AclEntry, error) {
	var entries []*authz.AclEntry
	for rows.Next() {
		var entry authz.AclEntry
		if err := rows.Scan(
			&entry.ID, &entry.ResourceID, &entry.ResourceType, &entry.PrincipalType,
			&entry.PrincipalID, &entry.RoleBundle, &entry.GrantedBy, &entry.GrantedAt, &entry.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan acl entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
