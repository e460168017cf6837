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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tenantgrid/tenantgrid/internal/membership"
)

// MembershipRepository implements membership.Service on the platform database.
type MembershipRepository struct {
	db *DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Exists reports whether the email holds an active membership in the tenant.
func (r *MembershipRepository) Exists(ctx context.Context, tenantID, email string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM memberships
			WHERE tenant_id = $1 AND email = $2 AND deleted_at IS NULL
		)
	`, tenantID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// Create inserts a membership row.
func (r *MembershipRepository) Create(ctx context.Context, params membership.CreateParams) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO memberships (id, tenant_id, email, identity_id, role_hint, is_owner, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.NewString(), params.TenantID, params.Email, params.IdentityID,
		params.RoleHint, params.IsOwner, params.IsDefault,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return membership.ErrMembershipExists
		}
		return fmt.Errorf("failed to insert membership: %w", err)
	}
	return nil
}

// CountActive counts the email's active memberships across all tenants.
func (r *MembershipRepository) CountActive(ctx context.Context, email string) (int, error) {
	var count int
	err := r.db.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM memberships
		WHERE email = $1 AND deleted_at IS NULL
	`, email).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count memberships: %w", err)
	}
	return count, nil
}

// DeleteForTenant soft-deletes the membership.
func (r *MembershipRepository) DeleteForTenant(ctx context.Context, tenantID, email string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE memberships
		SET deleted_at = now()
		WHERE tenant_id = $1 AND email = $2 AND deleted_at IS NULL
	`, tenantID, email)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return membership.ErrMembershipNotFound
	}
	return nil
}
