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
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tenantgrid/tenantgrid/internal/registry"
)

// TenantDefaults describes where newly provisioned tenant schemas live. All
// tenants share one physical database; isolation is per schema.
type TenantDefaults struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// RegistryRepository implements registry.Registry on the platform database.
type RegistryRepository struct {
	db       *DB
	defaults TenantDefaults
}

// NewRegistryRepository creates a new registry repository
func NewRegistryRepository(db *DB, defaults TenantDefaults) *RegistryRepository {
	return &RegistryRepository{db: db, defaults: defaults}
}

// Load retrieves the connection config for an active tenant.
func (r *RegistryRepository) Load(ctx context.Context, tenantID string) (*registry.TenantDBConfig, error) {
	var cfg registry.TenantDBConfig
	err := r.db.pool.QueryRow(ctx, `
		SELECT tenant_id, db_host, db_port, db_name, db_schema, db_user, db_password, db_sslmode, authz_store_id
		FROM tenant_registry
		WHERE tenant_id = $1 AND status = 'active' AND deleted_at IS NULL
	`, tenantID).Scan(
		&cfg.TenantID, &cfg.Host, &cfg.Port, &cfg.Database, &cfg.Schema,
		&cfg.User, &cfg.Password, &cfg.SSLMode, &cfg.AuthzStoreID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, registry.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant config: %w", err)
	}
	return &cfg, nil
}

// Provision registers the tenant and creates its schema with the tenant DDL
// applied. The registry row and the schema are created in one transaction so
// a failed DDL never leaves a routable tenant without tables.
func (r *RegistryRepository) Provision(ctx context.Context, req registry.ProvisionRequest) error {
	schema := schemaName(req.TenantID)

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin provisioning: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	_, err = tx.Exec(ctx, `
		INSERT INTO tenant_registry (
			tenant_id, tenant_type, status, tier, owner_email, max_users,
			db_host, db_port, db_name, db_schema, db_user, db_password, db_sslmode,
			created_at, updated_at
		) VALUES ($1, $2, 'active', $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
	`,
		req.TenantID, req.Type, tierOrDefault(req.Tier), req.OwnerEmail, req.MaxUsers,
		r.defaults.Host, r.defaults.Port, r.defaults.Database, schema,
		r.defaults.User, r.defaults.Password, r.defaults.SSLMode,
		now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return registry.ErrTenantAlreadyExists
		}
		return fmt.Errorf("failed to register tenant: %w", err)
	}

	// Schema names are derived from validated tenant ids, never raw input.
	if _, err := tx.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schema)); err != nil {
		return fmt.Errorf("failed to create tenant schema: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL search_path TO %q`, schema)); err != nil {
		return fmt.Errorf("failed to switch schema: %w", err)
	}
	if _, err := tx.Exec(ctx, TenantSchema); err != nil {
		return fmt.Errorf("failed to apply tenant schema: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit provisioning: %w", err)
	}
	return nil
}

// Exists reports whether the tenant id is registered, in any status. Deleted
// ids stay reserved so a new signup cannot silently inherit old data.
func (r *RegistryRepository) Exists(ctx context.Context, tenantID string) (bool, error) {
	var exists bool
	err := r.db.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM tenant_registry WHERE tenant_id = $1)
	`, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant existence: %w", err)
	}
	return exists, nil
}

// Delete marks the tenant deleted. The schema is kept for the retention
// window and dropped by the cleanup job.
func (r *RegistryRepository) Delete(ctx context.Context, tenantID, deletedBy string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE tenant_registry
		SET status = 'deleted', deleted_at = now(), deleted_by = $2, updated_at = now()
		WHERE tenant_id = $1 AND deleted_at IS NULL
	`, tenantID, deletedBy)
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return registry.ErrTenantNotFound
	}
	return nil
}

func tierOrDefault(tier string) string {
	if tier == "" {
		return "free"
	}
	return tier
}

// schemaName derives a safe schema identifier from the tenant id.
func schemaName(tenantID string) string {
	var b strings.Builder
	b.WriteString("tenant_")
	for _, r := range strings.ToLower(tenantID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
