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
	"fmt"

	"github.com/tenantgrid/tenantgrid/internal/tenantrouter"
)

// OrgSettingsRepository persists organization settings in the tenant's
// schema. It backs the final provisioning action for organization signups.
type OrgSettingsRepository struct {
	router *tenantrouter.Router
}

// NewOrgSettingsRepository creates a new org settings repository
func NewOrgSettingsRepository(router *tenantrouter.Router) *OrgSettingsRepository {
	return &OrgSettingsRepository{router: router}
}

// CreateDefaults seeds the settings row. Idempotent: re-provisioning an
// organization keeps the existing row.
func (r *OrgSettingsRepository) CreateDefaults(ctx context.Context, tenantID, companyName, tier string) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
		INSERT INTO org_settings (tenant_id, company_name, tier)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id) DO NOTHING
	`, tenantID, companyName, tierOrDefault(tier))
	if err != nil {
		return fmt.Errorf("failed to create org settings: %w", err)
	}
	return nil
}

// DeleteForTenant removes the settings row during signup rollback.
func (r *OrgSettingsRepository) DeleteForTenant(ctx context.Context, tenantID string) error {
	pool, err := tenantPool(ctx, r.router)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `DELETE FROM org_settings WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete org settings: %w", err)
	}
	return nil
}
