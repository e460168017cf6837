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

package signup

import (
	"context"
	"fmt"

	"github.com/tenantgrid/tenantgrid/internal/tenantctx"
)

// OrgSettingsWriter persists organization-level settings in the tenant's own
// database.
type OrgSettingsWriter interface {
	CreateDefaults(ctx context.Context, tenantID, companyName, tier string) error
	DeleteForTenant(ctx context.Context, tenantID string) error
}

// CreateOrgSettingsAction seeds default organization settings. It only runs
// for organization signups; personal workspaces carry no org settings.
type CreateOrgSettingsAction struct {
	settings OrgSettingsWriter
}

func NewCreateOrgSettingsAction(settings OrgSettingsWriter) *CreateOrgSettingsAction {
	return &CreateOrgSettingsAction{settings: settings}
}

func (a *CreateOrgSettingsAction) Name() string { return "create-org-settings" }
func (a *CreateOrgSettingsAction) Order() int   { return 70 }

func (a *CreateOrgSettingsAction) Supports(run *Context) bool {
	return run.Type == TypeOrganization
}

func (a *CreateOrgSettingsAction) AlreadyDone(ctx context.Context, run *Context) (bool, error) {
	return false, nil
}

func (a *CreateOrgSettingsAction) Execute(ctx context.Context, run *Context) error {
	ctx = tenantctx.WithTenant(ctx, run.TenantID)
	if err := a.settings.CreateDefaults(ctx, run.TenantID, run.CompanyName, run.Tier); err != nil {
		return fmt.Errorf("create org settings: %w", err)
	}
	return nil
}

func (a *CreateOrgSettingsAction) Rollback(ctx context.Context, run *Context) error {
	ctx = tenantctx.WithTenant(ctx, run.TenantID)
	return a.settings.DeleteForTenant(ctx, run.TenantID)
}
