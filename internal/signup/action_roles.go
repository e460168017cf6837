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

	"github.com/tenantgrid/tenantgrid/internal/authz"
	"github.com/tenantgrid/tenantgrid/internal/groupmap"
	"github.com/tenantgrid/tenantgrid/internal/tenantctx"
)

// AssignRolesAction grants the initial role inside the new tenant. SSO
// signups resolve the role from the caller's group memberships; everyone
// else created the tenant and becomes its admin.
type AssignRolesAction struct {
	groups      *groupmap.Service
	permissions *authz.PermissionService
}

func NewAssignRolesAction(groups *groupmap.Service, permissions *authz.PermissionService) *AssignRolesAction {
	return &AssignRolesAction{groups: groups, permissions: permissions}
}

func (a *AssignRolesAction) Name() string { return "assign-roles" }
func (a *AssignRolesAction) Order() int   { return 50 }

func (a *AssignRolesAction) Supports(run *Context) bool { return true }

// AlreadyDone always reports false. Role assignment tolerates duplicates, so
// re-running after a partial failure converges on the same state.
func (a *AssignRolesAction) AlreadyDone(ctx context.Context, run *Context) (bool, error) {
	return false, nil
}

func (a *AssignRolesAction) Execute(ctx context.Context, run *Context) error {
	ctx = tenantctx.WithTenant(ctx, run.TenantID)

	role := authz.RoleAdmin
	if run.Type.SSO() && len(run.SSOGroups) > 0 {
		resolved, err := a.groups.EffectiveRole(ctx, run.IdentityProviderUserID, run.TenantID, run.SSOGroups)
		if err != nil {
			return fmt.Errorf("resolve role from groups: %w", err)
		}
		role = resolved
	}

	if err := a.permissions.AssignRole(ctx, run.IdentityProviderUserID, run.TenantID, role, "signup"); err != nil {
		return fmt.Errorf("assign role %q: %w", role, err)
	}
	run.AssignedRole = role
	return nil
}

func (a *AssignRolesAction) Rollback(ctx context.Context, run *Context) error {
	if run.AssignedRole == "" {
		return nil
	}
	ctx = tenantctx.WithTenant(ctx, run.TenantID)
	return a.permissions.RevokeRole(ctx, run.IdentityProviderUserID, run.TenantID, run.AssignedRole, "signup-rollback")
}
