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

	"github.com/tenantgrid/tenantgrid/internal/registry"
)

// ProvisionTenantAction registers the tenant in the platform registry so the
// router can resolve its database from then on.
type ProvisionTenantAction struct {
	reg registry.Registry
}

func NewProvisionTenantAction(reg registry.Registry) *ProvisionTenantAction {
	return &ProvisionTenantAction{reg: reg}
}

func (a *ProvisionTenantAction) Name() string { return "provision-tenant" }
func (a *ProvisionTenantAction) Order() int   { return 20 }

func (a *ProvisionTenantAction) Supports(run *Context) bool { return true }

// AlreadyDone treats an existing registry entry as this action's target state.
// SSO signups can legitimately arrive after the tenant was provisioned during
// the identity provider's first callback.
func (a *ProvisionTenantAction) AlreadyDone(ctx context.Context, run *Context) (bool, error) {
	exists, err := a.reg.Exists(ctx, run.TenantID)
	if err != nil {
		return false, fmt.Errorf("check tenant registration: %w", err)
	}
	return exists, nil
}

func (a *ProvisionTenantAction) Execute(ctx context.Context, run *Context) error {
	req := registry.ProvisionRequest{
		TenantID:   run.TenantID,
		Type:       registry.TypeOrganization,
		OwnerEmail: run.Email,
		Tier:       run.Tier,
		MaxUsers:   maxUsersForTier(run.Tier),
	}
	if run.Type == TypePersonal {
		req.Type = registry.TypePersonal
		req.MaxUsers = 1
	}
	if err := a.reg.Provision(ctx, req); err != nil {
		return fmt.Errorf("provision tenant %q: %w", run.TenantID, err)
	}
	return nil
}

func (a *ProvisionTenantAction) Rollback(ctx context.Context, run *Context) error {
	return a.reg.Delete(ctx, run.TenantID, "signup-rollback")
}

func maxUsersForTier(tier string) int {
	switch tier {
	case "enterprise":
		return 0 // unlimited
	case "pro":
		return 50
	default:
		return 5
	}
}
