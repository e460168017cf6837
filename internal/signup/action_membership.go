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

	"github.com/tenantgrid/tenantgrid/internal/membership"
)

// CreateMembershipAction links the identity to the tenant. The signing-up
// user is always the owner of the tenant they create.
type CreateMembershipAction struct {
	members membership.Service
}

func NewCreateMembershipAction(members membership.Service) *CreateMembershipAction {
	return &CreateMembershipAction{members: members}
}

func (a *CreateMembershipAction) Name() string { return "create-membership" }
func (a *CreateMembershipAction) Order() int   { return 40 }

func (a *CreateMembershipAction) Supports(run *Context) bool { return true }

func (a *CreateMembershipAction) AlreadyDone(ctx context.Context, run *Context) (bool, error) {
	exists, err := a.members.Exists(ctx, run.TenantID, run.Email)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (a *CreateMembershipAction) Execute(ctx context.Context, run *Context) error {
	err := a.members.Create(ctx, membership.CreateParams{
		TenantID:   run.TenantID,
		Email:      run.Email,
		IdentityID: run.IdentityProviderUserID,
		IsOwner:    true,
		IsDefault:  run.Type == TypePersonal,
	})
	if err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

func (a *CreateMembershipAction) Rollback(ctx context.Context, run *Context) error {
	return a.members.DeleteForTenant(ctx, run.TenantID, run.Email)
}
