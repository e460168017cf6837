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
	"errors"
	"fmt"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/idp"
)

// ErrEmailTaken is returned when a password signup targets an email that
// already has an identity in the provider.
var ErrEmailTaken = errors.New("signup: email already has an identity")

// CreateIdentityAction creates the user in the identity provider. SSO signups
// skip it because the federated provider already owns the identity.
type CreateIdentityAction struct {
	provider    idp.Provider
	auditLogger audit.Logger
}

func NewCreateIdentityAction(provider idp.Provider, auditLogger audit.Logger) *CreateIdentityAction {
	return &CreateIdentityAction{provider: provider, auditLogger: auditLogger}
}

func (a *CreateIdentityAction) Name() string { return "create-identity" }
func (a *CreateIdentityAction) Order() int   { return 30 }

func (a *CreateIdentityAction) Supports(run *Context) bool { return !run.Type.SSO() }

// AlreadyDone looks the email up in the provider. A password signup always
// targets a fresh tenant id, so an existing identity means the email already
// went through signup: the run conflicts here, at the existence check, and
// the pipeline rolls back the tenant provisioned earlier in this run. The
// discovered identity is recorded on the run so rollback never deletes it.
func (a *CreateIdentityAction) AlreadyDone(ctx context.Context, run *Context) (bool, error) {
	user, err := a.provider.GetUserByEmail(ctx, run.Email)
	if errors.Is(err, idp.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up identity: %w", err)
	}
	run.IdentityProviderUserID = user.ID
	run.IdentityConfirmed = user.Confirmed
	run.IdentityAlreadyExisted = true
	return false, fmt.Errorf("identity exists for %s: %w", run.Email, ErrEmailTaken)
}

func (a *CreateIdentityAction) Execute(ctx context.Context, run *Context) error {
	result, err := a.provider.CreateOrGetUser(ctx, run.Email, run.Password, run.Name, map[string]string{
		"signup_tenant": run.TenantID,
	})
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	run.IdentityProviderUserID = result.ID
	run.IdentityConfirmed = result.Confirmed
	run.IdentityAlreadyExisted = result.AlreadyExists

	a.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeIdentityCreated,
		TenantID: run.TenantID,
		ActorID:  result.ID,
		Resource: run.Email,
		Metadata: map[string]any{"already_existed": result.AlreadyExists},
	})
	return nil
}

// Rollback deletes the identity only when this run created it. An identity
// that predates the run belongs to the user's other workspaces.
func (a *CreateIdentityAction) Rollback(ctx context.Context, run *Context) error {
	if run.IdentityAlreadyExisted || run.IdentityProviderUserID == "" {
		return nil
	}
	return a.provider.DeleteUser(ctx, run.IdentityProviderUserID)
}
