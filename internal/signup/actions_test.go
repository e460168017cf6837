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
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/idp"
	"github.com/tenantgrid/tenantgrid/internal/membership"
	"github.com/tenantgrid/tenantgrid/internal/registry"
)

// fakeRegistry mirrors the registry contract: Delete marks the record
// deleted, Exists keeps answering true so the id stays reserved.
type fakeRegistry struct {
	mu         sync.Mutex
	records    map[string]*registry.TenantDBConfig
	deleted    map[string]bool
	provisions int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		records: make(map[string]*registry.TenantDBConfig),
		deleted: make(map[string]bool),
	}
}

func (r *fakeRegistry) Load(ctx context.Context, tenantID string) (*registry.TenantDBConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.records[tenantID]
	if !ok || r.deleted[tenantID] {
		return nil, registry.ErrTenantNotFound
	}
	return cfg, nil
}

func (r *fakeRegistry) Provision(ctx context.Context, req registry.ProvisionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[req.TenantID]; ok {
		return registry.ErrTenantAlreadyExists
	}
	r.records[req.TenantID] = &registry.TenantDBConfig{TenantID: req.TenantID}
	r.provisions++
	return nil
}

func (r *fakeRegistry) Exists(ctx context.Context, tenantID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[tenantID]
	return ok, nil
}

func (r *fakeRegistry) Delete(ctx context.Context, tenantID, deletedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[tenantID]; !ok {
		return registry.ErrTenantNotFound
	}
	r.deleted[tenantID] = true
	return nil
}

type fakeMembers struct {
	mu      sync.Mutex
	rows    map[string]membership.CreateParams // keyed tenant|email
	creates int
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{rows: make(map[string]membership.CreateParams)}
}

func membersKey(tenantID, email string) string { return tenantID + "|" + email }

func (m *fakeMembers) Exists(ctx context.Context, tenantID, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[membersKey(tenantID, email)]
	return ok, nil
}

func (m *fakeMembers) Create(ctx context.Context, params membership.CreateParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membersKey(params.TenantID, params.Email)
	if _, ok := m.rows[key]; ok {
		return membership.ErrMembershipExists
	}
	m.rows[key] = params
	m.creates++
	return nil
}

func (m *fakeMembers) CountActive(ctx context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if row.Email == email {
			count++
		}
	}
	return count, nil
}

func (m *fakeMembers) DeleteForTenant(ctx context.Context, tenantID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := membersKey(tenantID, email)
	if _, ok := m.rows[key]; !ok {
		return membership.ErrMembershipNotFound
	}
	delete(m.rows, key)
	return nil
}

// provisioningFixture wires the real provisioning actions against the
// in-memory identity provider and in-process registry and membership fakes.
type provisioningFixture struct {
	pipeline *Pipeline
	reg      *fakeRegistry
	members  *fakeMembers
	provider *idp.MemoryProvider
}

func newProvisioningFixture() *provisioningFixture {
	reg := newFakeRegistry()
	members := newFakeMembers()
	provider := idp.NewMemoryProvider(idp.NewPasswordHasher(8*1024, 1, 1, 8, 16))
	auditLogger := audit.NewSlogLogger()

	pipeline := NewPipeline(auditLogger,
		NewGenerateTenantIDAction(NewTenantIDGenerator(reg)),
		NewProvisionTenantAction(reg),
		NewCreateIdentityAction(provider, auditLogger),
		NewCreateMembershipAction(members),
	)
	return &provisioningFixture{pipeline: pipeline, reg: reg, members: members, provider: provider}
}

func personalRun() *Context {
	return &Context{
		Email:    "alice@example.com",
		Password: "correct-horse",
		Name:     "Alice",
		Type:     TypePersonal,
	}
}

func TestActionsPersonalSignupProvisionsEverything(t *testing.T) {
	f := newProvisioningFixture()

	result, err := f.pipeline.Run(context.Background(), personalRun())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.TenantID, "user-alice-"))
	assert.True(t, result.RequiresEmailVerification)

	user, err := f.provider.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)

	exists, err := f.members.Exists(context.Background(), result.TenantID, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, f.reg.provisions)
}

func TestActionsRepeatPersonalSignupConflictsAtIdentityCheck(t *testing.T) {
	f := newProvisioningFixture()

	first, err := f.pipeline.Run(context.Background(), personalRun())
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := f.pipeline.Run(context.Background(), personalRun())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.False(t, second.Success)

	// The failure belongs to the identity existence check, not tenant-id
	// generation.
	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "create-identity", actionErr.Action)
	assert.True(t, actionErr.RolledBack)

	// No duplicate external creates: one identity, one membership, and the
	// tenant provisioned by the failed run was rolled back.
	ids, err := f.provider.ListUsersByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, f.members.creates)

	f.reg.mu.Lock()
	defer f.reg.mu.Unlock()
	assert.False(t, f.reg.deleted[first.TenantID])
	for tenantID := range f.reg.records {
		if tenantID != first.TenantID {
			assert.True(t, f.reg.deleted[tenantID], "tenant %s from the failed run should be rolled back", tenantID)
		}
	}
}

func TestActionsRepeatPersonalSignupRetainsExistingIdentity(t *testing.T) {
	f := newProvisioningFixture()

	first, err := f.pipeline.Run(context.Background(), personalRun())
	require.NoError(t, err)

	user, err := f.provider.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)

	_, err = f.pipeline.Run(context.Background(), personalRun())
	require.ErrorIs(t, err, ErrEmailTaken)

	// Rollback of the failed run must never delete an identity that predates
	// it, nor the first run's membership.
	after, err := f.provider.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, after.ID)

	exists, err := f.members.Exists(context.Background(), first.TenantID, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestActionsSSORerunShortCircuitsWithoutDuplicates(t *testing.T) {
	f := newProvisioningFixture()
	identityID := f.provider.AddFederatedIdentity("bob@corp.example", "Bob")

	ssoRun := func() *Context {
		return &Context{
			Email:                  "bob@corp.example",
			Name:                   "Bob",
			Type:                   TypeSSOSAML,
			TenantID:               "corp-example",
			IdentityProviderUserID: identityID,
			IdentityConfirmed:      true,
		}
	}

	first, err := f.pipeline.Run(context.Background(), ssoRun())
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, "corp-example", first.TenantID)

	// The identity provider's callback can deliver the same signup twice.
	// Every action reports its target state already reached; nothing is
	// created a second time.
	second, err := f.pipeline.Run(context.Background(), ssoRun())
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, 1, f.reg.provisions)
	assert.Equal(t, 1, f.members.creates)

	ids, err := f.provider.ListUsersByEmail(context.Background(), "bob@corp.example")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestActionsOrganizationSignupRejectsTakenSlug(t *testing.T) {
	f := newProvisioningFixture()

	orgRun := func(email string) *Context {
		return &Context{
			Email:       email,
			Password:    "correct-horse",
			Type:        TypeOrganization,
			CompanyName: "Acme Rockets",
		}
	}

	first, err := f.pipeline.Run(context.Background(), orgRun("founder@acme.example"))
	require.NoError(t, err)
	assert.Equal(t, "acme-rockets", first.TenantID)

	// A different user reusing the company name fails before anything is
	// provisioned for them.
	_, err = f.pipeline.Run(context.Background(), orgRun("other@elsewhere.example"))
	require.ErrorIs(t, err, ErrTenantIDTaken)

	var actionErr *ActionError
	require.ErrorAs(t, err, &actionErr)
	assert.Equal(t, "generate-tenant-id", actionErr.Action)
	assert.Equal(t, 1, f.reg.provisions)
}
