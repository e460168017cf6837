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

package account

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/idp"
	"github.com/tenantgrid/tenantgrid/internal/membership"
	"github.com/tenantgrid/tenantgrid/internal/registry"
)

type mockMembers struct {
	mock.Mock
}

func (m *mockMembers) Exists(ctx context.Context, tenantID, email string) (bool, error) {
	args := m.Called(ctx, tenantID, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockMembers) Create(ctx context.Context, params membership.CreateParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *mockMembers) CountActive(ctx context.Context, email string) (int, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Error(1)
}

func (m *mockMembers) DeleteForTenant(ctx context.Context, tenantID, email string) error {
	args := m.Called(ctx, tenantID, email)
	return args.Error(0)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateOrGetUser(ctx context.Context, email, password, name string, attrs map[string]string) (*idp.CreateResult, error) {
	args := m.Called(ctx, email, password, name, attrs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idp.CreateResult), args.Error(1)
}

func (m *mockProvider) GetUserByEmail(ctx context.Context, email string) (*idp.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idp.User), args.Error(1)
}

func (m *mockProvider) ListUsersByEmail(ctx context.Context, email string) ([]string, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockProvider) DeleteUser(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockProvider) CreateOrUpdateFederatedProvider(ctx context.Context, cfg idp.FederatedProviderConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *mockProvider) DeleteFederatedProvider(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Load(ctx context.Context, tenantID string) (*registry.TenantDBConfig, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.TenantDBConfig), args.Error(1)
}

func (m *mockRegistry) Provision(ctx context.Context, req registry.ProvisionRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockRegistry) Exists(ctx context.Context, tenantID string) (bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRegistry) Delete(ctx context.Context, tenantID, deletedBy string) error {
	args := m.Called(ctx, tenantID, deletedBy)
	return args.Error(0)
}

func newDeletionService(members *mockMembers, provider *mockProvider, reg *mockRegistry) *DeletionService {
	return NewDeletionService(members, provider, reg, audit.NewSlogLogger())
}

func TestDeleteAccountMembershipFailureAborts(t *testing.T) {
	members := new(mockMembers)
	provider := new(mockProvider)
	members.On("DeleteForTenant", mock.Anything, "t1", "a@example.com").
		Return(membership.ErrMembershipNotFound)

	svc := newDeletionService(members, provider, new(mockRegistry))

	_, err := svc.DeleteAccount(context.Background(), "t1", "a@example.com")
	assert.ErrorIs(t, err, membership.ErrMembershipNotFound)
	provider.AssertNotCalled(t, "ListUsersByEmail", mock.Anything, mock.Anything)
}

func TestDeleteAccountRetainsIdentityWithOtherMemberships(t *testing.T) {
	members := new(mockMembers)
	provider := new(mockProvider)
	reg := new(mockRegistry)
	members.On("DeleteForTenant", mock.Anything, "t1", "a@example.com").Return(nil)
	members.On("CountActive", mock.Anything, "a@example.com").Return(2, nil)

	svc := newDeletionService(members, provider, reg)

	result, err := svc.DeleteAccount(context.Background(), "t1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, result.RemainingMemberships)
	assert.Zero(t, result.DeletedIdentities)
	provider.AssertNotCalled(t, "ListUsersByEmail", mock.Anything, mock.Anything)
	reg.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteAccountLastMembershipErasesIdentities(t *testing.T) {
	members := new(mockMembers)
	provider := new(mockProvider)
	reg := new(mockRegistry)
	members.On("DeleteForTenant", mock.Anything, "t1", "a@example.com").Return(nil)
	members.On("CountActive", mock.Anything, "a@example.com").Return(0, nil)
	provider.On("ListUsersByEmail", mock.Anything, "a@example.com").
		Return([]string{"id-password", "id-saml", "id-google"}, nil)
	provider.On("DeleteUser", mock.Anything, "id-password").Return(nil)
	provider.On("DeleteUser", mock.Anything, "id-saml").Return(nil)
	provider.On("DeleteUser", mock.Anything, "id-google").Return(nil)
	reg.On("Load", mock.Anything, "t1").Return(&registry.TenantDBConfig{TenantID: "t1"}, nil)
	provider.On("DeleteFederatedProvider", mock.Anything, "t1").Return(nil)
	reg.On("Delete", mock.Anything, "t1", "a@example.com").Return(nil)

	svc := newDeletionService(members, provider, reg)

	result, err := svc.DeleteAccount(context.Background(), "t1", "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, result.RemainingMemberships)
	assert.Equal(t, 3, result.DeletedIdentities)
	provider.AssertExpectations(t)
	reg.AssertExpectations(t)
}

func TestDeleteAccountIdentityFailureIsSkipped(t *testing.T) {
	members := new(mockMembers)
	provider := new(mockProvider)
	reg := new(mockRegistry)
	members.On("DeleteForTenant", mock.Anything, "t1", "a@example.com").Return(nil)
	members.On("CountActive", mock.Anything, "a@example.com").Return(0, nil)
	provider.On("ListUsersByEmail", mock.Anything, "a@example.com").
		Return([]string{"id-1", "id-2"}, nil)
	provider.On("DeleteUser", mock.Anything, "id-1").Return(errors.New("provider unavailable"))
	provider.On("DeleteUser", mock.Anything, "id-2").Return(nil)
	reg.On("Load", mock.Anything, "t1").Return(&registry.TenantDBConfig{TenantID: "t1"}, nil)
	provider.On("DeleteFederatedProvider", mock.Anything, "t1").Return(nil)
	reg.On("Delete", mock.Anything, "t1", "a@example.com").Return(nil)

	svc := newDeletionService(members, provider, reg)

	// One identity deletion failing must not fail the operation.
	result, err := svc.DeleteAccount(context.Background(), "t1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedIdentities)
}

func TestDeleteAccountCleanupIsBestEffort(t *testing.T) {
	members := new(mockMembers)
	provider := new(mockProvider)
	reg := new(mockRegistry)
	members.On("DeleteForTenant", mock.Anything, "t1", "a@example.com").Return(nil)
	members.On("CountActive", mock.Anything, "a@example.com").Return(0, nil)
	provider.On("ListUsersByEmail", mock.Anything, "a@example.com").Return([]string{"id-1"}, nil)
	provider.On("DeleteUser", mock.Anything, "id-1").Return(nil)
	reg.On("Load", mock.Anything, "t1").Return(&registry.TenantDBConfig{TenantID: "t1"}, nil)
	provider.On("DeleteFederatedProvider", mock.Anything, "t1").Return(idp.ErrProviderNotFound)
	reg.On("Delete", mock.Anything, "t1", "a@example.com").Return(errors.New("registry down"))

	svc := newDeletionService(members, provider, reg)

	result, err := svc.DeleteAccount(context.Background(), "t1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedIdentities)
}

func TestDeleteAccountUnknownTenantSkipsCleanup(t *testing.T) {
	members := new(mockMembers)
	provider := new(mockProvider)
	reg := new(mockRegistry)
	members.On("DeleteForTenant", mock.Anything, "t1", "a@example.com").Return(nil)
	members.On("CountActive", mock.Anything, "a@example.com").Return(0, nil)
	provider.On("ListUsersByEmail", mock.Anything, "a@example.com").Return([]string{}, nil)
	reg.On("Load", mock.Anything, "t1").Return(nil, registry.ErrTenantNotFound)

	svc := newDeletionService(members, provider, reg)

	_, err := svc.DeleteAccount(context.Background(), "t1", "a@example.com")
	require.NoError(t, err)
	provider.AssertNotCalled(t, "DeleteFederatedProvider", mock.Anything, mock.Anything)
	reg.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
