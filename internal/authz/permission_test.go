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

package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tenantgrid/tenantgrid/internal/audit"
)

type mockAssignmentRepo struct {
	mock.Mock
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *UserRoleAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *mockAssignmentRepo) Delete(ctx context.Context, userID, tenantID, roleID string) error {
	args := m.Called(ctx, userID, tenantID, roleID)
	return args.Error(0)
}

func (m *mockAssignmentRepo) ListActive(ctx context.Context, userID, tenantID string, now time.Time) ([]*UserRoleAssignment, error) {
	args := m.Called(ctx, userID, tenantID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*UserRoleAssignment), args.Error(1)
}

func (m *mockAssignmentRepo) Exists(ctx context.Context, userID, tenantID, roleID string) (bool, error) {
	args := m.Called(ctx, userID, tenantID, roleID)
	return args.Bool(0), args.Error(1)
}

type mockRolePermRepo struct {
	mock.Mock
}

func (m *mockRolePermRepo) HasPermission(ctx context.Context, roleID, resource, action string) (bool, error) {
	args := m.Called(ctx, roleID, resource, action)
	return args.Bool(0), args.Error(1)
}

func (m *mockRolePermRepo) ListForRole(ctx context.Context, roleID string) ([]string, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockRoleRepo struct {
	mock.Mock
}

func (m *mockRoleRepo) Create(ctx context.Context, role *Role) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

func (m *mockRoleRepo) GetByID(ctx context.Context, id string) (*Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Role), args.Error(1)
}

func (m *mockRoleRepo) List(ctx context.Context, scope *Scope) ([]*Role, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).([]*Role), args.Error(1)
}

func (m *mockRoleRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockTupleWriter struct {
	mock.Mock
}

func (m *mockTupleWriter) WriteTuple(ctx context.Context, user, relation, objectType, objectID string) {
	m.Called(ctx, user, relation, objectType, objectID)
}

func (m *mockTupleWriter) DeleteTuple(ctx context.Context, user, relation, objectType, objectID string) {
	m.Called(ctx, user, relation, objectType, objectID)
}

func assignment(userID, tenantID, roleID string) *UserRoleAssignment {
	return &UserRoleAssignment{
		ID: "a-" + roleID, UserID: userID, TenantID: tenantID, RoleID: roleID,
		AssignedAt: time.Now(),
	}
}

func newPermissionService(assignments *mockAssignmentRepo, rolePerms *mockRolePermRepo, roles *mockRoleRepo) *PermissionService {
	return NewPermissionService(assignments, rolePerms, roles, nil, audit.NewSlogLogger())
}

func TestHasPermissionSuperAdminShortCircuits(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleSuperAdmin)}, nil)

	svc := newPermissionService(assignments, rolePerms, new(mockRoleRepo))

	allowed, err := svc.HasPermission(context.Background(), "u1", "t1", "anything", "delete")
	require.NoError(t, err)
	assert.True(t, allowed)
	// The role-permission table must not be consulted for super-admins.
	rolePerms.AssertNotCalled(t, "HasPermission", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHasPermissionDeniesWithoutGrant(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleViewer)}, nil)
	rolePerms.On("HasPermission", mock.Anything, RoleViewer, "tenant", "delete").Return(false, nil)

	svc := newPermissionService(assignments, rolePerms, new(mockRoleRepo))

	allowed, err := svc.HasPermission(context.Background(), "u1", "t1", "tenant", "delete")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestHasPermissionCachesDecision(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleAdmin)}, nil).Once()
	rolePerms.On("HasPermission", mock.Anything, RoleAdmin, "tenant", "read").Return(true, nil).Once()

	svc := newPermissionService(assignments, rolePerms, new(mockRoleRepo))

	for i := 0; i < 3; i++ {
		allowed, err := svc.HasPermission(context.Background(), "u1", "t1", "tenant", "read")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assignments.AssertExpectations(t)
	rolePerms.AssertExpectations(t)
}

func TestAssignRoleEvictsCachedDecisions(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	roles := new(mockRoleRepo)

	// First check: viewer only, denied.
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleViewer)}, nil).Once()
	rolePerms.On("HasPermission", mock.Anything, RoleViewer, "tenant", "write").Return(false, nil).Once()

	svc := newPermissionService(assignments, rolePerms, roles)

	allowed, err := svc.HasPermission(context.Background(), "u1", "t1", "tenant", "write")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Grant admin; the stale negative decision must not survive.
	roles.On("GetByID", mock.Anything, RoleAdmin).Return(&Role{ID: RoleAdmin}, nil)
	assignments.On("Exists", mock.Anything, "u1", "t1", RoleAdmin).Return(false, nil)
	assignments.On("Create", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, svc.AssignRole(context.Background(), "u1", "t1", RoleAdmin, "admin-user"))

	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleAdmin)}, nil).Once()
	rolePerms.On("HasPermission", mock.Anything, RoleAdmin, "tenant", "write").Return(true, nil).Once()

	allowed, err = svc.HasPermission(context.Background(), "u1", "t1", "tenant", "write")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAssignRoleToleratesDuplicate(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	roles := new(mockRoleRepo)
	roles.On("GetByID", mock.Anything, RoleViewer).Return(&Role{ID: RoleViewer}, nil)
	assignments.On("Exists", mock.Anything, "u1", "t1", RoleViewer).Return(true, nil)

	svc := newPermissionService(assignments, new(mockRolePermRepo), roles)

	require.NoError(t, svc.AssignRole(context.Background(), "u1", "t1", RoleViewer, "system"))
	assignments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAssignRoleRejectsUnknownRole(t *testing.T) {
	roles := new(mockRoleRepo)
	roles.On("GetByID", mock.Anything, "ghost").Return(nil, ErrRoleNotFound)

	svc := newPermissionService(new(mockAssignmentRepo), new(mockRolePermRepo), roles)

	err := svc.AssignRole(context.Background(), "u1", "t1", "ghost", "system")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestAssignRoleWritesRelationshipTuple(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	roles := new(mockRoleRepo)
	tuples := new(mockTupleWriter)
	roles.On("GetByID", mock.Anything, RoleEditor).Return(&Role{ID: RoleEditor}, nil)
	assignments.On("Exists", mock.Anything, "u1", "t1", RoleEditor).Return(false, nil)
	assignments.On("Create", mock.Anything, mock.Anything).Return(nil)
	tuples.On("WriteTuple", mock.Anything, "user:u1", "assignee", "role", RoleEditor).Return()

	svc := NewPermissionService(assignments, new(mockRolePermRepo), roles, tuples, audit.NewSlogLogger())

	require.NoError(t, svc.AssignRole(context.Background(), "u1", "t1", RoleEditor, "admin"))
	tuples.AssertExpectations(t)
}

func TestGetUserPermissionsSuperAdminWildcard(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleSuperAdmin)}, nil)

	svc := newPermissionService(assignments, new(mockRolePermRepo), new(mockRoleRepo))

	perms, err := svc.GetUserPermissions(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{WildcardPermission: true}, perms)
}

func TestGetUserPermissionsUnionsRoles(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{
			assignment("u1", "t1", RoleViewer),
			assignment("u1", "t1", RoleEditor),
		}, nil)
	rolePerms.On("ListForRole", mock.Anything, RoleViewer).Return([]string{"tenant:read"}, nil)
	rolePerms.On("ListForRole", mock.Anything, RoleEditor).Return([]string{"tenant:read", "workspaces:write"}, nil)

	svc := newPermissionService(assignments, rolePerms, new(mockRoleRepo))

	perms, err := svc.GetUserPermissions(context.Background(), "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"tenant:read": true, "workspaces:write": true}, perms)
}

func TestExpiredAssignmentIsInactive(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := &UserRoleAssignment{RoleID: RoleAdmin, ExpiresAt: &past}
	active := &UserRoleAssignment{RoleID: RoleAdmin, ExpiresAt: &future}
	permanent := &UserRoleAssignment{RoleID: RoleAdmin}

	now := time.Now()
	assert.False(t, expired.Active(now))
	assert.True(t, active.Active(now))
	assert.True(t, permanent.Active(now))
}
