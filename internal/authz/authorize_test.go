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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/tenantctx"
)

type mockRelationChecker struct {
	mock.Mock
}

func (m *mockRelationChecker) Check(ctx context.Context, user, relation, objectType, objectID string) bool {
	args := m.Called(ctx, user, relation, objectType, objectID)
	return args.Bool(0)
}

func guardContext() context.Context {
	return tenantctx.With(context.Background(), "t1", "u1")
}

func TestGuardAllowsOnRBAC(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleAdmin)}, nil)
	rolePerms.On("HasPermission", mock.Anything, RoleAdmin, "workspaces", "write").Return(true, nil)
	relations := new(mockRelationChecker)

	guard := NewGuard(newPermissionService(assignments, rolePerms, new(mockRoleRepo)), relations, audit.NewSlogLogger())

	allowed, err := guard.Allow(guardContext(), "workspaces", "write", "editor", "workspace", "ws-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	// RBAC decided; the relationship store must not be consulted.
	relations.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGuardFallsBackToRelationCheck(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleViewer)}, nil)
	rolePerms.On("HasPermission", mock.Anything, RoleViewer, "workspaces", "write").Return(false, nil)

	relations := new(mockRelationChecker)
	relations.On("Check", mock.Anything, "user:u1", "editor", "workspace", "ws-1").Return(true)

	guard := NewGuard(newPermissionService(assignments, rolePerms, new(mockRoleRepo)), relations, audit.NewSlogLogger())

	allowed, err := guard.Allow(guardContext(), "workspaces", "write", "editor", "workspace", "ws-1")
	require.NoError(t, err)
	assert.True(t, allowed)
	relations.AssertExpectations(t)
}

func TestGuardDeniesWhenBothLayersDeny(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleViewer)}, nil)
	rolePerms.On("HasPermission", mock.Anything, RoleViewer, "workspaces", "write").Return(false, nil)

	relations := new(mockRelationChecker)
	relations.On("Check", mock.Anything, "user:u1", "editor", "workspace", "ws-1").Return(false)

	guard := NewGuard(newPermissionService(assignments, rolePerms, new(mockRoleRepo)), relations, audit.NewSlogLogger())

	allowed, err := guard.Allow(guardContext(), "workspaces", "write", "editor", "workspace", "ws-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestGuardSkipsRelationCheckWithoutInstance(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleViewer)}, nil)
	rolePerms.On("HasPermission", mock.Anything, RoleViewer, "workspaces", "write").Return(false, nil)
	relations := new(mockRelationChecker)

	guard := NewGuard(newPermissionService(assignments, rolePerms, new(mockRoleRepo)), relations, audit.NewSlogLogger())

	allowed, err := guard.Allow(guardContext(), "workspaces", "write", "", "", "")
	require.NoError(t, err)
	assert.False(t, allowed)
	relations.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGuardWorksWithoutRelationStore(t *testing.T) {
	assignments := new(mockAssignmentRepo)
	rolePerms := new(mockRolePermRepo)
	assignments.On("ListActive", mock.Anything, "u1", "t1", mock.Anything).
		Return([]*UserRoleAssignment{assignment("u1", "t1", RoleAdmin)}, nil)
	rolePerms.On("HasPermission", mock.Anything, RoleAdmin, "tenant", "read").Return(true, nil)

	guard := NewGuard(newPermissionService(assignments, rolePerms, new(mockRoleRepo)), nil, audit.NewSlogLogger())

	allowed, err := guard.Allow(guardContext(), "tenant", "read", "viewer", "tenant", "t1")
	require.NoError(t, err)
	assert.True(t, allowed)
}
