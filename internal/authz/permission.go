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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
)

// TupleWriter mirrors the relationship-store write surface the permission
// service needs. Satisfied by the resilient rebac writer; writes are
// best-effort and must never fail the surrounding role mutation.
type TupleWriter interface {
	WriteTuple(ctx context.Context, user, relation, objectType, objectID string)
	DeleteTuple(ctx context.Context, user, relation, objectType, objectID string)
}

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 5 * time.Minute
)

// PermissionService answers org-level RBAC questions and manages role
// assignments. Decisions are cached; every mutation that can affect a
// decision purges the cache completely, preferring correctness over hit rate.
type PermissionService struct {
	assignments AssignmentRepository
	rolePerms   RolePermissionRepository
	roles       RoleRepository
	tuples      TupleWriter
	auditLogger audit.Logger

	decisions *lru.LRU[string, bool]
}

// NewPermissionService creates a new permission service. tuples may be nil
// when no relationship store is configured.
func NewPermissionService(
	assignments AssignmentRepository,
	rolePerms RolePermissionRepository,
	roles RoleRepository,
	tuples TupleWriter,
	auditLogger audit.Logger,
) *PermissionService {
	return &PermissionService{
		assignments: assignments,
		rolePerms:   rolePerms,
		roles:       roles,
		tuples:      tuples,
		auditLogger: auditLogger,
		decisions:   lru.NewLRU[string, bool](defaultCacheSize, nil, defaultCacheTTL),
	}
}

func decisionKey(userID, tenantID, resource, action string) string {
	return userID + ":" + tenantID + ":" + resource + ":" + action
}

// HasPermission reports whether the user may perform action on resource
// within the tenant. A super-admin assignment short-circuits to true without
// touching the role-permission table.
func (s *PermissionService) HasPermission(ctx context.Context, userID, tenantID, resource, action string) (bool, error) {
	key := decisionKey(userID, tenantID, resource, action)
	if allowed, ok := s.decisions.Get(key); ok {
		return allowed, nil
	}

	active, err := s.assignments.ListActive(ctx, userID, tenantID, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to load role assignments: %w", err)
	}

	allowed := false
	for _, assignment := range active {
		if assignment.RoleID == RoleSuperAdmin {
			allowed = true
			break
		}
		granted, err := s.rolePerms.HasPermission(ctx, assignment.RoleID, resource, action)
		if err != nil {
			return false, fmt.Errorf("failed to check role permission: %w", err)
		}
		if granted {
			allowed = true
			break
		}
	}

	s.decisions.Add(key, allowed)
	return allowed, nil
}

// GetUserPermissions returns the union of "resource:action" strings granted by
// the user's active roles in the tenant. Super-admins get the wildcard
// instead of an enumeration.
func (s *PermissionService) GetUserPermissions(ctx context.Context, userID, tenantID string) (map[string]bool, error) {
	active, err := s.assignments.ListActive(ctx, userID, tenantID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to load role assignments: %w", err)
	}

	perms := make(map[string]bool)
	for _, assignment := range active {
		if assignment.RoleID == RoleSuperAdmin {
			return map[string]bool{WildcardPermission: true}, nil
		}
		granted, err := s.rolePerms.ListForRole(ctx, assignment.RoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to list permissions for role %s: %w", assignment.RoleID, err)
		}
		for _, p := range granted {
			perms[p] = true
		}
	}
	return perms, nil
}

// HasAnyPermission reports whether the user holds at least one of the given
// "resource:action" permissions.
func (s *PermissionService) HasAnyPermission(ctx context.Context, userID, tenantID string, permissions []string) (bool, error) {
	for _, permission := range permissions {
		resource, action, ok := splitPermission(permission)
		if !ok {
			continue
		}
		allowed, err := s.HasPermission(ctx, userID, tenantID, resource, action)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether the user holds every one of the given
// "resource:action" permissions.
func (s *PermissionService) HasAllPermissions(ctx context.Context, userID, tenantID string, permissions []string) (bool, error) {
	for _, permission := range permissions {
		resource, action, ok := splitPermission(permission)
		if !ok {
			return false, nil
		}
		allowed, err := s.HasPermission(ctx, userID, tenantID, resource, action)
		if err != nil {
			return false, err
		}
		if !allowed {
			return false, nil
		}
	}
	return true, nil
}

// AssignRole grants a role to a user in a tenant. Assigning a role the user
// already holds is not an error. The relationship-store tuple write is
// best-effort.
func (s *PermissionService) AssignRole(ctx context.Context, userID, tenantID, roleID, assignedBy string) error {
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		return fmt.Errorf("cannot assign role %s: %w", roleID, err)
	}

	exists, err := s.assignments.Exists(ctx, userID, tenantID, roleID)
	if err != nil {
		return fmt.Errorf("failed to check existing assignment: %w", err)
	}
	if exists {
		slog.DebugContext(ctx, "role_already_assigned",
			logger.UserID(userID), logger.TenantID(tenantID), logger.Role(roleID))
		return nil
	}

	assignment := &UserRoleAssignment{
		ID:         uuid.NewString(),
		UserID:     userID,
		TenantID:   tenantID,
		RoleID:     roleID,
		AssignedBy: assignedBy,
		AssignedAt: time.Now(),
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return fmt.Errorf("failed to create role assignment: %w", err)
	}

	s.decisions.Purge()

	if s.tuples != nil {
		s.tuples.WriteTuple(ctx, "user:"+userID, "assignee", "role", roleID)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		TenantID: tenantID,
		ActorID:  assignedBy,
		Resource: roleID,
		Metadata: map[string]any{"user_id": userID},
	})
	return nil
}

// RevokeRole removes a role from a user in a tenant.
func (s *PermissionService) RevokeRole(ctx context.Context, userID, tenantID, roleID, revokedBy string) error {
	if err := s.assignments.Delete(ctx, userID, tenantID, roleID); err != nil {
		return fmt.Errorf("failed to delete role assignment: %w", err)
	}

	s.decisions.Purge()

	if s.tuples != nil {
		s.tuples.DeleteTuple(ctx, "user:"+userID, "assignee", "role", roleID)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		TenantID: tenantID,
		ActorID:  revokedBy,
		Resource: roleID,
		Metadata: map[string]any{"user_id": userID},
	})
	return nil
}

// EvictCache drops every cached decision. Exposed for callers that mutate
// permission state outside this service (migrations, bulk imports).
func (s *PermissionService) EvictCache() {
	s.decisions.Purge()
}

func splitPermission(permission string) (resource, action string, ok bool) {
	parts := strings.SplitN(permission, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
