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
	"log/slog"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
	"github.com/tenantgrid/tenantgrid/internal/tenantctx"
)

// RelationshipChecker mirrors the relationship-store read surface the guard
// needs. Satisfied by the resilient rebac reader; a check fails closed.
type RelationshipChecker interface {
	Check(ctx context.Context, user, relation, objectType, objectID string) bool
}

// Guard is the explicit call-site authorization check wrapping protected
// operations. Decision order: org-level RBAC first, then the per-resource
// relationship check, else deny. A tenant admin role therefore bypasses
// per-resource configuration while non-admins can still be granted access to
// individual resources.
type Guard struct {
	permissions *PermissionService
	relations   RelationshipChecker
	auditLogger audit.Logger
}

// NewGuard creates an authorization guard. relations may be nil when no
// relationship store is configured; the guard then decides on RBAC alone.
func NewGuard(permissions *PermissionService, relations RelationshipChecker, auditLogger audit.Logger) *Guard {
	return &Guard{permissions: permissions, relations: relations, auditLogger: auditLogger}
}

// Allow decides whether the user identified by ctx may perform action on the
// given resource instance. resource names the coarse resource class for RBAC
// ("document", "settings"); relation/objectType/objectID address the specific
// instance in the relationship store and may be empty when no instance check
// applies.
func (g *Guard) Allow(ctx context.Context, resource, action, relation, objectType, objectID string) (bool, error) {
	userID := tenantctx.UserID(ctx)
	tenantID := tenantctx.TenantID(ctx)

	allowed, err := g.permissions.HasPermission(ctx, userID, tenantID, resource, action)
	if err != nil {
		return false, err
	}
	if allowed {
		return true, nil
	}

	if g.relations != nil && relation != "" && objectID != "" {
		if g.relations.Check(ctx, "user:"+userID, relation, objectType, objectID) {
			return true, nil
		}
	}

	slog.DebugContext(ctx, "authorization_denied",
		logger.UserID(userID), logger.TenantID(tenantID),
		logger.Resource(resource), logger.Action(action))
	g.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePermissionDenied,
		TenantID: tenantID,
		ActorID:  userID,
		Resource: resource,
		Metadata: map[string]any{"action": action, "object_id": objectID},
	})
	return false, nil
}
