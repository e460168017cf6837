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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/tenantctx"
)

// AclService manages per-resource grants expressed as role bundles.
type AclService struct {
	repo        AclRepository
	auditLogger audit.Logger
}

// NewAclService creates a new ACL service
func NewAclService(repo AclRepository, auditLogger audit.Logger) *AclService {
	return &AclService{repo: repo, auditLogger: auditLogger}
}

// GrantAccessParams holds the inputs for granting resource access.
type GrantAccessParams struct {
	ResourceID    string
	ResourceType  string
	PrincipalType PrincipalType
	PrincipalID   string
	RoleBundle    RoleBundle
	ExpiresAt     *time.Time
}

// GrantAccess creates or replaces the grant for (resource, principal).
func (s *AclService) GrantAccess(ctx context.Context, params GrantAccessParams, grantedBy string) (*AclEntry, error) {
	if !ValidBundle(params.RoleBundle) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoleBundle, params.RoleBundle)
	}
	if params.ResourceID == "" || params.PrincipalID == "" {
		return nil, errors.New("resource id and principal id are required")
	}

	entry := &AclEntry{
		ID:            uuid.NewString(),
		ResourceID:    params.ResourceID,
		ResourceType:  params.ResourceType,
		PrincipalType: params.PrincipalType,
		PrincipalID:   params.PrincipalID,
		RoleBundle:    params.RoleBundle,
		GrantedBy:     grantedBy,
		GrantedAt:     time.Now(),
		ExpiresAt:     params.ExpiresAt,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to store acl entry: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccessGranted,
		TenantID: tenantctx.TenantID(ctx),
		ActorID:  grantedBy,
		Resource: params.ResourceID,
		Metadata: map[string]any{
			"principal_type": string(params.PrincipalType),
			"principal_id":   params.PrincipalID,
			"role_bundle":    string(params.RoleBundle),
		},
	})
	return entry, nil
}

// RevokeAccess removes a grant by entry id.
func (s *AclService) RevokeAccess(ctx context.Context, entryID, revokedBy string) error {
	if err := s.repo.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("failed to delete acl entry: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccessRevoked,
		TenantID: tenantctx.TenantID(ctx),
		ActorID:  revokedBy,
		Resource: entryID,
	})
	return nil
}

// ResourcePermissions lists every grant on a resource.
func (s *AclService) ResourcePermissions(ctx context.Context, resourceID string) ([]*AclEntry, error) {
	return s.repo.ListByResource(ctx, resourceID)
}

// PrincipalResources lists the active grants held by a user.
func (s *AclService) PrincipalResources(ctx context.Context, userID string) ([]*AclEntry, error) {
	return s.repo.ListByPrincipal(ctx, PrincipalUser, userID, time.Now())
}

// HasCapability reports whether the user's grant on the resource includes the
// capability. A missing entry denies: there is intentionally no fallback to
// group-based entries here.
func (s *AclService) HasCapability(ctx context.Context, userID, resourceID, capability string) (bool, error) {
	entry, err := s.repo.Get(ctx, resourceID, PrincipalUser, userID, time.Now())
	if err != nil {
		if errors.Is(err, ErrAclEntryNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up acl entry: %w", err)
	}
	caps := BundleCapabilities(entry.RoleBundle)
	return caps[capability], nil
}
