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

// Package account removes a user from a tenant and, when that was their last
// membership, erases their identities from the identity provider.
package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/idp"
	"github.com/tenantgrid/tenantgrid/internal/membership"
	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
	"github.com/tenantgrid/tenantgrid/internal/registry"
)

// Result reports what a deletion actually removed.
type Result struct {
	RemainingMemberships int `json:"remaining_memberships"`
	DeletedIdentities    int `json:"deleted_identities"`
}

// DeletionService coordinates membership removal with identity-provider and
// registry cleanup.
type DeletionService struct {
	members     membership.Service
	provider    idp.Provider
	reg         registry.Registry
	auditLogger audit.Logger
}

func NewDeletionService(members membership.Service, provider idp.Provider, reg registry.Registry, auditLogger audit.Logger) *DeletionService {
	return &DeletionService{members: members, provider: provider, reg: reg, auditLogger: auditLogger}
}

// DeleteAccount removes the user's membership in the given tenant. The
// membership delete is the authoritative step and its failure aborts the
// whole operation. Everything after it is best effort: a user whose
// membership row is gone must not be blocked by identity-provider or
// registry hiccups, which operators can reconcile from the logs.
//
// Identities are only deleted when no membership remains anywhere, so a user
// leaving one of several workspaces keeps their login.
func (s *DeletionService) DeleteAccount(ctx context.Context, tenantID, email string) (*Result, error) {
	if err := s.members.DeleteForTenant(ctx, tenantID, email); err != nil {
		return nil, fmt.Errorf("delete membership: %w", err)
	}

	remaining, err := s.members.CountActive(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("count remaining memberships: %w", err)
	}

	result := &Result{RemainingMemberships: remaining}
	if remaining > 0 {
		slog.InfoContext(ctx, "membership_removed_identity_retained",
			logger.TenantID(tenantID), logger.Email(email), slog.Int("remaining", remaining))
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAccountDeleted,
			TenantID: tenantID,
			Resource: email,
			Metadata: map[string]any{"remaining_memberships": remaining},
		})
		return result, nil
	}

	result.DeletedIdentities = s.deleteIdentities(ctx, email)
	s.cleanupTenant(ctx, tenantID, email)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAccountDeleted,
		TenantID: tenantID,
		Resource: email,
		Metadata: map[string]any{
			"remaining_memberships": 0,
			"deleted_identities":    result.DeletedIdentities,
		},
	})
	return result, nil
}

// deleteIdentities removes every provider identity registered under the
// email. A user can hold several, one per signup flavor.
func (s *DeletionService) deleteIdentities(ctx context.Context, email string) int {
	ids, err := s.provider.ListUsersByEmail(ctx, email)
	if err != nil {
		slog.ErrorContext(ctx, "list_identities_failed", logger.Email(email), logger.Error(err))
		return 0
	}

	deleted := 0
	for _, id := range ids {
		if err := s.provider.DeleteUser(ctx, id); err != nil {
			slog.ErrorContext(ctx, "delete_identity_failed",
				logger.Email(email), logger.UserID(id), logger.Error(err))
			continue
		}
		deleted++
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeIdentityDeleted,
			ActorID:  id,
			Resource: email,
		})
	}
	return deleted
}

// cleanupTenant releases the tenant's federated login and registry entry
// once its last member is gone. Every step is best effort.
func (s *DeletionService) cleanupTenant(ctx context.Context, tenantID, email string) {
	rec, err := s.reg.Load(ctx, tenantID)
	if err != nil {
		slog.WarnContext(ctx, "tenant_lookup_failed_during_cleanup",
			logger.TenantID(tenantID), logger.Error(err))
		return
	}

	if err := s.provider.DeleteFederatedProvider(ctx, tenantID); err != nil {
		slog.WarnContext(ctx, "delete_federated_provider_failed",
			logger.TenantID(tenantID), logger.Error(err))
	}

	if rec.AuthzStoreID != "" {
		slog.InfoContext(ctx, "tenant_authz_store_orphaned",
			logger.TenantID(tenantID), logger.StoreID(rec.AuthzStoreID))
	}

	if err := s.reg.Delete(ctx, tenantID, email); err != nil {
		slog.WarnContext(ctx, "tenant_deregistration_failed",
			logger.TenantID(tenantID), logger.Error(err))
	}
}
