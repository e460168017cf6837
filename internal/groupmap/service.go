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

package groupmap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/tenantgrid/tenantgrid/internal/audit"
	"github.com/tenantgrid/tenantgrid/internal/authz"
	"github.com/tenantgrid/tenantgrid/internal/observability/logger"
)

const (
	resolutionCacheSize = 1024
	resolutionCacheTTL  = 5 * time.Minute
)

// Service manages group-to-role mappings and resolves roles at SSO login.
// Resolution results are cached; every mapping mutation purges the cache.
type Service struct {
	repo        Repository
	roles       authz.RoleRepository
	assignments authz.AssignmentRepository
	auditLogger audit.Logger

	resolutions *lru.LRU[string, []*Mapping]
}

// NewService creates a new group mapping service
func NewService(repo Repository, roles authz.RoleRepository, assignments authz.AssignmentRepository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		roles:       roles,
		assignments: assignments,
		auditLogger: auditLogger,
		resolutions: lru.NewLRU[string, []*Mapping](resolutionCacheSize, nil, resolutionCacheTTL),
	}
}

// CreateMapping creates a mapping for an external group. Rejects a duplicate
// external group id.
func (s *Service) CreateMapping(ctx context.Context, externalGroupID, groupName, roleID string, priority int, createdBy string) (*Mapping, error) {
	if externalGroupID == "" || roleID == "" {
		return nil, fmt.Errorf("external group id and role id are required")
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
	}

	exists, err := s.repo.ExistsByGroup(ctx, externalGroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing mapping: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrMappingExists, externalGroupID)
	}

	mapping := &Mapping{
		ID:              uuid.NewString(),
		ExternalGroupID: externalGroupID,
		GroupName:       groupName,
		RoleID:          roleID,
		Priority:        priority,
		AutoAssign:      true,
		CreatedBy:       createdBy,
		CreatedAt:       time.Now(),
	}
	if err := s.repo.Create(ctx, mapping); err != nil {
		return nil, fmt.Errorf("failed to create mapping: %w", err)
	}

	s.resolutions.Purge()
	slog.InfoContext(ctx, "group_mapping_created",
		logger.GroupID(externalGroupID), logger.Role(roleID), slog.Int("priority", priority))
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMappingCreated,
		ActorID:  createdBy,
		Resource: externalGroupID,
		Metadata: map[string]any{"role_id": roleID, "priority": priority},
	})
	return mapping, nil
}

// UpdateMapping changes the role and priority of an existing mapping.
func (s *Service) UpdateMapping(ctx context.Context, mappingID, roleID string, priority int) (*Mapping, error) {
	mapping, err := s.repo.GetByID(ctx, mappingID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
	}

	mapping.RoleID = roleID
	mapping.Priority = priority
	if err := s.repo.Update(ctx, mapping); err != nil {
		return nil, fmt.Errorf("failed to update mapping: %w", err)
	}

	s.resolutions.Purge()
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMappingUpdated,
		Resource: mapping.ExternalGroupID,
		Metadata: map[string]any{"role_id": roleID, "priority": priority},
	})
	return mapping, nil
}

// DeleteMapping removes a mapping by id.
func (s *Service) DeleteMapping(ctx context.Context, mappingID string) error {
	if err := s.repo.Delete(ctx, mappingID); err != nil {
		return err
	}
	s.resolutions.Purge()
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMappingDeleted,
		Resource: mappingID,
	})
	return nil
}

// ListMappings retrieves every mapping ordered by priority descending.
func (s *Service) ListMappings(ctx context.Context) ([]*Mapping, error) {
	return s.repo.ListAll(ctx)
}

// ResolveRolesForGroups returns the mapped roles for the given IdP group
// claims, highest priority first, restricted to auto-assign mappings. Ties on
// priority are broken deterministically by creation time then group id.
func (s *Service) ResolveRolesForGroups(ctx context.Context, groupIDs []string) ([]*Mapping, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	key := resolutionKey(groupIDs)
	if cached, ok := s.resolutions.Get(key); ok {
		return cached, nil
	}

	mappings, err := s.repo.ListAutoAssignByGroups(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mappings: %w", err)
	}
	sortMappings(mappings)

	s.resolutions.Add(key, mappings)
	return mappings, nil
}

// ResolveRoleFromGroups returns the single top-priority role id for the
// groups, or "" when no mapping matches.
func (s *Service) ResolveRoleFromGroups(ctx context.Context, groupIDs []string) (string, error) {
	mappings, err := s.ResolveRolesForGroups(ctx, groupIDs)
	if err != nil {
		return "", err
	}
	if len(mappings) == 0 {
		return "", nil
	}
	roleID := mappings[0].RoleID
	slog.DebugContext(ctx, "role_resolved_from_groups",
		logger.Role(roleID), slog.Int("matched_mappings", len(mappings)))
	return roleID, nil
}

// EffectiveRole resolves the role to apply for a user at login or signup.
// Precedence: IdP group mapping (highest priority wins), then an explicit
// role assignment, then the hard-coded default. Each tier is consulted only
// when the previous one yields nothing.
func (s *Service) EffectiveRole(ctx context.Context, userID, tenantID string, groupIDs []string) (string, error) {
	roleID, err := s.ResolveRoleFromGroups(ctx, groupIDs)
	if err != nil {
		return "", err
	}
	if roleID != "" {
		return roleID, nil
	}

	if userID != "" {
		assignments, err := s.assignments.ListActive(ctx, userID, tenantID, time.Now())
		if err != nil {
			return "", fmt.Errorf("failed to load role assignments: %w", err)
		}
		if len(assignments) > 0 {
			return assignments[0].RoleID, nil
		}
	}

	return authz.RoleViewer, nil
}

// sortMappings orders by priority descending, breaking ties by creation time
// ascending then external group id ascending so equal-priority results are
// stable across calls regardless of storage order.
func sortMappings(mappings []*Mapping) {
	sort.SliceStable(mappings, func(i, j int) bool {
		if mappings[i].Priority != mappings[j].Priority {
			return mappings[i].Priority > mappings[j].Priority
		}
		if !mappings[i].CreatedAt.Equal(mappings[j].CreatedAt) {
			return mappings[i].CreatedAt.Before(mappings[j].CreatedAt)
		}
		return mappings[i].ExternalGroupID < mappings[j].ExternalGroupID
	})
}

func resolutionKey(groupIDs []string) string {
	sorted := make([]string, len(groupIDs))
	copy(sorted, groupIDs)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
