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

// Package groupmap resolves a user's effective role from federated-identity
// group claims via priority-ranked group-to-role mappings.
package groupmap

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMappingNotFound = errors.New("group mapping not found")
	ErrMappingExists   = errors.New("group mapping already exists")
	ErrRoleNotFound    = errors.New("role not found")
)

// Mapping links one external IdP group to a role. Exactly one mapping exists
// per external group id.
type Mapping struct {
	ID              string
	ExternalGroupID string
	GroupName       string
	RoleID          string
	Priority        int
	AutoAssign      bool
	CreatedBy       string
	CreatedAt       time.Time
}

// Repository defines the interface for mapping persistence
type Repository interface {
	// Create stores a new mapping. Returns ErrMappingExists when the
	// external group id is already mapped.
	Create(ctx context.Context, mapping *Mapping) error

	// Update replaces the role and priority of an existing mapping.
	Update(ctx context.Context, mapping *Mapping) error

	// Delete removes a mapping by id. Returns ErrMappingNotFound if absent.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves a mapping by id.
	GetByID(ctx context.Context, id string) (*Mapping, error)

	// ExistsByGroup reports whether the external group id is mapped.
	ExistsByGroup(ctx context.Context, externalGroupID string) (bool, error)

	// ListAll retrieves every mapping ordered by priority descending.
	ListAll(ctx context.Context) ([]*Mapping, error)

	// ListAutoAssignByGroups retrieves the auto-assign mappings whose
	// external group id is in groupIDs, ordered by priority descending with
	// ties broken by created_at ascending then external_group_id ascending.
	ListAutoAssignByGroups(ctx context.Context, groupIDs []string) ([]*Mapping, error)
}
