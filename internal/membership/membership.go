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

// Package membership tracks which users belong to which tenants. Memberships
// live in the platform database: they are the cross-tenant record consulted
// when deciding whether a user's identity may be deleted.
package membership

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMembershipExists   = errors.New("membership already exists")
)

// Membership links one identity to one tenant.
type Membership struct {
	ID         string
	TenantID   string
	Email      string
	IdentityID string
	RoleHint   string
	IsOwner    bool
	IsDefault  bool
	Active     bool
	CreatedAt  time.Time
}

// CreateParams holds the inputs for creating a membership.
type CreateParams struct {
	TenantID   string
	Email      string
	IdentityID string
	RoleHint   string
	IsOwner    bool
	IsDefault  bool
}

// Service is the membership surface consumed by provisioning and deletion.
type Service interface {
	// Exists reports whether the email has a membership in the tenant.
	Exists(ctx context.Context, tenantID, email string) (bool, error)

	// Create records a membership. Returns ErrMembershipExists on duplicate
	// (tenant, email).
	Create(ctx context.Context, params CreateParams) error

	// CountActive counts the email's active memberships across all tenants.
	CountActive(ctx context.Context, email string) (int, error)

	// DeleteForTenant removes the email's membership in one tenant.
	DeleteForTenant(ctx context.Context, tenantID, email string) error
}
