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

// Package registry defines the tenant registry: the authoritative record of
// which tenants exist and how to reach each tenant's isolated data store.
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantAlreadyExists = errors.New("tenant already exists")
)

// Tenant types
const (
	TypePersonal     = "personal"
	TypeOrganization = "organization"
)

// Status constants
const (
	StatusActive   = "active"
	StatusDeleted  = "deleted"
	StatusInactive = "inactive"
)

// TenantDBConfig describes how to reach one tenant's isolated data store.
// Credentials are loaded lazily from the registry and cached by the router.
type TenantDBConfig struct {
	TenantID     string
	Host         string
	Port         string
	Database     string
	Schema       string
	User         string
	Password     string
	SSLMode      string
	AuthzStoreID string // fine-grained authorization store handle, "" if none
}

// ProvisionRequest holds the inputs for provisioning a new tenant.
type ProvisionRequest struct {
	TenantID   string
	Type       string // personal or organization
	OwnerEmail string
	Tier       string
	MaxUsers   int
}

// Record is the registry's view of a tenant.
type Record struct {
	TenantID  string
	Type      string
	Status    string
	Tier      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registry is the authoritative store of tenant existence and connectivity.
type Registry interface {
	// Load returns the connection config for a tenant.
	// Returns ErrTenantNotFound if the tenant does not exist.
	Load(ctx context.Context, tenantID string) (*TenantDBConfig, error)

	// Provision creates the tenant record and its isolated data store.
	// Returns ErrTenantAlreadyExists when the tenant id is taken.
	Provision(ctx context.Context, req ProvisionRequest) error

	// Exists reports whether a tenant id is registered.
	Exists(ctx context.Context, tenantID string) (bool, error)

	// Delete marks the tenant deleted and releases its data store.
	Delete(ctx context.Context, tenantID, deletedBy string) error
}
