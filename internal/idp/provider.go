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

// Package idp abstracts the external federated identity provider that owns
// credentials and federated logins. The concrete provider SDK lives outside
// this module; this package defines the surface the core consumes plus an
// in-memory implementation for development and tests.
package idp

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound     = errors.New("identity not found")
	ErrUserExists       = errors.New("identity already exists")
	ErrProviderNotFound = errors.New("federated provider not found")
)

// FederatedProviderType constants
const (
	ProviderSAML = "SAML"
	ProviderOIDC = "OIDC"
)

// User is the provider's view of an identity.
type User struct {
	ID        string
	Email     string
	Name      string
	Confirmed bool
	Federated bool // created through a federated login rather than a password
}

// CreateResult reports the outcome of CreateOrGetUser.
type CreateResult struct {
	ID            string
	Confirmed     bool
	AlreadyExists bool
}

// FederatedProviderConfig describes a tenant's SAML or OIDC connection.
type FederatedProviderConfig struct {
	Name             string
	Type             string // SAML or OIDC
	Details          map[string]string
	AttributeMapping map[string]string
}

// Provider is the identity-provider surface consumed by provisioning and
// account deletion.
type Provider interface {
	// CreateOrGetUser registers the identity if absent and returns the
	// existing one otherwise; AlreadyExists distinguishes the two.
	CreateOrGetUser(ctx context.Context, email, password, name string, attrs map[string]string) (*CreateResult, error)

	// GetUserByEmail returns the primary identity for an email.
	// Returns ErrUserNotFound when absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsersByEmail returns every identity id associated with the email,
	// federated identities included.
	ListUsersByEmail(ctx context.Context, email string) ([]string, error)

	// DeleteUser removes one identity. Deleting an absent identity returns
	// ErrUserNotFound.
	DeleteUser(ctx context.Context, id string) error

	// CreateOrUpdateFederatedProvider installs or replaces a tenant's SAML
	// or OIDC connection.
	CreateOrUpdateFederatedProvider(ctx context.Context, cfg FederatedProviderConfig) error

	// DeleteFederatedProvider removes a tenant's connection by name.
	DeleteFederatedProvider(ctx context.Context, name string) error
}
