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

// Package signup drives tenant provisioning: an ordered sequence of
// idempotent actions that create a tenant, register an identity, create a
// membership and assign roles, with best-effort compensation on failure.
package signup

import "fmt"

// Type is the kind of signup being processed.
type Type int

const (
	TypePersonal Type = iota
	TypeOrganization
	TypeSSOGoogle
	TypeSSOSAML
	TypeSSOOIDC
)

// String returns the wire name of the signup type.
func (t Type) String() string {
	switch t {
	case TypePersonal:
		return "PERSONAL"
	case TypeOrganization:
		return "ORGANIZATION"
	case TypeSSOGoogle:
		return "SSO_GOOGLE"
	case TypeSSOSAML:
		return "SSO_SAML"
	case TypeSSOOIDC:
		return "SSO_OIDC"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
}

// ParseType converts a wire name to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "PERSONAL":
		return TypePersonal, nil
	case "ORGANIZATION":
		return TypeOrganization, nil
	case "SSO_GOOGLE":
		return TypeSSOGoogle, nil
	case "SSO_SAML":
		return TypeSSOSAML, nil
	case "SSO_OIDC":
		return TypeSSOOIDC, nil
	default:
		return 0, fmt.Errorf("unknown signup type %q", s)
	}
}

// SSO reports whether the signup came through a federated login, meaning the
// identity already exists upstream.
func (t Type) SSO() bool {
	return t == TypeSSOGoogle || t == TypeSSOSAML || t == TypeSSOOIDC
}

// Context carries the state of one provisioning run. It exists only for the
// duration of the run; each action reads and mutates it. Password is
// transient and never persisted.
type Context struct {
	Email    string
	Password string
	Name     string
	Type     Type

	TenantID               string
	IdentityProviderUserID string
	IdentityConfirmed      bool
	IdentityAlreadyExisted bool

	CompanyName  string
	Tier         string
	AssignedRole string
	SSOGroups    []string
	Metadata     map[string]any
}

// Result is the outcome of a pipeline run.
type Result struct {
	Success                   bool   `json:"success"`
	Message                   string `json:"message"`
	TenantID                  string `json:"tenant_id,omitempty"`
	RequiresEmailVerification bool   `json:"requires_email_verification"`
}
