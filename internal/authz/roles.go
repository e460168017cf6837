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

// -----------------------------------------------------------------------------
// Role Name Constants
// These are the canonical role ids stored in each tenant database.
// -----------------------------------------------------------------------------

const (
	// RoleSuperAdmin is the platform-wide wildcard role. A user holding it
	// satisfies every permission check without a role-permission lookup.
	// Scope: Platform
	RoleSuperAdmin = "super-admin"

	// RoleAdmin is the tenant administrator role.
	// Scope: Tenant
	RoleAdmin = "admin"

	// RoleEditor can create and modify tenant resources.
	// Scope: Tenant
	RoleEditor = "editor"

	// RoleViewer is the read-only default. Users with no group mapping and no
	// explicit assignment end up here.
	// Scope: Tenant
	RoleViewer = "viewer"
)

// WildcardPermission is reported by GetUserPermissions for super-admins in
// place of enumerating the full permission table.
const WildcardPermission = "*:*"

// -----------------------------------------------------------------------------
// Role Bundle Capabilities
// Fixed table mapping each bundle to its capability set. Each tier is a
// strict superset of the one below it.
// -----------------------------------------------------------------------------

var bundleCapabilities = map[RoleBundle]map[string]bool{
	BundleViewer: toSet(
		"read", "download", "view_metadata",
	),
	BundleContributor: toSet(
		"read", "download", "view_metadata",
		"upload", "create_folder",
	),
	BundleEditor: toSet(
		"read", "download", "view_metadata",
		"upload", "create_folder",
		"edit", "move", "rename", "delete_own",
	),
	BundleManager: toSet(
		"read", "download", "view_metadata",
		"upload", "create_folder",
		"edit", "move", "rename", "delete_own",
		"delete_any", "share", "manage_access",
	),
}

// BundleCapabilities returns the capability set for a role bundle, or nil for
// an unknown bundle.
func BundleCapabilities(bundle RoleBundle) map[string]bool {
	return bundleCapabilities[bundle]
}

// ValidBundle reports whether the bundle name is one of the fixed tiers.
func ValidBundle(bundle RoleBundle) bool {
	_, ok := bundleCapabilities[bundle]
	return ok
}

func toSet(caps ...string) map[string]bool {
	set := make(map[string]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}
