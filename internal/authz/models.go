package authz

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrRoleNotFound            = errors.New("role not found")
	ErrRoleAlreadyExists       = errors.New("role already exists")
	ErrAssignmentNotFound      = errors.New("assignment not found")
	ErrAssignmentAlreadyExists = errors.New("assignment already exists")
	ErrAclEntryNotFound        = errors.New("acl entry not found")
	ErrAccessDenied            = errors.New("access denied")
	ErrInvalidScope            = errors.New("invalid scope")
	ErrInvalidRoleBundle       = errors.New("invalid role bundle")
)

// Scope defines the level at which a role applies
type Scope string

const (
	ScopePlatform Scope = "platform"
	ScopeTenant   Scope = "tenant"
)

// Role represents a named, scoped role with an access level
type Role struct {
	ID          string
	Name        string
	Scope       Scope
	AccessLevel string // admin, editor, viewer
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserRoleAssignment grants a role to a user inside one tenant.
// An assignment is active while ExpiresAt is nil or in the future.
type UserRoleAssignment struct {
	ID         string
	UserID     string
	TenantID   string
	RoleID     string
	AssignedBy string
	AssignedAt time.Time
	ExpiresAt  *time.Time
}

// Active reports whether the assignment currently applies.
func (a *UserRoleAssignment) Active(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// PrincipalType identifies what kind of principal an ACL entry grants to
type PrincipalType string

const (
	PrincipalUser  PrincipalType = "USER"
	PrincipalGroup PrincipalType = "GROUP"
)

// RoleBundle is a named tier of resource capabilities. Bundles form a strict
// hierarchy: each bundle's capability set is a superset of the one below it.
type RoleBundle string

const (
	BundleViewer      RoleBundle = "VIEWER"
	BundleContributor RoleBundle = "CONTRIBUTOR"
	BundleEditor      RoleBundle = "EDITOR"
	BundleManager     RoleBundle = "MANAGER"
)

// AclEntry grants a role bundle on one resource to one principal.
// Entries are upserted by (resource, principal).
type AclEntry struct {
	ID            string
	ResourceID    string
	ResourceType  string
	PrincipalType PrincipalType
	PrincipalID   string
	RoleBundle    RoleBundle
	GrantedBy     string
	GrantedAt     time.Time
	ExpiresAt     *time.Time
}

// Active reports whether the grant currently applies.
func (e *AclEntry) Active(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// RoleRepository defines the interface for role persistence
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	GetByID(ctx context.Context, id string) (*Role, error)
	List(ctx context.Context, scope *Scope) ([]*Role, error)
	Delete(ctx context.Context, id string) error
}

// AssignmentRepository defines the interface for user-role assignments
type AssignmentRepository interface {
	// Create stores a new assignment. Returns ErrAssignmentAlreadyExists on
	// a duplicate (user, tenant, role).
	Create(ctx context.Context, assignment *UserRoleAssignment) error

	// Delete removes an assignment.
	Delete(ctx context.Context, userID, tenantID, roleID string) error

	// ListActive retrieves the assignments active at now for (user, tenant).
	ListActive(ctx context.Context, userID, tenantID string, now time.Time) ([]*UserRoleAssignment, error)

	// Exists reports whether the exact (user, tenant, role) assignment exists.
	Exists(ctx context.Context, userID, tenantID, roleID string) (bool, error)
}

// RolePermissionRepository answers which (resource, action) pairs a role grants
type RolePermissionRepository interface {
	// HasPermission reports whether the role grants (resource, action).
	HasPermission(ctx context.Context, roleID, resource, action string) (bool, error)

	// ListForRole retrieves all "resource:action" strings granted by a role.
	ListForRole(ctx context.Context, roleID string) ([]string, error)
}

// AclRepository defines the interface for resource-level grants
type AclRepository interface {
	// Upsert creates or replaces the entry for (resource, principal).
	Upsert(ctx context.Context, entry *AclEntry) error

	// Delete removes an entry by id.
	Delete(ctx context.Context, entryID string) error

	// Get retrieves the active entry for (resource, principal) at now.
	Get(ctx context.Context, resourceID string, principalType PrincipalType, principalID string, now time.Time) (*AclEntry, error)

	// ListByResource retrieves all entries on a resource.
	ListByResource(ctx context.Context, resourceID string) ([]*AclEntry, error)

	// ListByPrincipal retrieves the active entries held by a principal at now.
	ListByPrincipal(ctx context.Context, principalType PrincipalType, principalID string, now time.Time) ([]*AclEntry, error)
}
