package domain

import "strings"

// Permission is a single capability inside a workspace.
type Permission string

const (
	PermissionCreateContact   Permission = "CREATE_CONTACT"
	PermissionUpdateContact   Permission = "UPDATE_CONTACT"
	PermissionDeleteContact   Permission = "DELETE_CONTACT"
	PermissionViewContact     Permission = "VIEW_CONTACT"
	PermissionManageWorkspace Permission = "MANAGE_WORKSPACE"
	PermissionDeleteWorkspace Permission = "DELETE_WORKSPACE"
	PermissionInviteUsers     Permission = "INVITE_USERS"
	PermissionRemoveUsers     Permission = "REMOVE_USERS"
	PermissionManageBilling   Permission = "MANAGE_BILLING"
)

// AllPermissions lists every permission in declaration order.
var AllPermissions = []Permission{
	PermissionCreateContact,
	PermissionUpdateContact,
	PermissionDeleteContact,
	PermissionViewContact,
	PermissionManageWorkspace,
	PermissionDeleteWorkspace,
	PermissionInviteUsers,
	PermissionRemoveUsers,
	PermissionManageBilling,
}

// RoleName is the persisted name of a role.
type RoleName string

const (
	RoleOwner RoleName = "owner"
	RoleAdmin RoleName = "admin"
	RoleUser  RoleName = "user"
)

// Role is an immutable named permission set. Only the three package-level
// instances exist; compare roles by Name.
type Role struct {
	name        RoleName
	rank        int
	permissions map[Permission]struct{}
}

func newRole(name RoleName, rank int, perms ...Permission) *Role {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return &Role{name: name, rank: rank, permissions: set}
}

var (
	OwnerRole = newRole(RoleOwner, 3, AllPermissions...)

	AdminRole = newRole(RoleAdmin, 2,
		PermissionCreateContact,
		PermissionUpdateContact,
		PermissionDeleteContact,
		PermissionViewContact,
		PermissionManageWorkspace,
		PermissionInviteUsers,
		PermissionRemoveUsers,
	)

	UserRole = newRole(RoleUser, 1,
		PermissionCreateContact,
		PermissionUpdateContact,
		PermissionViewContact,
	)
)

// RoleFromName resolves a stored role name. There are no custom roles.
func RoleFromName(name string) (*Role, error) {
	switch RoleName(strings.ToLower(strings.TrimSpace(name))) {
	case RoleOwner:
		return OwnerRole, nil
	case RoleAdmin:
		return AdminRole, nil
	case RoleUser:
		return UserRole, nil
	default:
		return nil, ErrUnknownRole
	}
}

func (r *Role) Name() RoleName { return r.name }

// Rank orders roles for display. It plays no part in permission checks.
func (r *Role) Rank() int { return r.rank }

func (r *Role) HasPermission(p Permission) bool {
	if r == nil {
		return false
	}
	_, ok := r.permissions[p]
	return ok
}

// Permissions returns the role's permissions in declaration order.
func (r *Role) Permissions() []Permission {
	out := make([]Permission, 0, len(r.permissions))
	for _, p := range AllPermissions {
		if _, ok := r.permissions[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *Role) String() string { return string(r.name) }
