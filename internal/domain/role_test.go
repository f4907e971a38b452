package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleFromName(t *testing.T) {
	role, err := RoleFromName(" Admin ")
	require.NoError(t, err)
	assert.Same(t, AdminRole, role)

	_, err = RoleFromName("superuser")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestRolePermissions(t *testing.T) {
	assert.Equal(t, AllPermissions, OwnerRole.Permissions())

	assert.True(t, AdminRole.HasPermission(PermissionDeleteContact))
	assert.True(t, AdminRole.HasPermission(PermissionManageWorkspace))
	assert.False(t, AdminRole.HasPermission(PermissionDeleteWorkspace))
	assert.False(t, AdminRole.HasPermission(PermissionManageBilling))

	assert.Equal(t, []Permission{
		PermissionCreateContact,
		PermissionUpdateContact,
		PermissionViewContact,
	}, UserRole.Permissions())

	var none *Role
	assert.False(t, none.HasPermission(PermissionViewContact))
}

func TestRoleRank(t *testing.T) {
	assert.Greater(t, OwnerRole.Rank(), AdminRole.Rank())
	assert.Greater(t, AdminRole.Rank(), UserRole.Rank())
}
