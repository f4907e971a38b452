package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationService_GetUserRole(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()

	t.Run("active member", func(t *testing.T) {
		repo := new(MockWorkspaceRepository)
		userID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, userID).Return(activeMember(workspaceID, userID, domain.RoleAdmin), nil)

		role, err := NewAuthorizationService(repo, nil).GetUserRole(ctx, userID, workspaceID)
		require.NoError(t, err)
		require.NotNil(t, role)
		assert.Equal(t, domain.RoleAdmin, role.Name())
		repo.AssertExpectations(t)
	})

	t.Run("non-member", func(t *testing.T) {
		repo := new(MockWorkspaceRepository)
		userID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, userID).Return(nil, nil)

		role, err := NewAuthorizationService(repo, nil).GetUserRole(ctx, userID, workspaceID)
		assert.NoError(t, err)
		assert.Nil(t, role)
	})

	t.Run("invited member has no role yet", func(t *testing.T) {
		repo := new(MockWorkspaceRepository)
		userID := uuid.New()
		member := activeMember(workspaceID, userID, domain.RoleUser)
		member.Status = domain.MemberInvited
		repo.On("GetMember", ctx, workspaceID, userID).Return(member, nil)

		role, err := NewAuthorizationService(repo, nil).GetUserRole(ctx, userID, workspaceID)
		assert.NoError(t, err)
		assert.Nil(t, role)
	})

	t.Run("unknown role grants nothing", func(t *testing.T) {
		repo := new(MockWorkspaceRepository)
		userID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, userID).Return(activeMember(workspaceID, userID, "superuser"), nil)

		role, err := NewAuthorizationService(repo, nil).GetUserRole(ctx, userID, workspaceID)
		assert.NoError(t, err)
		assert.Nil(t, role)
	})

	t.Run("nil ids skip the store", func(t *testing.T) {
		repo := new(MockWorkspaceRepository)
		svc := NewAuthorizationService(repo, nil)

		role, err := svc.GetUserRole(ctx, uuid.Nil, workspaceID)
		assert.NoError(t, err)
		assert.Nil(t, role)

		role, err = svc.GetUserRole(ctx, uuid.New(), uuid.Nil)
		assert.NoError(t, err)
		assert.Nil(t, role)
		assert.Empty(t, repo.Calls)
	})

	t.Run("store failure", func(t *testing.T) {
		repo := new(MockWorkspaceRepository)
		userID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, userID).Return(nil, errors.New("connection refused"))

		_, err := NewAuthorizationService(repo, nil).GetUserRole(ctx, userID, workspaceID)
		assert.Error(t, err)
	})
}

func TestAuthorizationService_GetUserRoleBySlug(t *testing.T) {
	ctx := context.Background()
	repo := new(MockWorkspaceRepository)
	svc := NewAuthorizationService(repo, nil)

	workspace := &domain.Workspace{ID: uuid.New(), Slug: "acme-sales"}
	userID := uuid.New()
	repo.On("GetBySlug", ctx, "acme-sales").Return(workspace, nil)
	repo.On("GetBySlug", ctx, "missing").Return(nil, nil)
	repo.On("GetMember", ctx, workspace.ID, userID).Return(activeMember(workspace.ID, userID, domain.RoleOwner), nil)

	role, err := svc.GetUserRoleBySlug(ctx, userID, "acme-sales")
	require.NoError(t, err)
	assert.Equal(t, domain.OwnerRole, role)

	role, err = svc.GetUserRoleBySlug(ctx, userID, "missing")
	assert.NoError(t, err)
	assert.Nil(t, role)
}

func TestAuthorizationService_EnsureHasPermission(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()

	tests := []struct {
		name       string
		role       domain.RoleName
		permission domain.Permission
		wantKind   *domain.ErrorKind
	}{
		{name: "user can view", role: domain.RoleUser, permission: domain.PermissionViewContact},
		{name: "user cannot delete contacts", role: domain.RoleUser, permission: domain.PermissionDeleteContact, wantKind: kindPtr(domain.KindForbidden)},
		{name: "admin can delete contacts", role: domain.RoleAdmin, permission: domain.PermissionDeleteContact},
		{name: "admin cannot delete workspace", role: domain.RoleAdmin, permission: domain.PermissionDeleteWorkspace, wantKind: kindPtr(domain.KindForbidden)},
		{name: "admin cannot manage billing", role: domain.RoleAdmin, permission: domain.PermissionManageBilling, wantKind: kindPtr(domain.KindForbidden)},
		{name: "owner can delete workspace", role: domain.RoleOwner, permission: domain.PermissionDeleteWorkspace},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockWorkspaceRepository)
			userID := uuid.New()
			repo.On("GetMember", ctx, workspaceID, userID).Return(activeMember(workspaceID, userID, tt.role), nil)

			err := NewAuthorizationService(repo, nil).EnsureHasPermission(ctx, userID, tt.permission, workspaceID)
			if tt.wantKind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, *tt.wantKind, domain.KindOf(err))
		})
	}

	t.Run("anonymous caller", func(t *testing.T) {
		repo := new(MockWorkspaceRepository)
		err := NewAuthorizationService(repo, nil).EnsureHasPermission(ctx, uuid.Nil, domain.PermissionViewContact, workspaceID)
		assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
		assert.Empty(t, repo.Calls)
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		repo := new(MockWorkspaceRepository)
		userID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, userID).Return(nil, nil)

		err := NewAuthorizationService(repo, nil).EnsureHasPermission(ctx, userID, domain.PermissionViewContact, workspaceID)
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	})

	t.Run("store failure is internal", func(t *testing.T) {
		repo := new(MockWorkspaceRepository)
		userID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, userID).Return(nil, errors.New("timeout"))

		err := NewAuthorizationService(repo, nil).EnsureHasPermission(ctx, userID, domain.PermissionViewContact, workspaceID)
		assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	})
}

func TestAuthorizationService_EnsureCanAccessWorkspace(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	member := uuid.New()
	stranger := uuid.New()

	repo := new(MockWorkspaceRepository)
	repo.On("GetMember", ctx, workspaceID, member).Return(activeMember(workspaceID, member, domain.RoleUser), nil)
	repo.On("GetMember", ctx, workspaceID, stranger).Return(nil, nil)
	svc := NewAuthorizationService(repo, nil)

	assert.NoError(t, svc.EnsureCanAccessWorkspace(ctx, member, workspaceID))
	assert.Equal(t, domain.KindForbidden, domain.KindOf(svc.EnsureCanAccessWorkspace(ctx, stranger, workspaceID)))
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(svc.EnsureCanAccessWorkspace(ctx, uuid.Nil, workspaceID)))
}

func kindPtr(k domain.ErrorKind) *domain.ErrorKind { return &k }

func deletedWorkspaceMember(workspaceID, userID uuid.UUID, role domain.RoleName) *domain.WorkspaceMember {
	member := activeMember(workspaceID, userID, role)
	deletedAt := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	member.WorkspaceDeletedAt = &deletedAt
	return member
}

func TestAuthorizationService_SoftDeletedWorkspace(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	ownerID := uuid.New()
	adminID := uuid.New()

	repo := new(MockWorkspaceRepository)
	repo.On("GetMember", ctx, workspaceID, ownerID).Return(deletedWorkspaceMember(workspaceID, ownerID, domain.RoleOwner), nil)
	repo.On("GetMember", ctx, workspaceID, adminID).Return(deletedWorkspaceMember(workspaceID, adminID, domain.RoleAdmin), nil)
	svc := NewAuthorizationService(repo, nil)

	t.Run("no role resolves", func(t *testing.T) {
		role, err := svc.GetUserRole(ctx, ownerID, workspaceID)
		require.NoError(t, err)
		assert.Nil(t, role)

		ok, err := svc.HasPermission(ctx, ownerID, domain.PermissionViewContact, workspaceID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("permission checks report the workspace missing", func(t *testing.T) {
		for _, userID := range []uuid.UUID{ownerID, adminID} {
			err := svc.EnsureHasPermission(ctx, userID, domain.PermissionCreateContact, workspaceID)
			assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))
		}
		err := svc.EnsureCanAccessWorkspace(ctx, adminID, workspaceID)
		assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))
	})

	t.Run("lifecycle stays open to the owner role", func(t *testing.T) {
		assert.NoError(t, svc.EnsureCanManageLifecycle(ctx, ownerID, workspaceID))

		err := svc.EnsureCanManageLifecycle(ctx, adminID, workspaceID)
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	})

	t.Run("strangers stay forbidden", func(t *testing.T) {
		stranger := uuid.New()
		repo.On("GetMember", ctx, workspaceID, stranger).Return(nil, nil)

		err := svc.EnsureHasPermission(ctx, stranger, domain.PermissionViewContact, workspaceID)
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	})
}
