package service

import (
	"context"
	"testing"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newWorkspaceServiceWithMocks() (*WorkspaceService, *MockWorkspaceRepository, *MockUserRepository, *recordingPublisher) {
	workspaces := new(MockWorkspaceRepository)
	users := new(MockUserRepository)
	publisher := &recordingPublisher{}
	svc := NewWorkspaceService(workspaces, users, NewAuthorizationService(workspaces, nil), publisher, nil)
	return svc, workspaces, users, publisher
}

func TestWorkspaceService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("requested slug", func(t *testing.T) {
		svc, repo, _, publisher := newWorkspaceServiceWithMocks()
		userID := uuid.New()
		repo.On("SlugExists", ctx, "acme-sales").Return(false, nil)
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Workspace"), mock.AnythingOfType("*domain.WorkspaceMember")).Return(nil)

		ws, err := svc.Create(ctx, userID, domain.WorkspaceCreate{Name: " Acme ", Slug: "acme-sales"})
		require.NoError(t, err)
		assert.Equal(t, "Acme", ws.Name)
		assert.Equal(t, "acme-sales", ws.Slug)
		assert.Equal(t, userID, ws.OwnerID)

		owner := repo.Calls[1].Arguments.Get(2).(*domain.WorkspaceMember)
		assert.Equal(t, domain.RoleOwner, owner.Role)
		assert.Equal(t, domain.MemberActive, owner.Status)
		assert.Equal(t, []domain.EventType{domain.EventWorkspaceCreated}, publisher.types())
		repo.AssertExpectations(t)
	})

	t.Run("taken slug", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		repo.On("SlugExists", ctx, "acme-sales").Return(true, nil)

		_, err := svc.Create(ctx, uuid.New(), domain.WorkspaceCreate{Name: "Acme", Slug: "acme-sales"})
		de, ok := domain.AsError(err)
		require.True(t, ok)
		assert.Equal(t, domain.KindDuplicateEntity, de.Kind)
		assert.Equal(t, "slug", de.Field)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("generated slug retries on collision", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		repo.On("SlugExists", ctx, mock.AnythingOfType("string")).Return(true, nil).Once()
		repo.On("SlugExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
		repo.On("Create", ctx, mock.Anything, mock.Anything).Return(nil)

		ws, err := svc.Create(ctx, uuid.New(), domain.WorkspaceCreate{Name: "Acme"})
		require.NoError(t, err)
		assert.Len(t, ws.Slug, domain.GeneratedSlugLength)
		repo.AssertNumberOfCalls(t, "SlugExists", 2)
	})

	t.Run("invalid slug", func(t *testing.T) {
		svc, _, _, _ := newWorkspaceServiceWithMocks()
		_, err := svc.Create(ctx, uuid.New(), domain.WorkspaceCreate{Name: "Acme", Slug: "no"})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("anonymous", func(t *testing.T) {
		svc, _, _, _ := newWorkspaceServiceWithMocks()
		_, err := svc.Create(ctx, uuid.Nil, domain.WorkspaceCreate{Name: "Acme"})
		assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
	})
}

func TestWorkspaceService_HardDelete(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	ownerID := uuid.New()
	workspace := func() *domain.Workspace {
		return &domain.Workspace{ID: workspaceID, Name: "Acme", Slug: "acme-sales", OwnerID: ownerID}
	}

	t.Run("admin is refused", func(t *testing.T) {
		svc, repo, _, publisher := newWorkspaceServiceWithMocks()
		adminID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, adminID).Return(activeMember(workspaceID, adminID, domain.RoleAdmin), nil)

		err := svc.HardDelete(ctx, adminID, workspaceID)
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
		repo.AssertNotCalled(t, "HardDelete", mock.Anything, mock.Anything)
		assert.Empty(t, publisher.types())
	})

	t.Run("owner-role member who is not the owner is refused", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		otherID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, otherID).Return(activeMember(workspaceID, otherID, domain.RoleOwner), nil)
		repo.On("GetByID", ctx, workspaceID).Return(workspace(), nil)

		err := svc.HardDelete(ctx, otherID, workspaceID)
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
		repo.AssertNotCalled(t, "HardDelete", mock.Anything, mock.Anything)
	})

	t.Run("owner succeeds", func(t *testing.T) {
		svc, repo, _, publisher := newWorkspaceServiceWithMocks()
		repo.On("GetMember", ctx, workspaceID, ownerID).Return(activeMember(workspaceID, ownerID, domain.RoleOwner), nil)
		repo.On("GetByID", ctx, workspaceID).Return(workspace(), nil)
		repo.On("HardDelete", ctx, workspaceID).Return(nil)

		require.NoError(t, svc.HardDelete(ctx, ownerID, workspaceID))
		repo.AssertExpectations(t)
		assert.Equal(t, []domain.EventType{domain.EventWorkspaceHardDeleted}, publisher.types())
	})

	t.Run("missing workspace", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		repo.On("GetMember", ctx, workspaceID, ownerID).Return(activeMember(workspaceID, ownerID, domain.RoleOwner), nil)
		repo.On("GetByID", ctx, workspaceID).Return(nil, nil)

		err := svc.HardDelete(ctx, ownerID, workspaceID)
		assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))
	})
}

func TestWorkspaceService_SoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	ownerID := uuid.New()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	svc, repo, _, publisher := newWorkspaceServiceWithMocks()
	svc.now = func() time.Time { return fixed }

	ws := &domain.Workspace{ID: workspaceID, Name: "Acme", Slug: "acme-sales", OwnerID: ownerID}
	repo.On("GetMember", ctx, workspaceID, ownerID).Return(activeMember(workspaceID, ownerID, domain.RoleOwner), nil)
	repo.On("GetByID", ctx, workspaceID).Return(ws, nil)
	repo.On("SoftDelete", ctx, workspaceID, fixed).Return(nil).Once()
	repo.On("Restore", ctx, workspaceID).Return(nil).Once()

	require.NoError(t, svc.SoftDelete(ctx, ownerID, workspaceID))
	require.NotNil(t, ws.DeletedAt)

	// Already deleted: nothing is written.
	require.NoError(t, svc.SoftDelete(ctx, ownerID, workspaceID))

	restored, err := svc.Restore(ctx, ownerID, workspaceID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	repo.AssertExpectations(t)
	assert.Equal(t, []domain.EventType{domain.EventWorkspaceDeleted, domain.EventWorkspaceRestored}, publisher.types())
}

func TestWorkspaceService_SoftDeletedWorkspaceIsInactive(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	ownerID := uuid.New()
	adminID := uuid.New()
	invitedID := uuid.New()
	deletedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	svc, repo, _, publisher := newWorkspaceServiceWithMocks()
	ws := &domain.Workspace{ID: workspaceID, Name: "Acme", Slug: "acme-sales", OwnerID: ownerID, DeletedAt: &deletedAt}
	invited := deletedWorkspaceMember(workspaceID, invitedID, domain.RoleUser)
	invited.Status = domain.MemberInvited

	repo.On("GetMember", ctx, workspaceID, ownerID).Return(deletedWorkspaceMember(workspaceID, ownerID, domain.RoleOwner), nil)
	repo.On("GetMember", ctx, workspaceID, adminID).Return(deletedWorkspaceMember(workspaceID, adminID, domain.RoleAdmin), nil)
	repo.On("GetMember", ctx, workspaceID, invitedID).Return(invited, nil)
	repo.On("GetByID", ctx, workspaceID).Return(ws, nil)

	name := "Renamed"
	_, err := svc.Update(ctx, adminID, workspaceID, domain.WorkspaceUpdate{Name: &name})
	assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))

	_, err = svc.GetByID(ctx, ownerID, workspaceID)
	assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))

	_, err = svc.ListMembers(ctx, adminID, workspaceID)
	assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))

	_, err = svc.InviteMember(ctx, adminID, workspaceID, domain.MemberInvite{UserID: uuid.New(), Role: "user"})
	assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))

	err = svc.RemoveMember(ctx, ownerID, workspaceID, adminID)
	assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))

	_, err = svc.AcceptInvite(ctx, invitedID, workspaceID)
	assert.Equal(t, domain.KindEntityNotFound, domain.KindOf(err))

	// Admins cannot bring it back; the owner can.
	_, err = svc.Restore(ctx, adminID, workspaceID)
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))

	repo.On("Restore", ctx, workspaceID).Return(nil).Once()
	restored, err := svc.Restore(ctx, ownerID, workspaceID)
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)

	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ListMembers", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpdateMember", mock.Anything, mock.Anything)
	assert.Equal(t, []domain.EventType{domain.EventWorkspaceRestored}, publisher.types())
}

func TestWorkspaceService_Update(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()

	t.Run("user cannot manage", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		userID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, userID).Return(activeMember(workspaceID, userID, domain.RoleUser), nil)

		name := "Renamed"
		_, err := svc.Update(ctx, userID, workspaceID, domain.WorkspaceUpdate{Name: &name})
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	})

	t.Run("admin renames and sets page size", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		adminID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, adminID).Return(activeMember(workspaceID, adminID, domain.RoleAdmin), nil)
		repo.On("GetByID", ctx, workspaceID).Return(&domain.Workspace{ID: workspaceID, Name: "Acme"}, nil)
		repo.On("Update", ctx, mock.AnythingOfType("*domain.Workspace")).Return(nil)

		name := " Renamed "
		ws, err := svc.Update(ctx, adminID, workspaceID, domain.WorkspaceUpdate{
			Name:     &name,
			Settings: &domain.WorkspaceSettings{ClientsPageSize: 50},
		})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", ws.Name)
		assert.Equal(t, 50, ws.Settings.ClientsPageSize)
	})

	t.Run("negative page size", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		adminID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, adminID).Return(activeMember(workspaceID, adminID, domain.RoleAdmin), nil)
		repo.On("GetByID", ctx, workspaceID).Return(&domain.Workspace{ID: workspaceID, Name: "Acme"}, nil)

		_, err := svc.Update(ctx, adminID, workspaceID, domain.WorkspaceUpdate{
			Settings: &domain.WorkspaceSettings{ClientsPageSize: -1},
		})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})
}

func TestWorkspaceService_Members(t *testing.T) {
	ctx := context.Background()
	workspaceID := uuid.New()
	adminID := uuid.New()
	inviteeID := uuid.New()

	t.Run("invite then accept", func(t *testing.T) {
		svc, repo, users, publisher := newWorkspaceServiceWithMocks()
		repo.On("GetMember", ctx, workspaceID, adminID).Return(activeMember(workspaceID, adminID, domain.RoleAdmin), nil)
		users.On("GetByID", ctx, inviteeID).Return(&domain.User{ID: inviteeID, Email: "new@acme.ua"}, nil)
		repo.On("GetMember", ctx, workspaceID, inviteeID).Return(nil, nil).Once()
		repo.On("AddMember", ctx, mock.AnythingOfType("*domain.WorkspaceMember")).Return(nil)

		member, err := svc.InviteMember(ctx, adminID, workspaceID, domain.MemberInvite{UserID: inviteeID, Role: "user"})
		require.NoError(t, err)
		assert.Equal(t, domain.MemberInvited, member.Status)
		assert.Equal(t, domain.RoleUser, member.Role)

		repo.On("GetMember", ctx, workspaceID, inviteeID).Return(member, nil)
		repo.On("UpdateMember", ctx, member).Return(nil)

		accepted, err := svc.AcceptInvite(ctx, inviteeID, workspaceID)
		require.NoError(t, err)
		assert.Equal(t, domain.MemberActive, accepted.Status)
		assert.Equal(t, []domain.EventType{domain.EventMemberInvited}, publisher.types())
	})

	t.Run("owner role cannot be granted", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		repo.On("GetMember", ctx, workspaceID, adminID).Return(activeMember(workspaceID, adminID, domain.RoleAdmin), nil)

		_, err := svc.InviteMember(ctx, adminID, workspaceID, domain.MemberInvite{UserID: inviteeID, Role: "owner"})
		assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	})

	t.Run("existing member is a duplicate", func(t *testing.T) {
		svc, repo, users, _ := newWorkspaceServiceWithMocks()
		repo.On("GetMember", ctx, workspaceID, adminID).Return(activeMember(workspaceID, adminID, domain.RoleAdmin), nil)
		users.On("GetByID", ctx, inviteeID).Return(&domain.User{ID: inviteeID}, nil)
		repo.On("GetMember", ctx, workspaceID, inviteeID).Return(activeMember(workspaceID, inviteeID, domain.RoleUser), nil)

		_, err := svc.InviteMember(ctx, adminID, workspaceID, domain.MemberInvite{UserID: inviteeID, Role: "user"})
		assert.Equal(t, domain.KindDuplicateEntity, domain.KindOf(err))
	})

	t.Run("owner cannot be removed", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		ownerID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, adminID).Return(activeMember(workspaceID, adminID, domain.RoleAdmin), nil)
		repo.On("GetMember", ctx, workspaceID, ownerID).Return(activeMember(workspaceID, ownerID, domain.RoleOwner), nil)

		err := svc.RemoveMember(ctx, adminID, workspaceID, ownerID)
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
		repo.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("user cannot remove", func(t *testing.T) {
		svc, repo, _, _ := newWorkspaceServiceWithMocks()
		userID := uuid.New()
		repo.On("GetMember", ctx, workspaceID, userID).Return(activeMember(workspaceID, userID, domain.RoleUser), nil)

		err := svc.RemoveMember(ctx, userID, workspaceID, inviteeID)
		assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
	})
}
