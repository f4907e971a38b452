package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	entityWorkspace = "workspace"
	entityMember    = "member"

	maxSlugAttempts = 10
)

var errSlugExhausted = errors.New("could not generate a unique slug")

// WorkspaceService handles workspace operations
type WorkspaceService struct {
	workspaceRepo domain.WorkspaceRepository
	userRepo      domain.UserRepository
	authz         *AuthorizationService
	events        *eventEmitter
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewWorkspaceService creates a new workspace service
func NewWorkspaceService(
	workspaceRepo domain.WorkspaceRepository,
	userRepo domain.UserRepository,
	authz *AuthorizationService,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
) *WorkspaceService {
	return &WorkspaceService{
		workspaceRepo: workspaceRepo,
		userRepo:      userRepo,
		authz:         authz,
		events:        newEventEmitter(publisher, m),
		metrics:       m,
		now:           time.Now,
	}
}

// Create creates a new workspace and adds the creator as its active owner
func (s *WorkspaceService) Create(ctx context.Context, userID uuid.UUID, input domain.WorkspaceCreate) (*domain.Workspace, error) {
	if userID == uuid.Nil {
		return nil, domain.NewUnauthorized("authentication required")
	}

	slug, err := s.resolveSlug(ctx, input.Slug)
	if err != nil {
		return nil, err
	}

	now := s.now()
	workspace, err := domain.NewWorkspace(input.Name, slug, userID, now)
	if err != nil {
		return nil, err
	}
	workspace.Settings = input.Settings

	owner := &domain.WorkspaceMember{
		WorkspaceID: workspace.ID,
		UserID:      userID,
		Role:        domain.RoleOwner,
		Status:      domain.MemberActive,
		JoinedAt:    workspace.CreatedAt,
	}

	if err := s.workspaceRepo.Create(ctx, workspace, owner); err != nil {
		return nil, storeError("create workspace", err)
	}

	s.metrics.IncWorkspaceCreated()
	log.Info().
		Str("workspace_id", workspace.ID.String()).
		Str("slug", workspace.Slug).
		Str("owner_id", userID.String()).
		Msg("Workspace created")
	s.events.emit(ctx, domain.EventWorkspaceCreated, workspace.ID, workspace.ID, userID)

	return workspace, nil
}

// resolveSlug validates a requested slug or generates a fresh one, retrying on collision.
func (s *WorkspaceService) resolveSlug(ctx context.Context, requested string) (domain.Slug, error) {
	if strings.TrimSpace(requested) != "" {
		slug, err := domain.NewSlug(requested)
		if err != nil {
			return domain.Slug{}, domain.WrapValidation("slug", requested, err)
		}
		exists, err := s.workspaceRepo.SlugExists(ctx, slug.String())
		if err != nil {
			return domain.Slug{}, storeError("check slug", err)
		}
		if exists {
			return domain.Slug{}, domain.NewDuplicateEntity(entityWorkspace, "slug", slug.String())
		}
		return slug, nil
	}

	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug, err := domain.GenerateSlug()
		if err != nil {
			return domain.Slug{}, domain.NewInternal("failed to generate slug", err)
		}
		exists, err := s.workspaceRepo.SlugExists(ctx, slug.String())
		if err != nil {
			return domain.Slug{}, storeError("check slug", err)
		}
		if !exists {
			return slug, nil
		}
		log.Debug().Str("slug", slug.String()).Msg("Generated slug collided, retrying")
	}
	return domain.Slug{}, domain.NewInternal("failed to create workspace", errSlugExhausted)
}

// ListByUser retrieves all workspaces the user is a member of
func (s *WorkspaceService) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error) {
	if userID == uuid.Nil {
		return nil, domain.NewUnauthorized("authentication required")
	}
	workspaces, err := s.workspaceRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, storeError("list workspaces", err)
	}
	if workspaces == nil {
		workspaces = []domain.Workspace{}
	}
	return workspaces, nil
}

// GetByID retrieves a workspace by ID with access check
func (s *WorkspaceService) GetByID(ctx context.Context, userID, workspaceID uuid.UUID) (*domain.Workspace, error) {
	if err := s.authz.EnsureCanAccessWorkspace(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	return s.load(ctx, workspaceID)
}

// GetBySlug resolves a workspace by its public slug with access check
func (s *WorkspaceService) GetBySlug(ctx context.Context, userID uuid.UUID, slug string) (*domain.Workspace, error) {
	if userID == uuid.Nil {
		return nil, domain.NewUnauthorized("authentication required")
	}
	role, err := s.authz.GetUserRoleBySlug(ctx, userID, slug)
	if err != nil {
		return nil, storeError("resolve role", err)
	}
	if role == nil {
		// Unknown slugs and foreign workspaces look the same to the caller.
		return nil, domain.NewEntityNotFound(entityWorkspace, slug)
	}
	workspace, err := s.workspaceRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, storeError("get workspace", err)
	}
	if workspace == nil {
		return nil, domain.NewEntityNotFound(entityWorkspace, slug)
	}
	return workspace, nil
}

// Update changes the name and settings of a workspace
func (s *WorkspaceService) Update(ctx context.Context, userID, workspaceID uuid.UUID, input domain.WorkspaceUpdate) (*domain.Workspace, error) {
	if err := s.authz.EnsureHasPermission(ctx, userID, domain.PermissionManageWorkspace, workspaceID); err != nil {
		return nil, err
	}

	workspace, err := s.load(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "workspace name is required")
		}
		workspace.Name = name
	}
	if input.Settings != nil {
		if input.Settings.ClientsPageSize < 0 {
			return nil, domain.NewValidationError("settings.clientsPageSize", "page size must not be negative")
		}
		workspace.Settings = *input.Settings
	}
	workspace.UpdatedAt = s.now().UTC()

	if err := s.workspaceRepo.Update(ctx, workspace); err != nil {
		return nil, storeError("update workspace", err)
	}
	return workspace, nil
}

// SoftDelete marks the workspace deleted (owner only)
func (s *WorkspaceService) SoftDelete(ctx context.Context, userID, workspaceID uuid.UUID) error {
	workspace, err := s.loadAsOwner(ctx, userID, workspaceID)
	if err != nil {
		return err
	}
	if !workspace.SoftDelete(s.now()) {
		return nil
	}
	if err := s.workspaceRepo.SoftDelete(ctx, workspaceID, *workspace.DeletedAt); err != nil {
		return storeError("delete workspace", err)
	}

	log.Info().Str("workspace_id", workspaceID.String()).Msg("Workspace soft-deleted")
	s.events.emit(ctx, domain.EventWorkspaceDeleted, workspaceID, workspaceID, userID)
	return nil
}

// Restore clears the deletion mark of a workspace (owner only)
func (s *WorkspaceService) Restore(ctx context.Context, userID, workspaceID uuid.UUID) (*domain.Workspace, error) {
	workspace, err := s.loadAsOwner(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if !workspace.Restore(s.now()) {
		return workspace, nil
	}
	if err := s.workspaceRepo.Restore(ctx, workspaceID); err != nil {
		return nil, storeError("restore workspace", err)
	}

	log.Info().Str("workspace_id", workspaceID.String()).Msg("Workspace restored")
	s.events.emit(ctx, domain.EventWorkspaceRestored, workspaceID, workspaceID, userID)
	return workspace, nil
}

// HardDelete permanently removes a workspace with all its clients and
// memberships. Only the owner may do this; an Admin is refused even though
// it may delete individual clients.
func (s *WorkspaceService) HardDelete(ctx context.Context, userID, workspaceID uuid.UUID) error {
	if _, err := s.loadAsOwner(ctx, userID, workspaceID); err != nil {
		return err
	}
	if err := s.workspaceRepo.HardDelete(ctx, workspaceID); err != nil {
		return storeError("hard delete workspace", err)
	}

	log.Warn().
		Str("workspace_id", workspaceID.String()).
		Str("owner_id", userID.String()).
		Msg("Workspace permanently deleted")
	s.events.emit(ctx, domain.EventWorkspaceHardDeleted, workspaceID, workspaceID, userID)
	return nil
}

// loadAsOwner checks DELETE_WORKSPACE and ownership before returning the workspace.
func (s *WorkspaceService) loadAsOwner(ctx context.Context, userID, workspaceID uuid.UUID) (*domain.Workspace, error) {
	if err := s.authz.EnsureCanManageLifecycle(ctx, userID, workspaceID); err != nil {
		return nil, err
	}
	workspace, err := s.load(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !workspace.IsOwner(userID) {
		return nil, domain.NewForbidden("only the workspace owner can do this")
	}
	return workspace, nil
}

func (s *WorkspaceService) load(ctx context.Context, workspaceID uuid.UUID) (*domain.Workspace, error) {
	workspace, err := s.workspaceRepo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, storeError("get workspace", err)
	}
	if workspace == nil {
		return nil, domain.NewEntityNotFound(entityWorkspace, workspaceID.String())
	}
	return workspace, nil
}

// ListMembers lists the memberships of a workspace
func (s *WorkspaceService) ListMembers(ctx context.Context, userID, workspaceID uuid.UUID) ([]domain.WorkspaceMember, error) {
	if err := s.authz.EnsureHasPermission(ctx, userID, domain.PermissionViewContact, workspaceID); err != nil {
		return nil, err
	}
	members, err := s.workspaceRepo.ListMembers(ctx, workspaceID)
	if err != nil {
		return nil, storeError("list members", err)
	}
	if members == nil {
		members = []domain.WorkspaceMember{}
	}
	return members, nil
}

// InviteMember adds an existing user as an invited member. The invitation
// grants nothing until it is accepted.
func (s *WorkspaceService) InviteMember(ctx context.Context, requesterID, workspaceID uuid.UUID, input domain.MemberInvite) (*domain.WorkspaceMember, error) {
	if err := s.authz.EnsureHasPermission(ctx, requesterID, domain.PermissionInviteUsers, workspaceID); err != nil {
		return nil, err
	}

	role, err := assignableRole(input.Role)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		return nil, storeError("get user", err)
	}
	if user == nil {
		return nil, domain.NewEntityNotFound("user", input.UserID.String())
	}

	existing, err := s.workspaceRepo.GetMember(ctx, workspaceID, input.UserID)
	if err != nil {
		return nil, storeError("get member", err)
	}
	if existing != nil {
		return nil, domain.NewDuplicateEntity(entityMember, "userId", input.UserID.String())
	}

	member := &domain.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      input.UserID,
		Role:        role.Name(),
		Status:      domain.MemberInvited,
		JoinedAt:    s.now().UTC(),
	}
	if err := s.workspaceRepo.AddMember(ctx, member); err != nil {
		return nil, storeError("add member", err)
	}

	s.events.emit(ctx, domain.EventMemberInvited, workspaceID, input.UserID, requesterID)
	return member, nil
}

// AcceptInvite activates the caller's pending membership.
func (s *WorkspaceService) AcceptInvite(ctx context.Context, userID, workspaceID uuid.UUID) (*domain.WorkspaceMember, error) {
	if userID == uuid.Nil {
		return nil, domain.NewUnauthorized("authentication required")
	}
	member, err := s.workspaceRepo.GetMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, storeError("get member", err)
	}
	if member == nil || member.Status == domain.MemberSuspended {
		return nil, domain.NewEntityNotFound(entityMember, userID.String())
	}
	if member.InDeletedWorkspace() {
		return nil, domain.NewEntityNotFound(entityWorkspace, workspaceID.String())
	}
	if member.Status == domain.MemberActive {
		return member, nil
	}

	member.Status = domain.MemberActive
	member.JoinedAt = s.now().UTC()
	if err := s.workspaceRepo.UpdateMember(ctx, member); err != nil {
		return nil, storeError("update member", err)
	}
	return member, nil
}

// ChangeMemberRole changes the role or status of a non-owner member
func (s *WorkspaceService) ChangeMemberRole(ctx context.Context, requesterID, workspaceID, userID uuid.UUID, input domain.MemberRoleUpdate) (*domain.WorkspaceMember, error) {
	if err := s.authz.EnsureHasPermission(ctx, requesterID, domain.PermissionInviteUsers, workspaceID); err != nil {
		return nil, err
	}

	role, err := assignableRole(input.Role)
	if err != nil {
		return nil, err
	}

	member, err := s.target(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	member.Role = role.Name()
	if input.Status != "" {
		if input.Status != domain.MemberActive && input.Status != domain.MemberSuspended {
			return nil, domain.NewValidationError("status", "status must be active or suspended")
		}
		member.Status = input.Status
	}
	if err := s.workspaceRepo.UpdateMember(ctx, member); err != nil {
		return nil, storeError("update member", err)
	}
	return member, nil
}

// RemoveMember removes a member from a workspace. The owner cannot be removed.
func (s *WorkspaceService) RemoveMember(ctx context.Context, requesterID, workspaceID, userID uuid.UUID) error {
	if err := s.authz.EnsureHasPermission(ctx, requesterID, domain.PermissionRemoveUsers, workspaceID); err != nil {
		return err
	}
	if _, err := s.target(ctx, workspaceID, userID); err != nil {
		return err
	}
	if err := s.workspaceRepo.RemoveMember(ctx, workspaceID, userID); err != nil {
		return storeError("remove member", err)
	}

	s.events.emit(ctx, domain.EventMemberRemoved, workspaceID, userID, requesterID)
	return nil
}

// target loads a member that may be modified by another member.
func (s *WorkspaceService) target(ctx context.Context, workspaceID, userID uuid.UUID) (*domain.WorkspaceMember, error) {
	member, err := s.workspaceRepo.GetMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, storeError("get member", err)
	}
	if member == nil {
		return nil, domain.NewEntityNotFound(entityMember, userID.String())
	}
	if member.Role == domain.RoleOwner {
		return nil, domain.NewForbidden("the workspace owner cannot be modified")
	}
	return member, nil
}

// assignableRole parses a role that may be granted through membership management.
func assignableRole(name string) (*domain.Role, error) {
	role, err := domain.RoleFromName(name)
	if err != nil {
		return nil, domain.WrapValidation("role", name, err)
	}
	if role.Name() == domain.RoleOwner {
		return nil, domain.NewValidationError("role", fmt.Sprintf("role %s cannot be assigned", role))
	}
	return role, nil
}
