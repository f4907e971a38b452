package service

import (
	"context"
	"fmt"

	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuthorizationService resolves a user's role inside a workspace and answers
// permission queries. Every call reads the membership fresh from the store.
type AuthorizationService struct {
	memberships domain.MembershipReader
	metrics     *metrics.Metrics
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(memberships domain.MembershipReader, m *metrics.Metrics) *AuthorizationService {
	return &AuthorizationService{memberships: memberships, metrics: m}
}

// GetUserRole returns the role of an active member, or nil if the user has
// no active membership in the workspace or the workspace is soft-deleted.
func (s *AuthorizationService) GetUserRole(ctx context.Context, userID, workspaceID uuid.UUID) (*domain.Role, error) {
	member, role, err := s.resolve(ctx, userID, workspaceID)
	if err != nil || role == nil {
		return nil, err
	}
	if member.InDeletedWorkspace() {
		return nil, nil
	}
	return role, nil
}

// resolve loads the membership and its role regardless of the workspace
// deletion mark. role is nil for missing, inactive or corrupt memberships.
func (s *AuthorizationService) resolve(ctx context.Context, userID, workspaceID uuid.UUID) (*domain.WorkspaceMember, *domain.Role, error) {
	if userID == uuid.Nil || workspaceID == uuid.Nil {
		return nil, nil, nil
	}

	member, err := s.memberships.GetMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get member: %w", err)
	}
	if member == nil || !member.IsActive() {
		return member, nil, nil
	}

	role, err := domain.RoleFromName(string(member.Role))
	if err != nil {
		// A corrupt role string grants nothing.
		log.Warn().
			Str("workspace_id", workspaceID.String()).
			Str("user_id", userID.String()).
			Str("role", string(member.Role)).
			Msg("Membership has unknown role")
		return member, nil, nil
	}
	return member, role, nil
}

// GetUserRoleBySlug resolves the workspace by slug, then delegates to GetUserRole.
func (s *AuthorizationService) GetUserRoleBySlug(ctx context.Context, userID uuid.UUID, slug string) (*domain.Role, error) {
	workspace, err := s.memberships.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	if workspace == nil {
		return nil, nil
	}
	return s.GetUserRole(ctx, userID, workspace.ID)
}

// CanAccessWorkspace reports whether any role resolves for the user.
func (s *AuthorizationService) CanAccessWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) (bool, error) {
	role, err := s.GetUserRole(ctx, userID, workspaceID)
	if err != nil {
		return false, err
	}
	return role != nil, nil
}

// HasPermission fails closed: no role means no permission.
func (s *AuthorizationService) HasPermission(ctx context.Context, userID uuid.UUID, permission domain.Permission, workspaceID uuid.UUID) (bool, error) {
	role, err := s.GetUserRole(ctx, userID, workspaceID)
	if err != nil {
		return false, err
	}
	return role.HasPermission(permission), nil
}

// EnsureHasPermission returns Unauthorized for an anonymous caller and
// Forbidden when the permission is missing. Members of a soft-deleted
// workspace get EntityNotFound.
func (s *AuthorizationService) EnsureHasPermission(ctx context.Context, userID uuid.UUID, permission domain.Permission, workspaceID uuid.UUID) error {
	return s.ensure(ctx, userID, permission, workspaceID, false)
}

// EnsureCanManageLifecycle checks DELETE_WORKSPACE while ignoring the
// deletion mark, so that a soft-deleted workspace can be restored or purged.
func (s *AuthorizationService) EnsureCanManageLifecycle(ctx context.Context, userID, workspaceID uuid.UUID) error {
	return s.ensure(ctx, userID, domain.PermissionDeleteWorkspace, workspaceID, true)
}

func (s *AuthorizationService) ensure(ctx context.Context, userID uuid.UUID, permission domain.Permission, workspaceID uuid.UUID, allowDeleted bool) error {
	if userID == uuid.Nil {
		return domain.NewUnauthorized("authentication required")
	}

	member, role, err := s.resolve(ctx, userID, workspaceID)
	if err != nil {
		return domain.NewInternal("failed to resolve permissions", err)
	}
	if role != nil && member.InDeletedWorkspace() && !allowDeleted {
		return domain.NewEntityNotFound(entityWorkspace, workspaceID.String())
	}
	if !role.HasPermission(permission) {
		s.metrics.IncDenied(string(permission))
		log.Debug().
			Str("workspace_id", workspaceID.String()).
			Str("user_id", userID.String()).
			Str("permission", string(permission)).
			Msg("Permission denied")
		return domain.NewForbidden(fmt.Sprintf("missing permission %s", permission))
	}
	return nil
}

// EnsureCanAccessWorkspace returns Forbidden when the user is not an active
// member and EntityNotFound when the workspace is soft-deleted.
func (s *AuthorizationService) EnsureCanAccessWorkspace(ctx context.Context, userID, workspaceID uuid.UUID) error {
	if userID == uuid.Nil {
		return domain.NewUnauthorized("authentication required")
	}

	member, role, err := s.resolve(ctx, userID, workspaceID)
	if err != nil {
		return domain.NewInternal("failed to resolve membership", err)
	}
	if role == nil {
		s.metrics.IncDenied("ACCESS_WORKSPACE")
		return domain.NewForbidden("workspace access denied")
	}
	if member.InDeletedWorkspace() {
		return domain.NewEntityNotFound(entityWorkspace, workspaceID.String())
	}
	return nil
}
