package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SubscriptionTier is the workspace plan. Billing itself lives elsewhere.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// WorkspaceSettings holds per-tenant tunables.
type WorkspaceSettings struct {
	ClientsPageSize int `json:"clients_page_size,omitempty"`
}

// Workspace represents a tenant workspace
type Workspace struct {
	ID               uuid.UUID         `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	OwnerID          uuid.UUID         `json:"owner_id"`
	SubscriptionTier SubscriptionTier  `json:"subscription_tier"`
	Settings         WorkspaceSettings `json:"settings"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	DeletedAt        *time.Time        `json:"deleted_at,omitempty"`
}

func (w *Workspace) IsDeleted() bool { return w.DeletedAt != nil }

// IsOwner reports whether userID owns the workspace.
func (w *Workspace) IsOwner(userID uuid.UUID) bool {
	return userID != uuid.Nil && w.OwnerID == userID
}

// SoftDelete marks the workspace deleted. It reports whether anything changed.
func (w *Workspace) SoftDelete(now time.Time) bool {
	if w.DeletedAt != nil {
		return false
	}
	t := now.UTC()
	w.DeletedAt = &t
	w.UpdatedAt = t
	return true
}

// Restore clears the deletion mark. It reports whether anything changed.
func (w *Workspace) Restore(now time.Time) bool {
	if w.DeletedAt == nil {
		return false
	}
	w.DeletedAt = nil
	w.UpdatedAt = now.UTC()
	return true
}

// NewWorkspace validates the name and fixes the owner. The slug is assigned by the caller.
func NewWorkspace(name string, slug Slug, ownerID uuid.UUID, now time.Time) (*Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "workspace name is required")
	}
	if len(name) > 255 {
		return nil, NewValidationError("name", "workspace name must be at most 255 characters")
	}
	if ownerID == uuid.Nil {
		return nil, NewValidationError("ownerId", "workspace owner is required")
	}
	t := now.UTC()
	return &Workspace{
		ID:               uuid.New(),
		Name:             name,
		Slug:             slug.String(),
		OwnerID:          ownerID,
		SubscriptionTier: TierFree,
		CreatedAt:        t,
		UpdatedAt:        t,
	}, nil
}

// WorkspaceCreate represents workspace creation data
type WorkspaceCreate struct {
	Name     string            `json:"name" validate:"required,max=255"`
	Slug     string            `json:"slug,omitempty" validate:"omitempty,min=5,max=50"`
	Settings WorkspaceSettings `json:"settings"`
}

// WorkspaceUpdate represents workspace update data
type WorkspaceUpdate struct {
	Name     *string            `json:"name,omitempty" validate:"omitempty,max=255"`
	Settings *WorkspaceSettings `json:"settings,omitempty"`
}

// MemberStatus is the lifecycle state of a membership.
type MemberStatus string

const (
	MemberActive    MemberStatus = "active"
	MemberInvited   MemberStatus = "invited"
	MemberSuspended MemberStatus = "suspended"
)

// WorkspaceMember represents workspace membership
type WorkspaceMember struct {
	WorkspaceID uuid.UUID    `json:"workspace_id"`
	UserID      uuid.UUID    `json:"user_id"`
	Role        RoleName     `json:"role"`
	Status      MemberStatus `json:"status"`
	JoinedAt    time.Time    `json:"joined_at"`
	// WorkspaceDeletedAt mirrors the workspace deletion mark. Only GetMember fills it.
	WorkspaceDeletedAt *time.Time `json:"-"`
}

func (m *WorkspaceMember) IsActive() bool { return m.Status == MemberActive }

// InDeletedWorkspace reports whether the workspace of the membership is soft-deleted.
func (m *WorkspaceMember) InDeletedWorkspace() bool { return m.WorkspaceDeletedAt != nil }

// MemberInvite represents an invitation of an existing user into a workspace.
type MemberInvite struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Role   string    `json:"role" validate:"required,oneof=admin user"`
}

// MemberRoleUpdate changes the role of an existing member.
type MemberRoleUpdate struct {
	Role   string       `json:"role" validate:"required,oneof=admin user"`
	Status MemberStatus `json:"status,omitempty" validate:"omitempty,oneof=active suspended"`
}

// MembershipReader is the read side the authorization service depends on.
type MembershipReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Workspace, error)
	GetBySlug(ctx context.Context, slug string) (*Workspace, error)
	GetMember(ctx context.Context, workspaceID, userID uuid.UUID) (*WorkspaceMember, error)
}

// WorkspaceRepository defines the interface for workspace storage
type WorkspaceRepository interface {
	MembershipReader
	// Create stores the workspace and its owner membership atomically.
	Create(ctx context.Context, workspace *Workspace, owner *WorkspaceMember) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]Workspace, error)
	Update(ctx context.Context, workspace *Workspace) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Restore(ctx context.Context, id uuid.UUID) error
	// HardDelete removes the workspace; clients and memberships go with it.
	HardDelete(ctx context.Context, id uuid.UUID) error

	AddMember(ctx context.Context, member *WorkspaceMember) error
	UpdateMember(ctx context.Context, member *WorkspaceMember) error
	RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error
	ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]WorkspaceMember, error)
}
