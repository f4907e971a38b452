package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const workspaceColumns = `id, name, slug, owner_id, subscription_tier, settings, created_at, updated_at, deleted_at`

// WorkspaceRepository handles workspace data access
type WorkspaceRepository struct {
	db *DB
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(db *DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Create stores a workspace together with its owner membership
func (r *WorkspaceRepository) Create(ctx context.Context, workspace *domain.Workspace, owner *domain.WorkspaceMember) error {
	settings, err := json.Marshal(workspace.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO workspaces (id, name, slug, owner_id, subscription_tier, settings, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			workspace.ID,
			workspace.Name,
			workspace.Slug,
			workspace.OwnerID,
			workspace.SubscriptionTier,
			settings,
			workspace.CreatedAt,
			workspace.UpdatedAt,
		)
		if err != nil {
			return translateUnique(err, map[string]string{"slug": workspace.Slug})
		}
		return insertMember(ctx, tx, owner)
	})
	if err != nil {
		if _, ok := domain.AsError(err); ok {
			return err
		}
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	return nil
}

// SlugExists checks whether any workspace, deleted or not, holds the slug
func (r *WorkspaceRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM workspaces WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// GetByID retrieves a workspace by ID
func (r *WorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	return r.getOne(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, id)
}

// GetBySlug retrieves a workspace by slug
func (r *WorkspaceRepository) GetBySlug(ctx context.Context, slug string) (*domain.Workspace, error) {
	return r.getOne(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE slug = $1`, slug)
}

func (r *WorkspaceRepository) getOne(ctx context.Context, query string, arg any) (*domain.Workspace, error) {
	workspace, err := scanWorkspace(r.db.Pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return workspace, nil
}

// ListByUserID retrieves the workspaces where the user is an active member,
// soft-deleted ones included.
func (r *WorkspaceRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error) {
	query := `
		SELECT w.id, w.name, w.slug, w.owner_id, w.subscription_tier, w.settings,
		       w.created_at, w.updated_at, w.deleted_at
		FROM workspaces w
		INNER JOIN workspace_members wm ON w.id = wm.workspace_id
		WHERE wm.user_id = $1 AND wm.status = 'active'
		ORDER BY w.created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []domain.Workspace
	for rows.Next() {
		workspace, err := scanWorkspace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, *workspace)
	}

	return workspaces, rows.Err()
}

// Update persists name and settings
func (r *WorkspaceRepository) Update(ctx context.Context, workspace *domain.Workspace) error {
	settings, err := json.Marshal(workspace.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		UPDATE workspaces
		SET name = $2, settings = $3, updated_at = $4
		WHERE id = $1
	`, workspace.ID, workspace.Name, settings, workspace.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}

	return nil
}

// SoftDelete marks a workspace deleted
func (r *WorkspaceRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE workspaces SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

// Restore clears the deletion mark of a workspace
func (r *WorkspaceRepository) Restore(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE workspaces SET deleted_at = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NOT NULL
	`, id)
	if err != nil {
		return fmt.Errorf("failed to restore workspace: %w", err)
	}
	return nil
}

// HardDelete deletes a workspace; members and clients cascade
func (r *WorkspaceRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

// AddMember adds a member to a workspace
func (r *WorkspaceRepository) AddMember(ctx context.Context, member *domain.WorkspaceMember) error {
	if err := insertMember(ctx, r.db.Pool, member); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertMember(ctx context.Context, db execer, member *domain.WorkspaceMember) error {
	_, err := db.Exec(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, status, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		member.WorkspaceID,
		member.UserID,
		member.Role,
		member.Status,
		member.JoinedAt,
	)
	return err
}

// UpdateMember persists role and status of a member
func (r *WorkspaceRepository) UpdateMember(ctx context.Context, member *domain.WorkspaceMember) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE workspace_members SET role = $3, status = $4
		WHERE workspace_id = $1 AND user_id = $2
	`, member.WorkspaceID, member.UserID, member.Role, member.Status)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return nil
}

// GetMember retrieves a workspace member
func (r *WorkspaceRepository) GetMember(ctx context.Context, workspaceID, userID uuid.UUID) (*domain.WorkspaceMember, error) {
	query := `
		SELECT wm.workspace_id, wm.user_id, wm.role, wm.status, wm.joined_at, w.deleted_at
		FROM workspace_members wm
		INNER JOIN workspaces w ON w.id = wm.workspace_id
		WHERE wm.workspace_id = $1 AND wm.user_id = $2
	`

	var member domain.WorkspaceMember
	err := r.db.Pool.QueryRow(ctx, query, workspaceID, userID).Scan(
		&member.WorkspaceID,
		&member.UserID,
		&member.Role,
		&member.Status,
		&member.JoinedAt,
		&member.WorkspaceDeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return &member, nil
}

// ListMembers lists every membership of a workspace
func (r *WorkspaceRepository) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]domain.WorkspaceMember, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT workspace_id, user_id, role, status, joined_at
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY joined_at, user_id
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []domain.WorkspaceMember
	for rows.Next() {
		var member domain.WorkspaceMember
		if err := rows.Scan(&member.WorkspaceID, &member.UserID, &member.Role, &member.Status, &member.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// RemoveMember removes a member from a workspace
func (r *WorkspaceRepository) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	query := `DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2`

	_, err := r.db.Pool.Exec(ctx, query, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

func scanWorkspace(row pgx.Row) (*domain.Workspace, error) {
	var workspace domain.Workspace
	var settingsJSON []byte

	if err := row.Scan(
		&workspace.ID,
		&workspace.Name,
		&workspace.Slug,
		&workspace.OwnerID,
		&workspace.SubscriptionTier,
		&settingsJSON,
		&workspace.CreatedAt,
		&workspace.UpdatedAt,
		&workspace.DeletedAt,
	); err != nil {
		return nil, err
	}

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &workspace.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	return &workspace, nil
}
