package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
)

const workspaceColumns = `w.id, w.name, w.slug, w.owner_id, w.subscription_tier, w.settings, w.created_at, w.updated_at, w.deleted_at`

// WorkspaceRepository handles workspace data access
type WorkspaceRepository struct {
	db *DB
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(db *DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Create stores a workspace together with its owner membership
func (r *WorkspaceRepository) Create(ctx context.Context, workspace *domain.Workspace, owner *domain.WorkspaceMember) error {
	settings, err := json.Marshal(workspace.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	err = r.db.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workspaces (id, name, slug, owner_id, subscription_tier, settings, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			workspace.ID,
			workspace.Name,
			workspace.Slug,
			workspace.OwnerID,
			string(workspace.SubscriptionTier),
			string(settings),
			formatTime(workspace.CreatedAt),
			formatTime(workspace.UpdatedAt),
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
	err := r.db.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM workspaces WHERE slug = ?)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// GetByID retrieves a workspace by ID
func (r *WorkspaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	return r.getOne(ctx, `SELECT `+workspaceColumns+` FROM workspaces w WHERE w.id = ?`, id)
}

// GetBySlug retrieves a workspace by slug
func (r *WorkspaceRepository) GetBySlug(ctx context.Context, slug string) (*domain.Workspace, error) {
	return r.getOne(ctx, `SELECT `+workspaceColumns+` FROM workspaces w WHERE w.slug = ?`, slug)
}

func (r *WorkspaceRepository) getOne(ctx context.Context, query string, arg any) (*domain.Workspace, error) {
	workspace, err := scanWorkspace(r.db.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return workspace, nil
}

// ListByUserID retrieves the workspaces where the user is an active member,
// soft-deleted ones included.
func (r *WorkspaceRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Workspace, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT `+workspaceColumns+`
		FROM workspaces w
		INNER JOIN workspace_members wm ON w.id = wm.workspace_id
		WHERE wm.user_id = ? AND wm.status = 'active'
		ORDER BY w.created_at DESC
	`, userID)
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
	_, err = r.db.db.ExecContext(ctx,
		`UPDATE workspaces SET name = ?, settings = ?, updated_at = ? WHERE id = ?`,
		workspace.Name, string(settings), formatTime(workspace.UpdatedAt), workspace.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	return nil
}

// SoftDelete marks a workspace deleted
func (r *WorkspaceRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	ts := formatTime(at)
	_, err := r.db.db.ExecContext(ctx,
		`UPDATE workspaces SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

// Restore clears the deletion mark of a workspace
func (r *WorkspaceRepository) Restore(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.db.ExecContext(ctx,
		`UPDATE workspaces SET deleted_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NOT NULL`,
		formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to restore workspace: %w", err)
	}
	return nil
}

// HardDelete deletes a workspace; members and clients cascade
func (r *WorkspaceRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

// AddMember adds a member to a workspace
func (r *WorkspaceRepository) AddMember(ctx context.Context, member *domain.WorkspaceMember) error {
	if err := insertMember(ctx, r.db.db, member); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func insertMember(ctx context.Context, db execer, member *domain.WorkspaceMember) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, status, joined_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		member.WorkspaceID,
		member.UserID,
		string(member.Role),
		string(member.Status),
		formatTime(member.JoinedAt),
	)
	return err
}

// UpdateMember persists role and status of a member
func (r *WorkspaceRepository) UpdateMember(ctx context.Context, member *domain.WorkspaceMember) error {
	_, err := r.db.db.ExecContext(ctx,
		`UPDATE workspace_members SET role = ?, status = ? WHERE workspace_id = ? AND user_id = ?`,
		string(member.Role), string(member.Status), member.WorkspaceID, member.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return nil
}

// GetMember retrieves a workspace member
func (r *WorkspaceRepository) GetMember(ctx context.Context, workspaceID, userID uuid.UUID) (*domain.WorkspaceMember, error) {
	var deletedAt sql.NullString
	member, err := scanMember(r.db.db.QueryRowContext(ctx, `
		SELECT wm.workspace_id, wm.user_id, wm.role, wm.status, wm.joined_at, w.deleted_at
		FROM workspace_members wm
		INNER JOIN workspaces w ON w.id = wm.workspace_id
		WHERE wm.workspace_id = ? AND wm.user_id = ?
	`, workspaceID, userID), &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if member.WorkspaceDeletedAt, err = parseTimePtr(deletedAt); err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// ListMembers lists every membership of a workspace
func (r *WorkspaceRepository) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]domain.WorkspaceMember, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT workspace_id, user_id, role, status, joined_at
		FROM workspace_members
		WHERE workspace_id = ?
		ORDER BY joined_at, user_id
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []domain.WorkspaceMember
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *member)
	}
	return members, rows.Err()
}

// RemoveMember removes a member from a workspace
func (r *WorkspaceRepository) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	_, err := r.db.db.ExecContext(ctx,
		`DELETE FROM workspace_members WHERE workspace_id = ? AND user_id = ?`, workspaceID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkspace(row scanner) (*domain.Workspace, error) {
	var (
		workspace            domain.Workspace
		tier, settings       string
		createdAt, updatedAt string
		deletedAt            sql.NullString
	)
	if err := row.Scan(
		&workspace.ID,
		&workspace.Name,
		&workspace.Slug,
		&workspace.OwnerID,
		&tier,
		&settings,
		&createdAt,
		&updatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}

	workspace.SubscriptionTier = domain.SubscriptionTier(tier)
	if settings != "" {
		if err := json.Unmarshal([]byte(settings), &workspace.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	var err error
	if workspace.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if workspace.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if workspace.DeletedAt, err = parseTimePtr(deletedAt); err != nil {
		return nil, err
	}
	return &workspace, nil
}

// scanMember reads a membership row; extra receives trailing joined columns.
func scanMember(row scanner, extra ...any) (*domain.WorkspaceMember, error) {
	var (
		member               domain.WorkspaceMember
		role, status, joined string
	)
	dest := append([]any{&member.WorkspaceID, &member.UserID, &role, &status, &joined}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	member.Role = domain.RoleName(role)
	member.Status = domain.MemberStatus(status)

	joinedAt, err := parseTime(joined)
	if err != nil {
		return nil, err
	}
	member.JoinedAt = joinedAt
	return &member, nil
}
