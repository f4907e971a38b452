package service

import (
	"context"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
)

const defaultActivityLimit = 50

// ActivityService exposes the recent change feed of a workspace.
type ActivityService struct {
	feed  domain.ActivityFeed
	authz *AuthorizationService
}

// NewActivityService creates a new activity service. A nil feed yields empty results.
func NewActivityService(feed domain.ActivityFeed, authz *AuthorizationService) *ActivityService {
	return &ActivityService{feed: feed, authz: authz}
}

// Recent returns up to limit of the newest events of the workspace.
func (s *ActivityService) Recent(ctx context.Context, userID, workspaceID uuid.UUID, limit int) ([]domain.Event, error) {
	if err := s.authz.EnsureHasPermission(ctx, userID, domain.PermissionViewContact, workspaceID); err != nil {
		return nil, err
	}
	if s.feed == nil {
		return []domain.Event{}, nil
	}
	if limit <= 0 {
		limit = defaultActivityLimit
	}

	events, err := s.feed.Recent(ctx, workspaceID, limit)
	if err != nil {
		return nil, storeError("read activity", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
