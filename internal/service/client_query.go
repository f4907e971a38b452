package service

import (
	"context"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/security"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ListQuery is a page request for GetList.
type ListQuery struct {
	Limit       int
	Offset      int
	Search      string
	OnlyDeleted bool
}

// GetList returns one page of workspace clients and the total match count.
// The page size defaults to the workspace setting, then to the service default.
func (s *ClientService) GetList(ctx context.Context, actorID, workspaceID uuid.UUID, q ListQuery) (_ *domain.ClientList, err error) {
	defer func(start time.Time) { s.metrics.ObserveClientOperation("list", start, err) }(time.Now())

	if err := s.authz.EnsureHasPermission(ctx, actorID, domain.PermissionViewContact, workspaceID); err != nil {
		return nil, err
	}

	search, err := security.NormalizeSearch(q.Search)
	if err != nil {
		return nil, domain.WrapValidation("search", q.Search, err)
	}

	filter := domain.ClientFilter{
		Limit:       q.Limit,
		Offset:      q.Offset,
		Search:      search,
		OnlyDeleted: q.OnlyDeleted,
	}
	if filter.Limit <= 0 {
		filter.Limit, err = s.workspacePageSize(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
	}
	if filter.Limit > s.maxPageSize {
		filter.Limit = s.maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		rows  []domain.FullClient
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.repo.FindAllByWorkspaceID(gctx, workspaceID, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountAllByWorkspaceID(gctx, workspaceID, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, storeError("list clients", err)
	}

	items := make([]domain.ClientView, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.NewClientView(row.Client, row.Details))
	}

	return &domain.ClientList{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

func (s *ClientService) workspacePageSize(ctx context.Context, workspaceID uuid.UUID) (int, error) {
	workspace, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return 0, storeError("get workspace", err)
	}
	if workspace == nil {
		return 0, domain.NewEntityNotFound("workspace", workspaceID.String())
	}
	if size := workspace.Settings.ClientsPageSize; size > 0 {
		return size, nil
	}
	return s.defaultPageSize, nil
}

// GetDetails loads a client and the one profile its type selects.
func (s *ClientService) GetDetails(ctx context.Context, actorID, workspaceID, clientID uuid.UUID) (_ *domain.ClientView, err error) {
	defer func(start time.Time) { s.metrics.ObserveClientOperation("get", start, err) }(time.Now())

	if err := s.authz.EnsureHasPermission(ctx, actorID, domain.PermissionViewContact, workspaceID); err != nil {
		return nil, err
	}

	client, err := s.loadClient(ctx, workspaceID, clientID)
	if err != nil {
		return nil, err
	}
	details, err := s.loadDetails(ctx, client)
	if err != nil {
		return nil, err
	}

	view := domain.NewClientView(client, details)
	return &view, nil
}
