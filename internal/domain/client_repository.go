package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClientFilter narrows a workspace client listing.
type ClientFilter struct {
	Limit       int
	Offset      int
	Search      string
	OnlyDeleted bool
}

// ClientRepository defines the interface for client storage.
//
// Finders return (nil, nil) on miss. Exists* checks are scoped to one
// workspace and to non-deleted rows; excludeID == uuid.Nil excludes nothing.
type ClientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)
	FindIndividualByClientID(ctx context.Context, clientID uuid.UUID) (*Individual, error)
	FindCompanyByClientID(ctx context.Context, clientID uuid.UUID) (*Company, error)

	// SaveFullClient and UpdateFullClient write the client row and its single
	// detail row in one transaction.
	SaveFullClient(ctx context.Context, client *Client, details ClientDetails) error
	UpdateFullClient(ctx context.Context, client *Client, details ClientDetails) error

	ExistsByEmail(ctx context.Context, workspaceID uuid.UUID, email string, excludeID uuid.UUID) (bool, error)
	ExistsByPhone(ctx context.Context, workspaceID uuid.UUID, phone string, excludeID uuid.UUID) (bool, error)
	ExistsByTaxNumber(ctx context.Context, workspaceID uuid.UUID, taxNumber string, excludeID uuid.UUID) (bool, error)
	ExistsByTaxID(ctx context.Context, workspaceID uuid.UUID, taxID string, excludeID uuid.UUID) (bool, error)

	FindAllByWorkspaceID(ctx context.Context, workspaceID uuid.UUID, filter ClientFilter) ([]FullClient, error)
	CountAllByWorkspaceID(ctx context.Context, workspaceID uuid.UUID, filter ClientFilter) (int, error)

	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Restore(ctx context.Context, id uuid.UUID, at time.Time) error
	HardDelete(ctx context.Context, id uuid.UUID) error
}
