package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/metrics"
	"github.com/google/uuid"
)

const entityClient = "client"

// ClientService implements the client use cases. Every entry point checks an
// explicit permission before it touches the repository.
type ClientService struct {
	repo            domain.ClientRepository
	workspaces      domain.MembershipReader
	authz           *AuthorizationService
	events          *eventEmitter
	metrics         *metrics.Metrics
	defaultPageSize int
	maxPageSize     int
	now             func() time.Time
}

// NewClientService creates a new client service
func NewClientService(
	repo domain.ClientRepository,
	workspaces domain.MembershipReader,
	authz *AuthorizationService,
	publisher domain.EventPublisher,
	m *metrics.Metrics,
	defaultPageSize int,
	maxPageSize int,
) *ClientService {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &ClientService{
		repo:            repo,
		workspaces:      workspaces,
		authz:           authz,
		events:          newEventEmitter(publisher, m),
		metrics:         m,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		now:             time.Now,
	}
}

// loadClient returns EntityNotFound for a missing client and for one that
// belongs to another workspace.
func (s *ClientService) loadClient(ctx context.Context, workspaceID, clientID uuid.UUID) (*domain.Client, error) {
	client, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		return nil, storeError("get client", err)
	}
	if client == nil || client.WorkspaceID() != workspaceID {
		return nil, domain.NewEntityNotFound(entityClient, clientID.String())
	}
	return client, nil
}

// loadDetails fetches the one profile that matches the client type.
func (s *ClientService) loadDetails(ctx context.Context, client *domain.Client) (domain.ClientDetails, error) {
	switch client.Type() {
	case domain.ClientTypeIndividual:
		individual, err := s.repo.FindIndividualByClientID(ctx, client.ID())
		if err != nil {
			return nil, storeError("get individual", err)
		}
		if individual == nil {
			return nil, domain.NewEntityNotFound("individual", client.ID().String())
		}
		return individual, nil
	case domain.ClientTypeCompany:
		company, err := s.repo.FindCompanyByClientID(ctx, client.ID())
		if err != nil {
			return nil, storeError("get company", err)
		}
		if company == nil {
			return nil, domain.NewEntityNotFound("company", client.ID().String())
		}
		return company, nil
	default:
		return nil, domain.NewInternal(fmt.Sprintf("client %s has unknown type %q", client.ID(), client.Type()), nil)
	}
}

// uniqueKey is one workspace-unique identifier of a client.
type uniqueKey struct {
	field string
	value string
}

// uniqueKeys lists the populated unique identifiers in check order.
func uniqueKeys(client *domain.Client, details domain.ClientDetails) []uniqueKey {
	var keys []uniqueKey
	if v := client.Email(); v != nil {
		keys = append(keys, uniqueKey{field: "email", value: *v})
	}
	if v := client.Phone(); v != nil {
		keys = append(keys, uniqueKey{field: "phone", value: *v})
	}
	tax := domain.MatchDetails(details,
		func(i *domain.Individual) *uniqueKey {
			if i.TaxNumber == nil {
				return nil
			}
			return &uniqueKey{field: "taxNumber", value: *i.TaxNumber}
		},
		func(c *domain.Company) *uniqueKey {
			if c.TaxID == nil {
				return nil
			}
			return &uniqueKey{field: "taxId", value: *c.TaxID}
		},
	)
	if tax != nil {
		keys = append(keys, *tax)
	}
	return keys
}

// changedKeys returns the keys in next whose value differs from prev.
func changedKeys(prev, next []uniqueKey) []uniqueKey {
	old := make(map[string]string, len(prev))
	for _, k := range prev {
		old[k.field] = k.value
	}
	var changed []uniqueKey
	for _, k := range next {
		if v, ok := old[k.field]; !ok || v != k.value {
			changed = append(changed, k)
		}
	}
	return changed
}

// ensureUnique fails with DuplicateEntity on the first key already held by an
// active client of the workspace other than excludeID.
func (s *ClientService) ensureUnique(ctx context.Context, workspaceID uuid.UUID, keys []uniqueKey, excludeID uuid.UUID) error {
	for _, k := range keys {
		var (
			exists bool
			err    error
		)
		switch k.field {
		case "email":
			exists, err = s.repo.ExistsByEmail(ctx, workspaceID, k.value, excludeID)
		case "phone":
			exists, err = s.repo.ExistsByPhone(ctx, workspaceID, k.value, excludeID)
		case "taxNumber":
			exists, err = s.repo.ExistsByTaxNumber(ctx, workspaceID, k.value, excludeID)
		case "taxId":
			exists, err = s.repo.ExistsByTaxID(ctx, workspaceID, k.value, excludeID)
		}
		if err != nil {
			return storeError("check "+k.field, err)
		}
		if exists {
			s.metrics.IncDuplicate(k.field)
			return domain.NewDuplicateEntity(entityClient, k.field, k.value)
		}
	}
	return nil
}

// storeError keeps domain errors raised by a store and classifies the rest as internal.
func storeError(op string, err error) error {
	if de, ok := domain.AsError(err); ok {
		return de
	}
	return domain.NewInternal("failed to "+op, err)
}
