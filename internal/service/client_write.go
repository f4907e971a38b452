package service

import (
	"context"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Create validates the input, checks workspace uniqueness, and stores the
// client with its profile in one transaction.
func (s *ClientService) Create(ctx context.Context, actorID, workspaceID uuid.UUID, input domain.ClientCreate) (_ *domain.ClientView, err error) {
	defer func(start time.Time) { s.metrics.ObserveClientOperation("create", start, err) }(time.Now())

	if err := s.authz.EnsureHasPermission(ctx, actorID, domain.PermissionCreateContact, workspaceID); err != nil {
		return nil, err
	}
	if !input.ClientType.Valid() {
		return nil, &domain.Error{
			Kind:    domain.KindValidation,
			Field:   "clientType",
			Value:   string(input.ClientType),
			Message: "client type must be individual or company",
		}
	}
	if err := input.CheckExclusiveFields(); err != nil {
		return nil, err
	}

	now := s.now()
	client, err := domain.NewClient(domain.ClientProps{
		WorkspaceID: workspaceID,
		Type:        input.ClientType,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		Note:        input.Note,
		CreatedBy:   actorID,
	}, now)
	if err != nil {
		return nil, err
	}

	details, err := newDetails(client, input, now)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUnique(ctx, workspaceID, uniqueKeys(client, details), uuid.Nil); err != nil {
		return nil, err
	}

	if err := s.repo.SaveFullClient(ctx, client, details); err != nil {
		if domain.KindOf(err) == domain.KindDuplicateEntity {
			// Lost the check-then-insert race; the store's unique index decided.
			de, _ := domain.AsError(err)
			s.metrics.IncDuplicate(de.Field)
			return nil, de
		}
		return nil, storeError("save client", err)
	}

	log.Info().
		Str("workspace_id", workspaceID.String()).
		Str("client_id", client.ID().String()).
		Str("client_type", string(client.Type())).
		Msg("Client created")
	s.events.emit(ctx, domain.EventClientCreated, workspaceID, client.ID(), actorID)

	view := domain.NewClientView(client, details)
	return &view, nil
}

// newDetails builds the profile selected by the client type.
func newDetails(client *domain.Client, input domain.ClientCreate, now time.Time) (domain.ClientDetails, error) {
	switch client.Type() {
	case domain.ClientTypeIndividual:
		individual, err := domain.NewIndividual(client.ID(), input.IndividualProps(), now)
		if err != nil {
			return nil, err
		}
		return individual, nil
	case domain.ClientTypeCompany:
		company, err := domain.NewCompany(client.ID(), input.CompanyProps())
		if err != nil {
			return nil, err
		}
		return company, nil
	default:
		return nil, domain.NewValidationError("clientType", "client type must be individual or company")
	}
}

// Update applies a partial change to a client and its profile. The client
// type can never change.
func (s *ClientService) Update(ctx context.Context, actorID, workspaceID, clientID uuid.UUID, input domain.ClientUpdate) (_ *domain.ClientView, err error) {
	defer func(start time.Time) { s.metrics.ObserveClientOperation("update", start, err) }(time.Now())

	if input.ClientType.IsSet() {
		return nil, domain.NewImmutableFieldUpdate(entityClient, "clientType")
	}
	if err := s.authz.EnsureHasPermission(ctx, actorID, domain.PermissionUpdateContact, workspaceID); err != nil {
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
	if err := input.CheckExclusiveFields(client.Type()); err != nil {
		return nil, err
	}

	before := uniqueKeys(client, details)
	now := s.now()

	if err := client.Update(input.ClientPatch(), now); err != nil {
		return nil, err
	}
	err = domain.MatchDetails(details,
		func(i *domain.Individual) error { return i.Update(input.IndividualPatch(), now) },
		func(c *domain.Company) error { return c.Update(input.CompanyPatch()) },
	)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUnique(ctx, workspaceID, changedKeys(before, uniqueKeys(client, details)), client.ID()); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateFullClient(ctx, client, details); err != nil {
		if de, ok := domain.AsError(err); ok && de.Kind == domain.KindDuplicateEntity {
			s.metrics.IncDuplicate(de.Field)
		}
		return nil, storeError("update client", err)
	}

	log.Info().
		Str("workspace_id", workspaceID.String()).
		Str("client_id", client.ID().String()).
		Msg("Client updated")
	s.events.emit(ctx, domain.EventClientUpdated, workspaceID, client.ID(), actorID)

	view := domain.NewClientView(client, details)
	return &view, nil
}
