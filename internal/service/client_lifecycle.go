package service

import (
	"context"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Delete soft-deletes a client. Deleting a deleted client is a no-op.
func (s *ClientService) Delete(ctx context.Context, actorID, workspaceID, clientID uuid.UUID) (err error) {
	defer func(start time.Time) { s.metrics.ObserveClientOperation("delete", start, err) }(time.Now())

	if err := s.authz.EnsureHasPermission(ctx, actorID, domain.PermissionDeleteContact, workspaceID); err != nil {
		return err
	}

	client, err := s.loadClient(ctx, workspaceID, clientID)
	if err != nil {
		return err
	}
	if !client.SoftDelete(s.now()) {
		return nil
	}

	if err := s.repo.SoftDelete(ctx, client.ID(), *client.DeletedAt()); err != nil {
		return storeError("delete client", err)
	}

	log.Info().
		Str("workspace_id", workspaceID.String()).
		Str("client_id", clientID.String()).
		Msg("Client soft-deleted")
	s.events.emit(ctx, domain.EventClientDeleted, workspaceID, clientID, actorID)
	return nil
}

// Restore clears the deletion mark. Restoring an active client is a no-op.
// The client's identifiers may have been reused while it was deleted, so they
// are checked again before the restore is written.
func (s *ClientService) Restore(ctx context.Context, actorID, workspaceID, clientID uuid.UUID) (_ *domain.ClientView, err error) {
	defer func(start time.Time) { s.metrics.ObserveClientOperation("restore", start, err) }(time.Now())

	if err := s.authz.EnsureHasPermission(ctx, actorID, domain.PermissionDeleteContact, workspaceID); err != nil {
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

	if client.IsDeleted() {
		if err := s.ensureUnique(ctx, workspaceID, uniqueKeys(client, details), client.ID()); err != nil {
			return nil, err
		}

		now := s.now()
		client.Restore(now)
		if err := s.repo.Restore(ctx, client.ID(), now); err != nil {
			return nil, storeError("restore client", err)
		}

		log.Info().
			Str("workspace_id", workspaceID.String()).
			Str("client_id", clientID.String()).
			Msg("Client restored")
		s.events.emit(ctx, domain.EventClientRestored, workspaceID, clientID, actorID)
	}

	view := domain.NewClientView(client, details)
	return &view, nil
}

// HardDelete removes a client permanently. The profile row goes with it by
// foreign key cascade.
func (s *ClientService) HardDelete(ctx context.Context, actorID, workspaceID, clientID uuid.UUID) (err error) {
	defer func(start time.Time) { s.metrics.ObserveClientOperation("hard_delete", start, err) }(time.Now())

	if err := s.authz.EnsureHasPermission(ctx, actorID, domain.PermissionDeleteContact, workspaceID); err != nil {
		return err
	}

	if _, err := s.loadClient(ctx, workspaceID, clientID); err != nil {
		return err
	}
	if err := s.repo.HardDelete(ctx, clientID); err != nil {
		return storeError("hard delete client", err)
	}

	log.Info().
		Str("workspace_id", workspaceID.String()).
		Str("client_id", clientID.String()).
		Str("actor_id", actorID.String()).
		Msg("Client permanently deleted")
	s.events.emit(ctx, domain.EventClientHardDeleted, workspaceID, clientID, actorID)
	return nil
}
