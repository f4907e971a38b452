package service

import (
	"context"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/Rrens/crm/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// eventEmitter publishes committed changes. A failed publish never fails the
// use case that produced it.
type eventEmitter struct {
	publisher domain.EventPublisher
	metrics   *metrics.Metrics
}

func newEventEmitter(publisher domain.EventPublisher, m *metrics.Metrics) *eventEmitter {
	if publisher == nil {
		publisher = domain.NoopPublisher{}
	}
	return &eventEmitter{publisher: publisher, metrics: m}
}

func (e *eventEmitter) emit(ctx context.Context, typ domain.EventType, workspaceID, resourceID, actorID uuid.UUID) {
	event := domain.Event{
		Type:        typ,
		WorkspaceID: workspaceID,
		ResourceID:  resourceID,
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.metrics.IncPublishFailure()
		log.Warn().
			Err(err).
			Str("event", string(typ)).
			Str("workspace_id", workspaceID.String()).
			Str("resource_id", resourceID.String()).
			Msg("Failed to publish event")
	}
}

// LogPublisher writes events to the application log. It stands in for the
// Redis publisher when Redis is disabled.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event domain.Event) error {
	LogEvent(event)
	return nil
}

// LogEvent writes one event to the application log. It also serves as the
// handler of the Redis event subscription.
func LogEvent(event domain.Event) {
	log.Info().
		Str("event", string(event.Type)).
		Str("workspace_id", event.WorkspaceID.String()).
		Str("resource_id", event.ResourceID.String()).
		Str("actor_id", event.ActorID.String()).
		Time("occurred_at", event.OccurredAt).
		Msg("Event")
}
