package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event.
type EventType string

const (
	EventClientCreated     EventType = "client.created"
	EventClientUpdated     EventType = "client.updated"
	EventClientDeleted     EventType = "client.deleted"
	EventClientRestored    EventType = "client.restored"
	EventClientHardDeleted EventType = "client.hard_deleted"

	EventWorkspaceCreated     EventType = "workspace.created"
	EventWorkspaceDeleted     EventType = "workspace.deleted"
	EventWorkspaceRestored    EventType = "workspace.restored"
	EventWorkspaceHardDeleted EventType = "workspace.hard_deleted"
	EventMemberInvited        EventType = "workspace.member_invited"
	EventMemberRemoved        EventType = "workspace.member_removed"
)

// Event is emitted after a change has been committed.
type Event struct {
	Type        EventType `json:"type"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	ResourceID  uuid.UUID `json:"resource_id"`
	ActorID     uuid.UUID `json:"actor_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventPublisher delivers committed events. Delivery is best effort; callers
// log and drop publish failures.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// ActivityFeed reads back the recent events of a workspace, newest first.
type ActivityFeed interface {
	Recent(ctx context.Context, workspaceID uuid.UUID, limit int) ([]Event, error)
}
