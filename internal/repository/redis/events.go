package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Rrens/crm/internal/domain"
	"github.com/google/uuid"
)

const (
	activityPrefix = "crm:activity:"
	activityLength = 100
	activityTTL    = 30 * 24 * time.Hour
)

// EventPublisher publishes domain events on a pub/sub channel and keeps a
// short per-workspace activity feed.
type EventPublisher struct {
	client  *Client
	channel string
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(client *Client, channel string) *EventPublisher {
	return &EventPublisher{client: client, channel: channel}
}

func activityKey(workspaceID uuid.UUID) string {
	return activityPrefix + workspaceID.String()
}

// Publish implements domain.EventPublisher
func (p *EventPublisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := activityKey(event.WorkspaceID)
	pipe := p.client.rdb.TxPipeline()
	pipe.Publish(ctx, p.channel, data)
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, activityLength-1)
	pipe.Expire(ctx, key, activityTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest events of a workspace, newest first.
func (p *EventPublisher) Recent(ctx context.Context, workspaceID uuid.UUID, limit int) ([]domain.Event, error) {
	if limit <= 0 || limit > activityLength {
		limit = activityLength
	}

	raw, err := p.client.rdb.LRange(ctx, activityKey(workspaceID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read activity: %w", err)
	}

	events := make([]domain.Event, 0, len(raw))
	for _, item := range raw {
		var event domain.Event
		if err := json.Unmarshal([]byte(item), &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Subscribe streams events from the channel until ctx is done.
func (p *EventPublisher) Subscribe(ctx context.Context, handle func(domain.Event)) error {
	sub := p.client.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			handle(event)
		}
	}
}
