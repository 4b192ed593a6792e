package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"slot-auction/internal/domain"
)

// EventPublisherImpl fans notifications out over a redis pub/sub channel to
// every gateway instance.
type EventPublisherImpl struct {
	client  redis.Cmdable
	channel string
}

func NewEventPublisher(client redis.Cmdable, channel string) *EventPublisherImpl {
	return &EventPublisherImpl{client: client, channel: channel}
}

func (r *EventPublisherImpl) PublishNotification(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}
