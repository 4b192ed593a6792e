package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
)

type RedisEventSubscriber struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, channel string, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// SubscribeToNotifications blocks, calling handler for every notification on
// the channel until ctx ends.
func (r *RedisEventSubscriber) SubscribeToNotifications(ctx context.Context, handler domain.NotificationHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	r.log.Info("Subscribed to notifications", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis: subscription to %s closed", r.channel)
			}
			n, err := parseNotification(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse notification", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(n); err != nil {
				r.log.Error("Failed to handle notification", "notification_id", n.ID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Notification subscriber stopped")
			return ctx.Err()
		}
	}
}

func parseNotification(payload string) (*domain.Notification, error) {
	var n domain.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return nil, err
	}
	if n.ID == "" || n.Type == "" {
		return nil, fmt.Errorf("invalid notification: %s", payload)
	}
	return &n, nil
}
