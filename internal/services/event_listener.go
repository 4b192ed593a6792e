package services

import (
	"context"

	"slot-auction/internal/domain"
	"slot-auction/pkg/logger"
)

// EventListener feeds notifications received from the relay channel into the
// websocket gateway.
type EventListener struct {
	gateway           domain.NotificationPublisher
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(gateway domain.NotificationPublisher, connectionManager domain.ConnectionManager, log logger.Logger) *EventListener {
	return &EventListener{
		gateway:           gateway,
		connectionManager: connectionManager,
		log:               log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.NotificationSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToNotifications(ctx, el.handleNotification)
}

func (el *EventListener) handleNotification(n *domain.Notification) error {
	el.log.Debug("Handling notification", "type", n.Type, "scope", n.RecipientScope, "session_id", n.SessionID)

	if err := el.gateway.PublishNotification(context.Background(), n); err != nil {
		el.log.Error("Failed to push notification", "notification_id", n.ID, "error", err)
		return err
	}

	if el.closesSession(n) {
		if err := el.connectionManager.CloseAndUnregisterConnections(domain.SessionTopic(n.SessionID)); err != nil {
			el.log.Error("Failed to finalize connections for session", "session_id", n.SessionID, "error", err)
			return err
		}
	}
	return nil
}

// closesSession reports whether n is the last notification a session's
// subscribers get: the completion summary or the cancellation notice.
func (el *EventListener) closesSession(n *domain.Notification) bool {
	return n.Type == domain.NotifyAuctionCompleted &&
		n.SessionID != "" &&
		n.RecipientScope != domain.ScopeCompany
}
