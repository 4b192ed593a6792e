package websocket

import (
	"context"

	"slot-auction/internal/domain"
)

// WebSocketNotifier routes a notification to the gateway connections its
// recipient scope addresses.
type WebSocketNotifier struct {
	connManager domain.ConnectionManager
}

func NewWebSocketNotifier(connManager domain.ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) PublishNotification(ctx context.Context, notification *domain.Notification) error {
	switch notification.RecipientScope {
	case domain.ScopeCompany:
		return n.connManager.NotifyCompany(notification.RecipientID, notification)
	case domain.ScopeBroadcast:
		return n.connManager.BroadcastToAll(notification)
	default:
		return n.connManager.BroadcastToTopic(notification.Topic(), notification)
	}
}
