package services

import (
	"context"
	"fmt"

	"slot-auction/internal/domain"
	"slot-auction/pkg/utils"
)

type NotifyRequest struct {
	SessionID   string
	SlotID      int64
	Type        domain.NotificationType
	Scope       domain.RecipientScope
	RecipientID string
	Message     string
	Priority    domain.Priority
}

// NotificationDispatcher appends notifications to the outbox inside the
// caller's transaction. Delivery happens later through the OutboxRelay, so a
// notification exists if and only if its triggering change committed.
type NotificationDispatcher struct {
	clock domain.Clock
}

func NewNotificationDispatcher(clock domain.Clock) *NotificationDispatcher {
	return &NotificationDispatcher{clock: clock}
}

func (d *NotificationDispatcher) Notify(ctx context.Context, tx domain.LedgerTx, req NotifyRequest) error {
	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	n := &domain.Notification{
		ID:             utils.GenerateID("ntf"),
		SessionID:      req.SessionID,
		SlotID:         req.SlotID,
		Type:           req.Type,
		RecipientScope: req.Scope,
		RecipientID:    req.RecipientID,
		Message:        req.Message,
		Priority:       priority,
		CreatedAt:      d.clock.Now(),
	}
	if err := tx.AppendNotification(ctx, n); err != nil {
		return fmt.Errorf("dispatcher: append %s notification: %w", req.Type, err)
	}
	return nil
}
