package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"slot-auction/internal/domain"
)

const selectNotification = `
        SELECT seq, id, session_id, slot_id, type, recipient_scope, recipient_id, message,
               priority, created_at, dispatched_at
        FROM notifications`

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	var sessionID sql.NullString
	var slotID sql.NullInt64
	var nType, scope, priority string
	var dispatched sql.NullTime

	err := row.Scan(&n.Seq, &n.ID, &sessionID, &slotID, &nType, &scope, &n.RecipientID,
		&n.Message, &priority, &n.CreatedAt, &dispatched)
	if err != nil {
		return nil, err
	}

	n.SessionID = sessionID.String
	n.SlotID = slotID.Int64
	n.Type = domain.NotificationType(nType)
	n.RecipientScope = domain.RecipientScope(scope)
	n.Priority = domain.Priority(priority)
	n.DispatchedAt = timePtr(dispatched)
	return &n, nil
}

func queryNotifications(ctx context.Context, q queryer, query string, args ...interface{}) ([]*domain.Notification, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("mysql: scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// appendNotification inserts n and records the outbox sequence number the
// database assigned.
func appendNotification(ctx context.Context, q queryer, n *domain.Notification) error {
	query := `
        INSERT INTO notifications (id, session_id, slot_id, type, recipient_scope, recipient_id,
                                   message, priority, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	res, err := q.ExecContext(ctx, query,
		n.ID, nullString(n.SessionID), nullInt64(n.SlotID), string(n.Type), string(n.RecipientScope),
		n.RecipientID, n.Message, string(n.Priority), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("mysql: append notification %s: %w", n.ID, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.Seq = seq
	return nil
}

// listNotifications returns the session feed newest first.
func listNotifications(ctx context.Context, q queryer, sessionID string, limit int) ([]*domain.Notification, error) {
	query := selectNotification + ` WHERE session_id = ? ORDER BY seq DESC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryNotifications(ctx, q, query, args...)
}

func pendingNotifications(ctx context.Context, q queryer, limit int) ([]*domain.Notification, error) {
	query := selectNotification + ` WHERE dispatched_at IS NULL ORDER BY seq ASC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryNotifications(ctx, q, query, args...)
}

func markDispatched(ctx context.Context, q queryer, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE notifications SET dispatched_at = ? WHERE dispatched_at IS NULL AND id IN (` +
		placeholders(len(ids)) + `)`
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, at)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mysql: mark %d notifications dispatched: %w", len(ids), err)
	}
	return nil
}
