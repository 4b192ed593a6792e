package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slot-auction/internal/domain"
)

const selectSession = `
        SELECT id, name, start_time, end_time, actual_start_time, actual_end_time, status,
               bid_increment, reserve_price, auto_extend, extend_duration_ms, max_extensions,
               extensions_used, created_at, updated_at
        FROM auction_sessions`

func scanSession(row rowScanner) (*domain.AuctionSession, error) {
	var session domain.AuctionSession
	var status string
	var actualStart, actualEnd sql.NullTime
	var extendMs int64

	err := row.Scan(&session.ID, &session.Name, &session.StartTime, &session.EndTime,
		&actualStart, &actualEnd, &status, &session.BidIncrement, &session.ReservePrice,
		&session.AutoExtend, &extendMs, &session.MaxExtensions, &session.ExtensionsUsed,
		&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}

	session.Status = domain.SessionStatus(status)
	session.ActualStartTime = timePtr(actualStart)
	session.ActualEndTime = timePtr(actualEnd)
	session.ExtendDuration = time.Duration(extendMs) * time.Millisecond
	return &session, nil
}

func getSession(ctx context.Context, q queryer, query, sessionID string) (*domain.AuctionSession, error) {
	session, err := scanSession(q.QueryRowContext(ctx, query, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get session %s: %w", sessionID, err)
	}

	if session.SlotIDs, err = sessionSlotIDs(ctx, q, sessionID); err != nil {
		return nil, err
	}
	return session, nil
}

func sessionSlotIDs(ctx context.Context, q queryer, sessionID string) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT slot_id FROM auction_session_slots WHERE session_id = ? ORDER BY slot_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("mysql: session %s slots: %w", sessionID, err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func listSessions(ctx context.Context, q queryer, status domain.SessionStatus) ([]*domain.AuctionSession, error) {
	query := selectSession
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY start_time ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mysql: list sessions: %w", err)
	}

	sessions := make([]*domain.AuctionSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("mysql: scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, session := range sessions {
		if session.SlotIDs, err = sessionSlotIDs(ctx, q, session.ID); err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func insertSession(ctx context.Context, q queryer, session *domain.AuctionSession) error {
	query := `
        INSERT INTO auction_sessions (id, name, start_time, end_time, actual_start_time, actual_end_time,
                                      status, bid_increment, reserve_price, auto_extend, extend_duration_ms,
                                      max_extensions, extensions_used, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := q.ExecContext(ctx, query,
		session.ID, session.Name, session.StartTime, session.EndTime,
		nullTime(session.ActualStartTime), nullTime(session.ActualEndTime), string(session.Status),
		session.BidIncrement, session.ReservePrice, session.AutoExtend, session.ExtendDuration.Milliseconds(),
		session.MaxExtensions, session.ExtensionsUsed, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("mysql: insert session %s: %w", session.ID, err)
	}

	for _, slotID := range session.SlotIDs {
		_, err := q.ExecContext(ctx,
			`INSERT INTO auction_session_slots (session_id, slot_id) VALUES (?, ?)`, session.ID, slotID)
		if isMissingReference(err) {
			return fmt.Errorf("%w: slot %d", domain.ErrSlotNotFound, slotID)
		}
		if err != nil {
			return fmt.Errorf("mysql: bind slot %d to session %s: %w", slotID, session.ID, err)
		}
	}
	return nil
}

// updateSession writes the mutable session columns. The slot set is fixed at
// creation.
func updateSession(ctx context.Context, q queryer, session *domain.AuctionSession) error {
	query := `
        UPDATE auction_sessions
        SET end_time = ?, actual_start_time = ?, actual_end_time = ?, status = ?,
            extensions_used = ?, updated_at = ?
        WHERE id = ?
    `
	_, err := q.ExecContext(ctx, query,
		session.EndTime, nullTime(session.ActualStartTime), nullTime(session.ActualEndTime),
		string(session.Status), session.ExtensionsUsed, session.UpdatedAt, session.ID)
	return err
}
