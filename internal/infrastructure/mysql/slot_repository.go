package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"slot-auction/internal/domain"
)

const selectSlot = `
        SELECT id, name, reserve_price, current_bid, current_bidder, current_bid_id,
               current_sponsor, total_bids, last_bid_time, status, session_id,
               created_at, updated_at
        FROM slots`

func scanSlot(row rowScanner) (*domain.Slot, error) {
	var slot domain.Slot
	var status string
	var lastBid sql.NullTime
	var sessionID sql.NullString

	err := row.Scan(&slot.ID, &slot.Name, &slot.ReservePrice, &slot.CurrentBid,
		&slot.CurrentBidder, &slot.CurrentBidID, &slot.CurrentSponsor, &slot.TotalBids,
		&lastBid, &status, &sessionID, &slot.CreatedAt, &slot.UpdatedAt)
	if err != nil {
		return nil, err
	}

	slot.Status = domain.SlotStatus(status)
	slot.LastBidTime = timePtr(lastBid)
	slot.SessionID = sessionID.String
	return &slot, nil
}

func getSlot(ctx context.Context, q queryer, query string, slotID int64) (*domain.Slot, error) {
	slot, err := scanSlot(q.QueryRowContext(ctx, query, slotID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: get slot %d: %w", slotID, err)
	}
	return slot, nil
}

func listSlots(ctx context.Context, q queryer) ([]*domain.Slot, error) {
	rows, err := q.QueryContext(ctx, selectSlot+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("mysql: list slots: %w", err)
	}
	defer rows.Close()

	slots := make([]*domain.Slot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("mysql: scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func insertSlot(ctx context.Context, q queryer, slot *domain.Slot) error {
	query := `
        INSERT INTO slots (id, name, reserve_price, current_bid, current_bidder, current_bid_id,
                           current_sponsor, total_bids, last_bid_time, status, session_id,
                           created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := q.ExecContext(ctx, query,
		slot.ID, slot.Name, slot.ReservePrice, slot.CurrentBid, slot.CurrentBidder, slot.CurrentBidID,
		slot.CurrentSponsor, slot.TotalBids, nullTime(slot.LastBidTime), string(slot.Status),
		nullString(slot.SessionID), slot.CreatedAt, slot.UpdatedAt)
	if isDuplicate(err) {
		return domain.ErrSlotExists
	}
	return err
}

// updateSlot writes every mutable column. The caller holds the row lock.
func updateSlot(ctx context.Context, q queryer, slot *domain.Slot) error {
	query := `
        UPDATE slots
        SET name = ?, reserve_price = ?, current_bid = ?, current_bidder = ?, current_bid_id = ?,
            current_sponsor = ?, total_bids = ?, last_bid_time = ?, status = ?, session_id = ?,
            updated_at = ?
        WHERE id = ?
    `
	_, err := q.ExecContext(ctx, query,
		slot.Name, slot.ReservePrice, slot.CurrentBid, slot.CurrentBidder, slot.CurrentBidID,
		slot.CurrentSponsor, slot.TotalBids, nullTime(slot.LastBidTime), string(slot.Status),
		nullString(slot.SessionID), slot.UpdatedAt, slot.ID)
	return err
}
